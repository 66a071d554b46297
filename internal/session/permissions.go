package session

import "sort"

// Capability tags. The backend enforces these; the client derives them
// from the role for UI gating only.
const (
	PermUsersManage       = "users.manage"
	PermUsersView         = "users.view"
	PermPayrollManage     = "payroll.manage"
	PermPayrollView       = "payroll.view"
	PermTasksAssign       = "tasks.assign"
	PermTasksView         = "tasks.view"
	PermGoalsManage       = "goals.manage"
	PermGoalsView         = "goals.view"
	PermLeavesApprove     = "leaves.approve"
	PermLeavesRequest     = "leaves.request"
	PermTimesheetsApprove = "timesheets.approve"
	PermTimesheetsSubmit  = "timesheets.submit"
	PermReportsView       = "reports.view"
	PermCompanySettings   = "company.settings"
	PermDocumentsManage   = "documents.manage"
)

// rolePermissions is the single declarative role→capability mapping.
// Every permission decision in the SDK routes through RoleHasPermission;
// no ad hoc role comparisons exist elsewhere. RoleEmployer is absent on
// purpose: it bypasses the map entirely.
var rolePermissions = map[Role][]string{
	RoleHRAdmin: {
		PermUsersManage, PermUsersView,
		PermPayrollManage, PermPayrollView,
		PermTasksAssign, PermTasksView,
		PermGoalsManage, PermGoalsView,
		PermLeavesApprove, PermLeavesRequest,
		PermTimesheetsApprove, PermTimesheetsSubmit,
		PermReportsView, PermCompanySettings, PermDocumentsManage,
	},
	RoleHRUser: {
		PermUsersView,
		PermLeavesApprove, PermLeavesRequest,
		PermTimesheetsApprove, PermTimesheetsSubmit,
		PermReportsView, PermDocumentsManage,
	},
	RoleManager: {
		PermUsersView,
		PermTasksAssign, PermTasksView,
		PermGoalsManage, PermGoalsView,
		PermLeavesApprove, PermLeavesRequest,
		PermTimesheetsApprove, PermTimesheetsSubmit,
		PermReportsView,
	},
	RoleEmployee: {
		PermTasksView, PermGoalsView,
		PermLeavesRequest, PermTimesheetsSubmit,
	},
}

var rolePermissionSets = func() map[Role]map[string]struct{} {
	sets := make(map[Role]map[string]struct{}, len(rolePermissions))
	for role, tags := range rolePermissions {
		set := make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			set[tag] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}()

// RoleHasPermission reports whether the role holds the capability tag.
// Pure function of the role: the employer role holds every tag,
// including tags absent from the map.
func RoleHasPermission(role Role, tag string) bool {
	if role == RoleEmployer {
		return true
	}
	set, ok := rolePermissionSets[role]
	if !ok {
		return false
	}
	_, ok = set[tag]
	return ok
}

// PermissionsForRole returns the sorted capability set of a role. For the
// employer role it returns every tag defined in the map.
func PermissionsForRole(role Role) []string {
	var out []string
	if role == RoleEmployer {
		seen := make(map[string]struct{})
		for _, tags := range rolePermissions {
			for _, tag := range tags {
				if _, ok := seen[tag]; ok {
					continue
				}
				seen[tag] = struct{}{}
				out = append(out, tag)
			}
		}
	} else {
		out = append(out, rolePermissions[role]...)
	}
	sort.Strings(out)
	return out
}
