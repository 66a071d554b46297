package session

import (
	"fmt"
	"strings"
)

// Role is the closed set of actor roles recognised by the platform.
type Role string

const (
	// RoleEmployer is the company owner; it implicitly holds every permission.
	RoleEmployer Role = "employer"
	RoleHRAdmin  Role = "hr-admin"
	RoleHRUser   Role = "hr-user"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var knownRoles = map[Role]struct{}{
	RoleEmployer: {},
	RoleHRAdmin:  {},
	RoleHRUser:   {},
	RoleManager:  {},
	RoleEmployee: {},
}

// ParseRole normalises and validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := knownRoles[role]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Identity represents the authenticated actor.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	EmployeeID  string `json:"employee_id,omitempty"`
}

// Company is the tenant context an identity operates within.
type Company struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	SeatLimit int    `json:"seat_limit"`
}

// DefaultCompany is the placeholder tenant used when the tenant fetch
// fails. A failed fetch never blocks login.
func DefaultCompany() Company {
	return Company{
		ID:        "default",
		Name:      "My Company",
		Plan:      "free",
		SeatLimit: 5,
	}
}
