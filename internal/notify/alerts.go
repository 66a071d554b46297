package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// autoDismissAfter is the display time for alerts that do not require
// explicit interaction.
const autoDismissAfter = 5 * time.Second

// Alert is one OS-level notification request.
type Alert struct {
	Title string
	Body  string
	Icon  string
	// Tag coalesces repeated deliveries of the same notification in the
	// host's alert tray instead of stacking them.
	Tag                string
	RequireInteraction bool
	// Timeout auto-dismisses the alert; zero means no timeout.
	Timeout time.Duration
}

// Alerter is the host environment's native alert facility. All of it is
// best-effort: failures are swallowed by the caller.
type Alerter interface {
	// Permission reports whether alert display is currently allowed.
	Permission() bool
	// RequestPermission asks the host for alert permission.
	RequestPermission(ctx context.Context) (bool, error)
	// Show displays one alert.
	Show(Alert) error
	// PlayCue plays the audible cue used for high-priority alerts.
	PlayCue() error
}

// AlertManager applies the alerting rules on top of an Alerter and
// guards the one-automatic-permission-request contract.
type AlertManager struct {
	alerter     Alerter
	log         *zap.SugaredLogger
	requestOnce sync.Once
}

// NewAlertManager wraps the alerter; a nil alerter disables alerting.
func NewAlertManager(alerter Alerter, log *zap.SugaredLogger) *AlertManager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AlertManager{alerter: alerter, log: log.Named("alerts")}
}

// RequestPermissionOnce opportunistically asks for alert permission, at
// most once per manager lifetime. Called on Center start.
func (m *AlertManager) RequestPermissionOnce(ctx context.Context) {
	if m == nil || m.alerter == nil {
		return
	}
	m.requestOnce.Do(func() {
		m.RequestPermission(ctx)
	})
}

// RequestPermission asks the host for permission. Used by the explicit
// settings action; does not count against the automatic once-per-start
// request.
func (m *AlertManager) RequestPermission(ctx context.Context) {
	if m == nil || m.alerter == nil {
		return
	}
	granted, err := m.alerter.RequestPermission(ctx)
	if err != nil {
		m.log.Warnw("alert permission request failed", "err", err)
		return
	}
	m.log.Debugw("alert permission resolved", "granted", granted)
}

// Notify applies the alert rules to one received notification:
// only with permission granted and a priority present; tag is the
// notification id; high priority requires interaction and attempts an
// audio cue; anything else auto-dismisses. Every failure is swallowed.
func (m *AlertManager) Notify(n Notification) {
	if m == nil || m.alerter == nil {
		return
	}
	if !m.alerter.Permission() || n.Priority == "" {
		return
	}

	alert := Alert{
		Title: n.Title,
		Body:  n.Message,
		Tag:   n.ID,
	}
	if n.Priority == PriorityHigh {
		alert.RequireInteraction = true
	} else {
		alert.Timeout = autoDismissAfter
	}

	if err := m.alerter.Show(alert); err != nil {
		m.log.Warnw("alert display failed", "err", err)
		return
	}
	if n.Priority == PriorityHigh {
		// Playback failures are never surfaced.
		_ = m.alerter.PlayCue()
	}
}

// LogAlerter writes alerts to the logger instead of a host facility.
// Useful for terminals and tests; permission is always granted.
type LogAlerter struct {
	Log *zap.SugaredLogger
}

func (a *LogAlerter) Permission() bool { return true }

func (a *LogAlerter) RequestPermission(context.Context) (bool, error) { return true, nil }

func (a *LogAlerter) Show(alert Alert) error {
	if a.Log != nil {
		a.Log.Infow("alert", "title", alert.Title, "body", alert.Body, "tag", alert.Tag,
			"require_interaction", alert.RequireInteraction)
	}
	return nil
}

func (a *LogAlerter) PlayCue() error { return nil }
