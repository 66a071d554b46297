package notify

import (
	"encoding/json"
	"time"
)

// Priority grades the salience of a notification.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Well-known category tags. The set is extensible; unknown categories
// pass through untouched.
const (
	CategorySystem  = "system"
	CategoryTask    = "task"
	CategoryGoal    = "goal"
	CategoryLeave   = "leave"
	CategoryPayroll = "payroll"
)

// Notification is a unit of asynchronous information pushed to one
// identity. A single Read flag represents "has been read"; the legacy
// wire field is_read is accepted on decode and folded into it.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Priority  Priority  `json:"priority,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	ActionURL string    `json:"action_url,omitempty"`
}

// UnmarshalJSON folds the legacy is_read field into Read. Either field
// set to true marks the notification read.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	aux := struct {
		*plain
		IsRead *bool `json:"is_read"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.IsRead != nil && *aux.IsRead {
		n.Read = true
	}
	return nil
}

// Envelope is the discriminated message frame delivered by the realtime
// transport. Only EnvelopeNotification frames carry a payload this
// package handles; every other type is ignored without error.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EnvelopeNotification tags frames whose payload is a Notification.
const EnvelopeNotification = "notification"
