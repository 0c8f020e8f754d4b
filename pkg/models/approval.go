package models

import "time"

// ApproverType says how an approver spec resolves to concrete identities.
type ApproverType string

const (
	ApproverRole  ApproverType = "role"  // Resolved to every holder of a role
	ApproverUser  ApproverType = "user"  // A single concrete user
	ApproverGroup ApproverType = "group" // Resolved to every member of a group
)

// ApproverSpec is the approval template configured on a gated transition.
// Each spec is resolved to one or more concrete Approval rows when the
// transition is requested.
type ApproverSpec struct {
	Type ApproverType `json:"type" validate:"required,oneof=role user group"`
	ID   string       `json:"id"   validate:"required"`

	// DueIn is the wall-clock budget for resolving the approval, measured
	// from the moment it is requested. Zero means no due date.
	DueIn Duration `json:"due_in,omitempty"`

	// RemindAfter schedules a reminder intent this long after the request.
	// Zero disables reminders.
	RemindAfter Duration `json:"remind_after,omitempty"`

	// HardDeadline cancels the pending transition on expiry the same way a
	// rejection would. A soft deadline only escalates.
	HardDeadline bool `json:"hard_deadline,omitempty"`
}

// ApprovalStatus is the closed lifecycle set for a single approval row.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected || s == ApprovalExpired
}

// Approval is one pending or resolved approval for a gated transition of one
// instance. There is at most one row per (instance, transition, approver)
// while the transition is pending.
type Approval struct {
	ID           string       `json:"id"`
	InstanceID   string       `json:"instance_id"   validate:"required"`
	TransitionID string       `json:"transition_id" validate:"required"`
	ApproverType ApproverType `json:"approver_type" validate:"required,oneof=role user group"`
	ApproverID   string       `json:"approver_id"   validate:"required"`

	Status       ApprovalStatus `json:"status"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	RemindAt     *time.Time     `json:"remind_at,omitempty"`
	ReminderSent bool           `json:"reminder_sent"`
	HardDeadline bool           `json:"hard_deadline"`

	Comments   string     `json:"comments,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved reports whether the approval reached a terminal status.
func (a *Approval) Resolved() bool {
	return a.Status.Terminal()
}

// Overdue reports whether a pending approval has passed its due date.
func (a *Approval) Overdue(now time.Time) bool {
	return a.Status == ApprovalPending && a.DueDate != nil && now.After(*a.DueDate)
}
