package models

import "time"

// HistoryKind distinguishes committed transitions from abandoned ones in the
// audit trail.
type HistoryKind string

const (
	HistoryTransitionCommitted HistoryKind = "transition.committed"
	HistoryTransitionAbandoned HistoryKind = "transition.abandoned"
	HistoryInstanceCreated     HistoryKind = "instance.created"
)

// HistoryEntry is one immutable record of the per-instance audit trail.
// Entries are appended in a total order per instance (monotonic sequence
// assigned inside the locked commit) and never mutated or deleted.
type HistoryEntry struct {
	ID         string      `json:"id"`
	InstanceID string      `json:"instance_id" validate:"required"`
	Sequence   int64       `json:"sequence"`
	Kind       HistoryKind `json:"kind"`

	TransitionID string `json:"transition_id,omitempty"`
	FromStateID  string `json:"from_state_id,omitempty"`
	ToStateID    string `json:"to_state_id,omitempty"`

	Actor    string         `json:"actor,omitempty"`
	Comments string         `json:"comments,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
