// Package events defines the intent and event types published by the engine
// and the approval coordinator. Delivery is fire and forget: failures are the
// dispatcher's concern, never the engine's.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the dispatcher topic all lifecycle intents are published to.
const Topic = "gateflow.intents"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Transition lifecycle events.
	TransitionCommittedEvent EventType = "transition.committed"
	TransitionAbandonedEvent EventType = "transition.abandoned"

	// Approval gating events.
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalReminderEvent  EventType = "approval.reminder"
	ApprovalEscalatedEvent EventType = "approval.escalated"

	// Automation notification intents.
	NotificationIntentEvent EventType = "notification.intent"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for a lifecycle event.
func NewBaseEvent(eventType EventType, instanceID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instanceID,
	}
}

type TransitionCommitted struct {
	BaseEvent

	TransitionID string `json:"transition_id"`
	FromStateID  string `json:"from_state_id"`
	ToStateID    string `json:"to_state_id"`
	Actor        string `json:"actor,omitempty"`
}

func (t TransitionCommitted) GetType() EventType {
	return TransitionCommittedEvent
}

type TransitionAbandoned struct {
	BaseEvent

	TransitionID string `json:"transition_id"`
	// Cause is "rejected" or "expired".
	Cause    string `json:"cause"`
	Comments string `json:"comments,omitempty"`
}

func (t TransitionAbandoned) GetType() EventType {
	return TransitionAbandonedEvent
}

type ApprovalRequested struct {
	BaseEvent

	ApprovalID   string     `json:"approval_id"`
	TransitionID string     `json:"transition_id"`
	ApproverID   string     `json:"approver_id"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

func (a ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalReminder struct {
	BaseEvent

	ApprovalID   string     `json:"approval_id"`
	TransitionID string     `json:"transition_id"`
	ApproverID   string     `json:"approver_id"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

func (a ApprovalReminder) GetType() EventType {
	return ApprovalReminderEvent
}

type ApprovalEscalated struct {
	BaseEvent

	ApprovalID   string `json:"approval_id"`
	TransitionID string `json:"transition_id"`
	ApproverID   string `json:"approver_id"`
	// HardDeadline reports whether the pending transition was cancelled
	// alongside the escalation.
	HardDeadline bool `json:"hard_deadline"`
}

func (a ApprovalEscalated) GetType() EventType {
	return ApprovalEscalatedEvent
}

type NotificationIntent struct {
	BaseEvent

	Channel   string `json:"channel,omitempty"`
	Recipient string `json:"recipient"`
	Template  string `json:"template,omitempty"`
}

func (n NotificationIntent) GetType() EventType {
	return NotificationIntentEvent
}
