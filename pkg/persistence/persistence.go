// Package persistence provides the data storage abstraction layer for
// workflow definitions, instances, approvals and history.
package persistence

import (
	"context"
	"time"

	"github.com/gateflow/gateflow/pkg/models"
)

// Persistence is the top-level storage contract. Implementations group the
// per-aggregate repositories behind a single handle so callers can be wired
// with one dependency.
type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	History() HistoryRepository
	Approvals() ApprovalRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions. Definitions are
// write-rarely reference data; saving a definition with an existing ID
// replaces it (the registry versions definitions by saving new records).
type DefinitionRepository interface {
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)

	// DefaultForEntityType returns the definition flagged as default for the
	// entity type, or ErrNoDefaultDefinition when none exists.
	DefaultForEntityType(ctx context.Context, entityType string) (*models.WorkflowDefinition, error)

	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// InstanceRepository stores workflow instances, one mutable row per entity.
type InstanceRepository interface {
	// Create persists a new instance. Returns ErrInstanceAlreadyExists when
	// an instance for the same (entity type, entity ID) pair exists.
	Create(ctx context.Context, instance *models.WorkflowInstance) error

	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	GetByEntity(ctx context.Context, entityType, entityID string) (*models.WorkflowInstance, error)

	// Update persists instance mutations. The instance's Version must match
	// the stored row; on success the stored version is bumped. A mismatch
	// returns ErrVersionConflict.
	Update(ctx context.Context, instance *models.WorkflowInstance) error
}

// HistoryRepository is the append-only audit trail store. There is no update
// or delete path by design.
type HistoryRepository interface {
	// Append durably writes one history entry, assigning the next sequence
	// number for the entry's instance.
	Append(ctx context.Context, entry *models.HistoryEntry) error

	// ListByInstance returns every entry for the instance ordered by
	// sequence, oldest first.
	ListByInstance(ctx context.Context, instanceID string) ([]*models.HistoryEntry, error)
}

// ApprovalRepository stores approval rows for gated transitions.
type ApprovalRepository interface {
	Save(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)

	// ListForTransition returns every approval row for the given pending
	// transition of the instance, regardless of status.
	ListForTransition(ctx context.Context, instanceID, transitionID string) ([]*models.Approval, error)

	// ListPendingOverdue returns pending approvals whose due date has passed,
	// up to limit rows. Used by the expiration sweep.
	ListPendingOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Approval, error)

	// ListPendingReminders returns pending approvals whose reminder time has
	// passed and whose reminder has not been sent yet.
	ListPendingReminders(ctx context.Context, now time.Time, limit int) ([]*models.Approval, error)
}
