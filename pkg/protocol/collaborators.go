// Package protocol defines the collaborator interfaces the engine consumes.
// Implementations live outside this module; the engine only depends on these
// narrow contracts.
package protocol

import (
	"context"
	"time"

	"github.com/gateflow/gateflow/pkg/models"
)

// EntityStore loads a structured snapshot of the domain entity an instance is
// bound to. The snapshot becomes part of the rule evaluation context.
type EntityStore interface {
	LoadEntitySnapshot(ctx context.Context, entityType, entityID string) (map[string]any, error)
}

// CallerContext identifies the party invoking an engine operation.
type CallerContext struct {
	SubjectID  string         `json:"subject_id" validate:"required"`
	Roles      []string       `json:"roles,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// PermissionResolver resolves caller contexts to permission sets and approver
// specs to concrete identities.
type PermissionResolver interface {
	// ResolveCallerPermissions returns the permission strings held by the
	// caller. The engine treats the result as an opaque set.
	ResolveCallerPermissions(ctx context.Context, caller CallerContext) ([]string, error)

	// ResolveApprovers expands a role or group approver to its concrete
	// member identities. User approvers resolve to themselves.
	ResolveApprovers(ctx context.Context, approverType models.ApproverType, approverID string) ([]string, error)
}

// Clock supplies the current time. Injected so due-date and expiration logic
// is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
