// Package registry loads, validates and caches workflow definitions. The
// engine only ever sees definitions that passed validation; an invalid
// definition is never served.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

// ErrDefinitionInvalid indicates a definition failed structural validation.
// The wrapped message carries the individual findings.
var ErrDefinitionInvalid = errors.New("workflow definition invalid")

// DefinitionRegistry resolves definitions by ID or by (entity type, default).
// Validated definitions are cached; the cache is immutable after validation
// and safe for unsynchronized concurrent reads. Definitions are versioned as
// new records, so cache entries only go stale on explicit Reload.
type DefinitionRegistry struct {
	repo   persistence.DefinitionRepository
	logger *slog.Logger

	mu    sync.RWMutex
	byID  map[string]*models.WorkflowDefinition
	byEnt map[string]*models.WorkflowDefinition // entity type -> default definition
}

// NewDefinitionRegistry creates a definition registry over the given store.
func NewDefinitionRegistry(repo persistence.DefinitionRepository, logger *slog.Logger) *DefinitionRegistry {
	return &DefinitionRegistry{
		repo:   repo,
		logger: logger.With("module", "registry"),
		byID:   make(map[string]*models.WorkflowDefinition),
		byEnt:  make(map[string]*models.WorkflowDefinition),
	}
}

// GetByID resolves a definition by ID, validating it on first load.
func (r *DefinitionRegistry) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	cached, ok := r.byID[id]
	r.mu.RUnlock()

	if ok {
		return cached, nil
	}

	definition, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.admit(definition)
}

// DefaultForEntityType resolves the default definition for an entity type.
func (r *DefinitionRegistry) DefaultForEntityType(ctx context.Context, entityType string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	cached, ok := r.byEnt[entityType]
	r.mu.RUnlock()

	if ok {
		return cached, nil
	}

	definition, err := r.repo.DefaultForEntityType(ctx, entityType)
	if err != nil {
		return nil, err
	}

	return r.admit(definition)
}

// Register validates a definition and saves it through the store. The
// definition becomes available to the engine only when validation passes.
func (r *DefinitionRegistry) Register(ctx context.Context, definition *models.WorkflowDefinition) error {
	if err := ValidateDefinition(definition); err != nil {
		return err
	}

	if err := r.repo.Save(ctx, definition); err != nil {
		return fmt.Errorf("failed to save definition %s: %w", definition.ID, err)
	}

	if _, err := r.admit(definition); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Registered workflow definition",
		"definitionId", definition.ID,
		"entityType", definition.EntityType,
		"states", len(definition.States),
		"transitions", len(definition.Transitions))

	return nil
}

// Reload drops the cache. Re-validation happens lazily on next resolve.
func (r *DefinitionRegistry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]*models.WorkflowDefinition)
	r.byEnt = make(map[string]*models.WorkflowDefinition)
}

// admit validates a loaded definition and installs it in the cache.
func (r *DefinitionRegistry) admit(definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if err := ValidateDefinition(definition); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[definition.ID] = definition
	if definition.IsDefault {
		r.byEnt[definition.EntityType] = definition
	}

	return definition, nil
}
