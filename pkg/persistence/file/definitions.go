package file

import (
	"context"
	"errors"
	"os"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

const definitionsDir = "definitions"

// DefinitionRepository stores definitions as one JSON document per ID.
type DefinitionRepository struct {
	store *Persistence
}

func (r *DefinitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// At most one default per entity type: saving a new default clears the
	// flag on the previous one.
	if definition.IsDefault {
		ids, err := r.store.listDocumentIDs(definitionsDir)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if id == definition.ID {
				continue
			}

			var existing models.WorkflowDefinition
			if err := r.store.readDocument(definitionsDir, id, &existing); err != nil {
				return err
			}

			if existing.EntityType == definition.EntityType && existing.IsDefault {
				existing.IsDefault = false

				if err := r.store.writeDocument(definitionsDir, existing.ID, &existing); err != nil {
					return err
				}
			}
		}
	}

	return r.store.writeDocument(definitionsDir, definition.ID, definition)
}

func (r *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var definition models.WorkflowDefinition
	if err := r.store.readDocument(definitionsDir, id, &definition); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &persistence.DefinitionError{Op: "GetByID", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, err
	}

	return &definition, nil
}

func (r *DefinitionRepository) DefaultForEntityType(ctx context.Context, entityType string) (*models.WorkflowDefinition, error) {
	definitions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, definition := range definitions {
		if definition.EntityType == entityType && definition.IsDefault {
			return definition, nil
		}
	}

	return nil, &persistence.DefinitionError{Op: "DefaultForEntityType", EntityType: entityType, Err: persistence.ErrNoDefaultDefinition}
}

func (r *DefinitionRepository) List(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids, err := r.store.listDocumentIDs(definitionsDir)
	if err != nil {
		return nil, err
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		var definition models.WorkflowDefinition
		if err := r.store.readDocument(definitionsDir, id, &definition); err != nil {
			return nil, err
		}

		definitions = append(definitions, &definition)
	}

	return definitions, nil
}
