package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

const uniqueViolation = "23505"

const instanceColumns = `
	id
  , definition_id
  , entity_type
  , entity_id
  , current_state_id
  , status
  , state_data
  , version
  , created_at
  , updated_at
`

// InstanceRepository stores one mutable row per entity. Updates are guarded
// by the optimistic version column.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	stateData, err := json.Marshal(instance.StateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_instances
			(id, definition_id, entity_type, entity_id, current_state_id, status, state_data, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, instance.ID, instance.DefinitionID, instance.EntityType, instance.EntityID,
		instance.CurrentStateID, instance.Status, stateData, instance.Version,
		instance.CreatedAt, instance.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &persistence.InstanceError{
				Op:         "Create",
				EntityType: instance.EntityType,
				EntityID:   instance.EntityID,
				Err:        persistence.ErrInstanceAlreadyExists,
			}
		}

		return fmt.Errorf("failed to create instance %s: %w", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE id = $1`, id)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.InstanceError{Op: "GetByID", InstanceID: id, Err: persistence.ErrInstanceNotFound}
		}

		return nil, err
	}

	return instance, nil
}

func (r *InstanceRepository) GetByEntity(ctx context.Context, entityType, entityID string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.InstanceError{
				Op:         "GetByEntity",
				EntityType: entityType,
				EntityID:   entityID,
				Err:        persistence.ErrInstanceNotFound,
			}
		}

		return nil, err
	}

	return instance, nil
}

func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	stateData, err := json.Marshal(instance.StateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state data: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_state_id = $1
		  , status = $2
		  , state_data = $3
		  , version = version + 1
		  , updated_at = $4
		WHERE id = $5 AND version = $6
	`, instance.CurrentStateID, instance.Status, stateData, instance.UpdatedAt,
		instance.ID, instance.Version)
	if err != nil {
		return fmt.Errorf("failed to update instance %s: %w", instance.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for instance %s: %w", instance.ID, err)
	}

	if affected == 0 {
		return &persistence.InstanceError{Op: "Update", InstanceID: instance.ID, Err: persistence.ErrVersionConflict}
	}

	instance.Version++

	return nil
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance  models.WorkflowInstance
		stateData []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.DefinitionID,
		&instance.EntityType,
		&instance.EntityID,
		&instance.CurrentStateID,
		&instance.Status,
		&stateData,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(stateData) > 0 {
		if err := json.Unmarshal(stateData, &instance.StateData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state data for instance %s: %w", instance.ID, err)
		}
	}

	return &instance, nil
}
