package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

// DefinitionRepository stores definitions with the full graph as one JSONB
// document. Definitions are reference data; queries filter on the extracted
// entity_type and is_default columns.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	document, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", definition.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if definition.IsDefault {
		_, err = tx.ExecContext(ctx, `
			UPDATE workflow_definitions
			SET is_default = FALSE, updated_at = $1
			WHERE entity_type = $2 AND is_default AND id <> $3
		`, now, definition.EntityType, definition.ID)
		if err != nil {
			return fmt.Errorf("failed to clear previous default definition: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, entity_type, is_default, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			entity_type = EXCLUDED.entity_type,
			is_default = EXCLUDED.is_default,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, definition.ID, definition.EntityType, definition.IsDefault, document, definition.CreatedAt, definition.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save definition %s: %w", definition.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit definition %s: %w", definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document FROM workflow_definitions WHERE id = $1`, id)

	definition, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.DefinitionError{Op: "GetByID", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, err
	}

	return definition, nil
}

func (r *DefinitionRepository) DefaultForEntityType(ctx context.Context, entityType string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document FROM workflow_definitions WHERE entity_type = $1 AND is_default`, entityType)

	definition, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.DefinitionError{Op: "DefaultForEntityType", EntityType: entityType, Err: persistence.ErrNoDefaultDefinition}
		}

		return nil, err
	}

	return definition, nil
}

func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document FROM workflow_definitions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		return nil, err
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(document, &definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition document: %w", err)
	}

	return &definition, nil
}
