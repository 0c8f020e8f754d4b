package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gateflow/gateflow/pkg/models"
)

// HistoryRepository is the append-only trail store. The insert derives the
// next per-instance sequence inside the statement; the unique constraint on
// (instance_id, sequence) catches any race the engine lock did not cover.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal history metadata: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO workflow_history
			(id, instance_id, sequence, kind, transition_id, from_state_id, to_state_id, actor, comments, metadata, occurred_at)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, $5, $6, $7, $8, $9, $10
		FROM workflow_history
		WHERE instance_id = $2
		RETURNING sequence
	`, entry.ID, entry.InstanceID, entry.Kind, entry.TransitionID,
		entry.FromStateID, entry.ToStateID, entry.Actor, entry.Comments,
		metadata, entry.OccurredAt)

	if err := row.Scan(&entry.Sequence); err != nil {
		return fmt.Errorf("failed to append history entry for instance %s: %w", entry.InstanceID, err)
	}

	return nil
}

func (r *HistoryRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , instance_id
		  , sequence
		  , kind
		  , transition_id
		  , from_state_id
		  , to_state_id
		  , actor
		  , comments
		  , metadata
		  , occurred_at
		FROM workflow_history
		WHERE instance_id = $1
		ORDER BY sequence
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for instance %s: %w", instanceID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.HistoryEntry, 0)

	for rows.Next() {
		var (
			entry        models.HistoryEntry
			transitionID sql.NullString
			fromStateID  sql.NullString
			toStateID    sql.NullString
			actor        sql.NullString
			comments     sql.NullString
			metadata     []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.Sequence,
			&entry.Kind,
			&transitionID,
			&fromStateID,
			&toStateID,
			&actor,
			&comments,
			&metadata,
			&entry.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.TransitionID = transitionID.String
		entry.FromStateID = fromStateID.String
		entry.ToStateID = toStateID.String
		entry.Actor = actor.String
		entry.Comments = comments.String

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal history metadata: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}
