// Package history records the append-only audit trail of workflow instances.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/protocol"
)

// Recorder appends history entries and reads them back in order. Entries are
// never updated or deleted; the repository assigns a per-instance sequence
// number under its own synchronization, so concurrent appends for the same
// instance never collide.
type Recorder struct {
	repo   persistence.HistoryRepository
	clock  protocol.Clock
	logger *slog.Logger
}

// NewRecorder creates a recorder on top of a history repository.
func NewRecorder(repo persistence.HistoryRepository, clock protocol.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		clock:  clock,
		logger: logger.With("module", "history"),
	}
}

// Record appends one entry for the instance. The entry's ID, sequence number
// and timestamp are assigned here; callers fill in the what and who.
func (r *Recorder) Record(ctx context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error) {
	if entry.InstanceID == "" {
		return nil, fmt.Errorf("history entry requires an instance id")
	}

	entry.ID = uuid.New().String()
	entry.OccurredAt = r.clock.Now()

	if err := r.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append history entry: %w", err)
	}

	r.logger.With(
		"instance_id", entry.InstanceID,
		"kind", entry.Kind,
		"sequence", entry.Sequence,
	).Debug("Recorded history entry")

	return entry, nil
}

// ListByInstance returns the full trail for an instance in ascending sequence
// order.
func (r *Recorder) ListByInstance(ctx context.Context, instanceID string) ([]*models.HistoryEntry, error) {
	entries, err := r.repo.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for instance %s: %w", instanceID, err)
	}

	return entries, nil
}
