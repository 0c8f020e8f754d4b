package file

import (
	"context"
	"errors"
	"os"

	"github.com/gateflow/gateflow/pkg/models"
)

const historyDir = "history"

// HistoryRepository stores each instance's trail as one JSON array document.
// Append loads, extends and rewrites the document under the store mutex;
// there is no update or delete path.
type HistoryRepository struct {
	store *Persistence
}

func (r *HistoryRepository) Append(_ context.Context, entry *models.HistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entries, err := r.loadLocked(entry.InstanceID)
	if err != nil {
		return err
	}

	entry.Sequence = int64(len(entries)) + 1
	entries = append(entries, entry)

	return r.store.writeDocument(historyDir, entry.InstanceID, entries)
}

func (r *HistoryRepository) ListByInstance(_ context.Context, instanceID string) ([]*models.HistoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.loadLocked(instanceID)
}

func (r *HistoryRepository) loadLocked(instanceID string) ([]*models.HistoryEntry, error) {
	var entries []*models.HistoryEntry

	if err := r.store.readDocument(historyDir, instanceID, &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.HistoryEntry{}, nil
		}

		return nil, err
	}

	return entries, nil
}
