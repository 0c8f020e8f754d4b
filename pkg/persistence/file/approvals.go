package file

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

const approvalsDir = "approvals"

// ApprovalRepository stores approvals as one JSON document per ID.
type ApprovalRepository struct {
	store *Persistence
}

func (r *ApprovalRepository) Save(_ context.Context, approval *models.Approval) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeDocument(approvalsDir, approval.ID, approval)
}

func (r *ApprovalRepository) GetByID(_ context.Context, id string) (*models.Approval, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var approval models.Approval
	if err := r.store.readDocument(approvalsDir, id, &approval); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &persistence.ApprovalError{Op: "GetByID", ApprovalID: id, Err: persistence.ErrApprovalNotFound}
		}

		return nil, err
	}

	return &approval, nil
}

func (r *ApprovalRepository) ListForTransition(_ context.Context, instanceID, transitionID string) ([]*models.Approval, error) {
	return r.list(func(a *models.Approval) bool {
		return a.InstanceID == instanceID && a.TransitionID == transitionID
	}, 0)
}

func (r *ApprovalRepository) ListPendingOverdue(_ context.Context, now time.Time, limit int) ([]*models.Approval, error) {
	return r.list(func(a *models.Approval) bool {
		return a.Overdue(now)
	}, limit)
}

func (r *ApprovalRepository) ListPendingReminders(_ context.Context, now time.Time, limit int) ([]*models.Approval, error) {
	return r.list(func(a *models.Approval) bool {
		return a.Status == models.ApprovalPending &&
			!a.ReminderSent &&
			a.RemindAt != nil && now.After(*a.RemindAt)
	}, limit)
}

func (r *ApprovalRepository) list(match func(*models.Approval) bool, limit int) ([]*models.Approval, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids, err := r.store.listDocumentIDs(approvalsDir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Approval, 0)

	for _, id := range ids {
		var approval models.Approval
		if err := r.store.readDocument(approvalsDir, id, &approval); err != nil {
			return nil, err
		}

		if match(&approval) {
			matched = append(matched, &approval)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}
