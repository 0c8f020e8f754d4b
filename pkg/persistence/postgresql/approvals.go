package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

const approvalColumns = `
	id
  , instance_id
  , transition_id
  , approver_type
  , approver_id
  , status
  , due_date
  , remind_at
  , reminder_sent
  , hard_deadline
  , comments
  , resolved_by
  , resolved_at
  , created_at
  , updated_at
`

// ApprovalRepository stores the approval rows gating pending transitions.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_approvals (`+approvalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reminder_sent = EXCLUDED.reminder_sent,
			comments = EXCLUDED.comments,
			resolved_by = EXCLUDED.resolved_by,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = EXCLUDED.updated_at
	`, approval.ID, approval.InstanceID, approval.TransitionID,
		approval.ApproverType, approval.ApproverID, approval.Status,
		approval.DueDate, approval.RemindAt, approval.ReminderSent,
		approval.HardDeadline, approval.Comments, approval.ResolvedBy,
		approval.ResolvedAt, approval.CreatedAt, approval.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save approval %s: %w", approval.ID, err)
	}

	return nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM workflow_approvals WHERE id = $1`, id)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ApprovalError{Op: "GetByID", ApprovalID: id, Err: persistence.ErrApprovalNotFound}
		}

		return nil, err
	}

	return approval, nil
}

func (r *ApprovalRepository) ListForTransition(ctx context.Context, instanceID, transitionID string) ([]*models.Approval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE instance_id = $1 AND transition_id = $2
		ORDER BY created_at
	`, instanceID, transitionID)
}

func (r *ApprovalRepository) ListPendingOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Approval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE status = 'pending' AND due_date IS NOT NULL AND due_date < $1
		ORDER BY due_date
		LIMIT $2
	`, now, limit)
}

func (r *ApprovalRepository) ListPendingReminders(ctx context.Context, now time.Time, limit int) ([]*models.Approval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE status = 'pending' AND NOT reminder_sent AND remind_at IS NOT NULL AND remind_at < $1
		ORDER BY remind_at
		LIMIT $2
	`, now, limit)
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...any) ([]*models.Approval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approvals := make([]*models.Approval, 0)

	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}

		approvals = append(approvals, approval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	return approvals, nil
}

func scanApproval(row rowScanner) (*models.Approval, error) {
	var (
		approval   models.Approval
		dueDate    sql.NullTime
		remindAt   sql.NullTime
		comments   sql.NullString
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)

	err := row.Scan(
		&approval.ID,
		&approval.InstanceID,
		&approval.TransitionID,
		&approval.ApproverType,
		&approval.ApproverID,
		&approval.Status,
		&dueDate,
		&remindAt,
		&approval.ReminderSent,
		&approval.HardDeadline,
		&comments,
		&resolvedBy,
		&resolvedAt,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		approval.DueDate = &dueDate.Time
	}

	if remindAt.Valid {
		approval.RemindAt = &remindAt.Time
	}

	approval.Comments = comments.String
	approval.ResolvedBy = resolvedBy.String

	if resolvedAt.Valid {
		approval.ResolvedAt = &resolvedAt.Time
	}

	return &approval, nil
}
