package approvals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/protocol"
)

const defaultSweepBatch = 100

// ExpirationHandler is implemented by the engine. The sweeper only discovers
// due approvals; acting on one requires the per-instance lock, which the
// handler takes before expiring or reminding.
type ExpirationHandler interface {
	HandleApprovalExpiry(ctx context.Context, approval *models.Approval) error
	HandleApprovalReminder(ctx context.Context, approval *models.Approval) error
}

// Sweeper periodically scans for overdue and reminder-due approvals and
// hands each to the expiration handler.
type Sweeper struct {
	repo     persistence.ApprovalRepository
	handler  ExpirationHandler
	clock    protocol.Clock
	logger   *slog.Logger
	cronExpr string
	batch    int

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper creates an expiration sweeper. cronExpr is a standard five-field
// cron expression controlling the sweep cadence.
func NewSweeper(
	repo persistence.ApprovalRepository,
	handler ExpirationHandler,
	clock protocol.Clock,
	logger *slog.Logger,
	cronExpr string,
) (*Sweeper, error) {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid sweep cron expression %q: %w", cronExpr, err)
	}

	return &Sweeper{
		repo:     repo,
		handler:  handler,
		clock:    clock,
		logger:   logger.With("module", "approval_sweeper"),
		cronExpr: cronExpr,
		batch:    defaultSweepBatch,
	}, nil
}

// Start schedules the sweep and runs it until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(s.cronExpr, func() {
		s.CheckExpirations(s.ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule expiration sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Approval sweeper started", "cron", s.cronExpr)

	return nil
}

// Stop halts the sweep schedule. A sweep in flight finishes first.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("Approval sweeper stopped")
	}
}

// CheckExpirations runs one sweep: overdue pending approvals are expired and
// unreminded due approvals get their reminder. Failures on individual
// approvals are logged and do not stop the sweep.
func (s *Sweeper) CheckExpirations(ctx context.Context) {
	now := s.clock.Now()

	overdue, err := s.repo.ListPendingOverdue(ctx, now, s.batch)
	if err != nil {
		s.logger.Error("Failed to list overdue approvals", "error", err)
	} else {
		for _, approval := range overdue {
			if err := s.handler.HandleApprovalExpiry(ctx, approval); err != nil {
				s.logger.Error("Failed to expire approval",
					"approval_id", approval.ID,
					"instance_id", approval.InstanceID,
					"error", err)
			}
		}
	}

	reminders, err := s.repo.ListPendingReminders(ctx, now, s.batch)
	if err != nil {
		s.logger.Error("Failed to list reminder-due approvals", "error", err)

		return
	}

	for _, approval := range reminders {
		if err := s.handler.HandleApprovalReminder(ctx, approval); err != nil {
			s.logger.Error("Failed to remind approval",
				"approval_id", approval.ID,
				"instance_id", approval.InstanceID,
				"error", err)
		}
	}
}
