// Package approvals gates workflow transitions behind one or more approvals
// and sweeps overdue ones on a schedule.
package approvals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/protocol"
)

// ErrApprovalAlreadyResolved is returned when a decision is applied to an
// approval that already reached a terminal status.
var ErrApprovalAlreadyResolved = errors.New("approval already resolved")

// Decision is the caller-supplied verdict on a single approval.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Outcome is what a single resolution means for the gated transition.
type Outcome string

const (
	// OutcomePending means siblings are still outstanding; the transition
	// stays gated.
	OutcomePending Outcome = "pending"
	// OutcomeQuorum means every approval for the transition is approved; the
	// engine commits the transition.
	OutcomeQuorum Outcome = "quorum"
	// OutcomeRejected means the transition is abandoned by rejection.
	OutcomeRejected Outcome = "rejected"
	// OutcomeExpired means a hard-deadline approval lapsed; the transition is
	// abandoned the same way a rejection abandons it.
	OutcomeExpired Outcome = "expired"
)

// Resolution reports the effect of resolving or expiring one approval.
type Resolution struct {
	Approval     *models.Approval
	InstanceID   string
	TransitionID string
	Outcome      Outcome
}

// Coordinator tracks the approval rows gating pending transitions. It owns
// the approval status lifecycle; committing or abandoning the transition
// itself is the engine's job, driven by the Resolution outcomes returned
// here.
type Coordinator struct {
	repo     persistence.ApprovalRepository
	resolver protocol.PermissionResolver
	clock    protocol.Clock
	logger   *slog.Logger
}

// NewCoordinator creates an approval coordinator.
func NewCoordinator(
	repo persistence.ApprovalRepository,
	resolver protocol.PermissionResolver,
	clock protocol.Clock,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		repo:     repo,
		resolver: resolver,
		clock:    clock,
		logger:   logger.With("module", "approvals"),
	}
}

// RequestApprovals resolves the transition's approver specs to concrete
// approval rows and persists them as pending. Re-requesting while rows are
// already pending returns the existing rows without duplicating them; rows
// left terminal by an earlier abandoned attempt are ignored, so a fresh
// request after a rejection starts a clean approval round.
func (c *Coordinator) RequestApprovals(
	ctx context.Context,
	instanceID string,
	transitionID string,
	specs []*models.ApproverSpec,
) ([]*models.Approval, error) {
	existing, err := c.repo.ListForTransition(ctx, instanceID, transitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals for transition %s: %w", transitionID, err)
	}

	pending := make([]*models.Approval, 0, len(existing))

	for _, approval := range existing {
		if approval.Status == models.ApprovalPending {
			pending = append(pending, approval)
		}
	}

	if len(pending) > 0 {
		return pending, nil
	}

	now := c.clock.Now()
	created := make([]*models.Approval, 0, len(specs))
	seen := make(map[string]struct{})

	for _, spec := range specs {
		identities, err := c.resolver.ResolveApprovers(ctx, spec.Type, spec.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve approver %s/%s: %w", spec.Type, spec.ID, err)
		}

		for _, identity := range identities {
			if _, duplicate := seen[identity]; duplicate {
				continue
			}

			seen[identity] = struct{}{}

			approval := &models.Approval{
				ID:           uuid.New().String(),
				InstanceID:   instanceID,
				TransitionID: transitionID,
				ApproverType: spec.Type,
				ApproverID:   identity,
				Status:       models.ApprovalPending,
				HardDeadline: spec.HardDeadline,
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			if spec.DueIn > 0 {
				due := now.Add(spec.DueIn.Std())
				approval.DueDate = &due
			}

			if spec.RemindAfter > 0 {
				remind := now.Add(spec.RemindAfter.Std())
				approval.RemindAt = &remind
			}

			if err := c.repo.Save(ctx, approval); err != nil {
				return nil, fmt.Errorf("failed to save approval for %s: %w", identity, err)
			}

			created = append(created, approval)
		}
	}

	c.logger.With(
		"instance_id", instanceID,
		"transition_id", transitionID,
		"approvals", len(created),
	).Info("Requested approvals for gated transition")

	return created, nil
}

// Resolve applies an approve or reject decision to a single approval. A
// rejection cancels every pending sibling of the same transition. The
// returned Resolution tells the engine whether to commit, abandon, or keep
// waiting.
func (c *Coordinator) Resolve(
	ctx context.Context,
	approvalID string,
	decision Decision,
	resolvedBy string,
	comments string,
) (*Resolution, error) {
	approval, err := c.repo.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	if approval.Resolved() {
		return nil, fmt.Errorf("approval %s: %w", approvalID, ErrApprovalAlreadyResolved)
	}

	now := c.clock.Now()

	switch decision {
	case DecisionApproved:
		approval.Status = models.ApprovalApproved
	case DecisionRejected:
		approval.Status = models.ApprovalRejected
	default:
		return nil, fmt.Errorf("unknown approval decision %q", decision)
	}

	approval.ResolvedBy = resolvedBy
	approval.ResolvedAt = &now
	approval.Comments = comments
	approval.UpdatedAt = now

	if err := c.repo.Save(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval %s: %w", approvalID, err)
	}

	resolution := &Resolution{
		Approval:     approval,
		InstanceID:   approval.InstanceID,
		TransitionID: approval.TransitionID,
	}

	if decision == DecisionRejected {
		if err := c.cancelSiblings(ctx, approval, now); err != nil {
			return nil, err
		}

		resolution.Outcome = OutcomeRejected

		c.logger.With("approval_id", approvalID, "instance_id", approval.InstanceID).
			Info("Approval rejected, transition abandoned")

		return resolution, nil
	}

	quorum, err := c.quorumReached(ctx, approval)
	if err != nil {
		return nil, err
	}

	if quorum {
		resolution.Outcome = OutcomeQuorum
	} else {
		resolution.Outcome = OutcomePending
	}

	c.logger.With(
		"approval_id", approvalID,
		"instance_id", approval.InstanceID,
		"outcome", resolution.Outcome,
	).Info("Approval resolved")

	return resolution, nil
}

// Expire marks an overdue approval as expired. Hard-deadline approvals
// abandon the gated transition and cancel their pending siblings. A soft
// deadline leaves the transition gated while siblings are still pending;
// when the last pending row lapses the round is settled by what remains,
// quorum on any approved sibling, abandonment otherwise.
func (c *Coordinator) Expire(ctx context.Context, approvalID string) (*Resolution, error) {
	approval, err := c.repo.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	if approval.Resolved() {
		return nil, fmt.Errorf("approval %s: %w", approvalID, ErrApprovalAlreadyResolved)
	}

	now := c.clock.Now()
	approval.Status = models.ApprovalExpired
	approval.ResolvedAt = &now
	approval.UpdatedAt = now

	if err := c.repo.Save(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval %s: %w", approvalID, err)
	}

	resolution := &Resolution{
		Approval:     approval,
		InstanceID:   approval.InstanceID,
		TransitionID: approval.TransitionID,
	}

	if approval.HardDeadline {
		if err := c.cancelSiblings(ctx, approval, now); err != nil {
			return nil, err
		}

		resolution.Outcome = OutcomeExpired
	} else {
		resolution.Outcome, err = c.softExpiryOutcome(ctx, approval)
		if err != nil {
			return nil, err
		}
	}

	c.logger.With(
		"approval_id", approvalID,
		"instance_id", approval.InstanceID,
		"hard_deadline", approval.HardDeadline,
	).Info("Approval expired")

	return resolution, nil
}

// MarkReminderSent records that the reminder intent for an approval was
// dispatched so the sweep does not send it twice.
func (c *Coordinator) MarkReminderSent(ctx context.Context, approvalID string) error {
	approval, err := c.repo.GetByID(ctx, approvalID)
	if err != nil {
		return err
	}

	approval.ReminderSent = true
	approval.UpdatedAt = c.clock.Now()

	if err := c.repo.Save(ctx, approval); err != nil {
		return fmt.Errorf("failed to save approval %s: %w", approvalID, err)
	}

	return nil
}

// ListPending returns the outstanding approvals gating a transition.
func (c *Coordinator) ListPending(ctx context.Context, instanceID, transitionID string) ([]*models.Approval, error) {
	all, err := c.repo.ListForTransition(ctx, instanceID, transitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals for transition %s: %w", transitionID, err)
	}

	pending := make([]*models.Approval, 0, len(all))

	for _, approval := range all {
		if approval.Status == models.ApprovalPending {
			pending = append(pending, approval)
		}
	}

	return pending, nil
}

// cancelSiblings expires every pending sibling of the given approval.
func (c *Coordinator) cancelSiblings(ctx context.Context, approval *models.Approval, now time.Time) error {
	siblings, err := c.repo.ListForTransition(ctx, approval.InstanceID, approval.TransitionID)
	if err != nil {
		return fmt.Errorf("failed to list sibling approvals: %w", err)
	}

	for _, sibling := range siblings {
		if sibling.ID == approval.ID || sibling.Status != models.ApprovalPending {
			continue
		}

		sibling.Status = models.ApprovalExpired
		sibling.ResolvedAt = &now
		sibling.UpdatedAt = now

		if err := c.repo.Save(ctx, sibling); err != nil {
			return fmt.Errorf("failed to cancel sibling approval %s: %w", sibling.ID, err)
		}
	}

	return nil
}

// softExpiryOutcome decides what expiring a soft-deadline approval means for
// the round. Siblings still pending keep the transition gated; once the last
// pending row lapses, an approved sibling completes the quorum, and a round
// that collected no approvals is abandoned the way a hard expiry abandons it.
func (c *Coordinator) softExpiryOutcome(ctx context.Context, approval *models.Approval) (Outcome, error) {
	siblings, err := c.repo.ListForTransition(ctx, approval.InstanceID, approval.TransitionID)
	if err != nil {
		return OutcomePending, fmt.Errorf("failed to list sibling approvals: %w", err)
	}

	approved := false

	for _, sibling := range siblings {
		switch sibling.Status {
		case models.ApprovalPending:
			return OutcomePending, nil
		case models.ApprovalApproved:
			approved = true
		}
	}

	if approved {
		return OutcomeQuorum, nil
	}

	return OutcomeExpired, nil
}

// quorumReached reports whether the approval round is complete. A round is
// complete when no pending rows remain; rejection cancels its siblings and
// abandons the transition before this check can run, and terminal rows from
// an earlier abandoned round must not gate the current one.
func (c *Coordinator) quorumReached(ctx context.Context, approval *models.Approval) (bool, error) {
	siblings, err := c.repo.ListForTransition(ctx, approval.InstanceID, approval.TransitionID)
	if err != nil {
		return false, fmt.Errorf("failed to list sibling approvals: %w", err)
	}

	for _, sibling := range siblings {
		if sibling.Status == models.ApprovalPending {
			return false, nil
		}
	}

	return true, nil
}
