package engine

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gateflow/gateflow/pkg/approvals"
	"github.com/gateflow/gateflow/pkg/eventbus"
	"github.com/gateflow/gateflow/pkg/events"
	"github.com/gateflow/gateflow/pkg/history"
	"github.com/gateflow/gateflow/pkg/lock"
	"github.com/gateflow/gateflow/pkg/mocks"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/persistence/file"
	"github.com/gateflow/gateflow/pkg/protocol"
	"github.com/gateflow/gateflow/pkg/registry"
	"github.com/gateflow/gateflow/pkg/rules"
)

type testEngine struct {
	*Engine

	store       *file.Persistence
	registry    *registry.DefinitionRegistry
	entities    *mocks.MockEntityStore
	permissions *mocks.MockPermissionResolver
	dispatcher  *mocks.CapturingDispatcher
	clock       *mocks.FakeClock
}

func newTestEngine(t *testing.T, definitions ...*models.WorkflowDefinition) *testEngine {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	defRegistry := registry.NewDefinitionRegistry(store.Definitions(), logger)
	clock := mocks.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	entities := &mocks.MockEntityStore{}
	permissions := &mocks.MockPermissionResolver{}
	dispatcher := &mocks.CapturingDispatcher{}
	recorder := history.NewRecorder(store.History(), clock, logger)
	coordinator := approvals.NewCoordinator(store.Approvals(), permissions, clock, logger)

	for _, definition := range definitions {
		require.NoError(t, defRegistry.Register(t.Context(), definition))
	}

	engine := NewEngine(
		store,
		defRegistry,
		rules.NewEvaluator(logger),
		recorder,
		coordinator,
		entities,
		permissions,
		dispatcher,
		lock.NewLocalLocker(),
		clock,
		logger,
		nil,
	)

	return &testEngine{
		Engine:      engine,
		store:       store,
		registry:    defRegistry,
		entities:    entities,
		permissions: permissions,
		dispatcher:  dispatcher,
		clock:       clock,
	}
}

// allowAll installs permissive defaults for the collaborator mocks.
func (h *testEngine) allowAll() {
	h.permissions.On("ResolveCallerPermissions", mock.Anything, mock.Anything).
		Return([]string{"doc.submit", "doc.publish"}, nil)
	h.permissions.On("ResolveApprovers", mock.Anything, models.ApproverRole, "editors").
		Return([]string{"user:ed1", "user:ed2"}, nil)
	h.entities.On("LoadEntitySnapshot", mock.Anything, "document", mock.Anything).
		Return(map[string]any{"amount": 100.0, "title": "Quarterly Report"}, nil)
}

func documentDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:         "doc-flow",
		Name:       "Document Flow",
		EntityType: "document",
		Version:    1,
		IsDefault:  true,
		States: []*models.WorkflowState{
			{ID: "draft", Name: "Draft", IsInitial: true},
			{ID: "review", Name: "In Review"},
			{
				ID: "published", Name: "Published", IsTerminal: true,
				EntryRules: []*models.Action{
					{Kind: models.ActionSetField, Field: "published", Value: true},
				},
			},
		},
		Transitions: []*models.WorkflowTransition{
			{
				ID: "submit", Name: "Submit", FromStateID: "draft", ToStateID: "review",
				RequiredPermissions: []string{"doc.submit"},
				ValidationRules: &models.Condition{
					Kind: models.ConditionCompare, Field: "entity.amount", Op: models.OpLessOrEqual, Value: 5000,
				},
				AutomationRules: []*models.Action{
					{Kind: models.ActionNotify, Channel: "email", Recipient: "editors@example.com", Template: "submitted"},
				},
			},
			{
				ID: "publish", Name: "Publish", FromStateID: "review", ToStateID: "published",
				Approvers: []*models.ApproverSpec{{
					Type:         models.ApproverRole,
					ID:           "editors",
					DueIn:        models.Duration(48 * time.Hour),
					RemindAfter:  models.Duration(24 * time.Hour),
					HardDeadline: true,
				}},
			},
			{ID: "revise", Name: "Revise", FromStateID: "review", ToStateID: "draft"},
		},
	}
}

var alice = protocol.CallerContext{SubjectID: "user:alice"}

func countEvents(list []eventbus.Event, kind events.EventType) int {
	count := 0

	for _, event := range list {
		if event.GetType() == kind {
			count++
		}
	}

	return count
}

// submitToReview moves a fresh instance into the review state.
func submitToReview(t *testing.T, h *testEngine) *models.WorkflowInstance {
	t.Helper()

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "")
	require.NoError(t, err)
	require.Equal(t, ResultCommitted, result.Kind)

	return result.Instance
}

// gatePublish requests the gated publish transition and returns the pending
// approval rows.
func gatePublish(t *testing.T, h *testEngine) (*models.WorkflowInstance, []*models.Approval) {
	t.Helper()

	instance := submitToReview(t, h)

	result, err := h.RequestTransition(t.Context(), instance.ID, "publish", alice, "ready to go")
	require.NoError(t, err)
	require.Equal(t, ResultPendingApproval, result.Kind)
	require.Len(t, result.Approvals, 2)

	return result.Instance, result.Approvals
}

func TestCreateInstanceUsesDefaultDefinition(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, "doc-flow", instance.DefinitionID)
	assert.Equal(t, "draft", instance.CurrentStateID)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)
	assert.Equal(t, int64(1), instance.Version)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.HistoryInstanceCreated, trail[0].Kind)
	assert.Equal(t, "draft", trail[0].ToStateID)
}

func TestCreateInstanceRejectsDuplicateEntity(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	_, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	_, err = h.CreateInstance(t.Context(), "document", "doc-1", "")
	assert.ErrorIs(t, err, persistence.ErrInstanceAlreadyExists)
}

func TestCreateInstanceWithoutDefaultDefinition(t *testing.T) {
	h := newTestEngine(t)

	_, err := h.CreateInstance(t.Context(), "invoice", "inv-1", "")
	assert.ErrorIs(t, err, persistence.ErrNoDefaultDefinition)
}

func TestCreateInstanceRejectsEntityTypeMismatch(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	_, err := h.CreateInstance(t.Context(), "invoice", "inv-1", "doc-flow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targets entity type")
}

func TestCreateInstanceRunsInitialEntryRules(t *testing.T) {
	definition := documentDefinition()
	definition.States[0].EntryRules = []*models.Action{
		{Kind: models.ActionSetField, Field: "review.round", Value: 1},
		{Kind: models.ActionNotify, Channel: "email", Recipient: "author@example.com", Template: "created"},
	}

	h := newTestEngine(t, definition)
	h.allowAll()

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	review, ok := instance.StateData["review"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, review["round"])

	assert.Equal(t, 1, countEvents(h.dispatcher.Events(), events.NotificationIntentEvent))
}

func TestRequestTransitionCommits(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)
	h.dispatcher.Reset()

	result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "please review")
	require.NoError(t, err)

	assert.Equal(t, ResultCommitted, result.Kind)
	assert.Equal(t, "review", result.Instance.CurrentStateID)

	stored, err := h.store.Instances().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", stored.CurrentStateID)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	committed := trail[1]
	assert.Equal(t, models.HistoryTransitionCommitted, committed.Kind)
	assert.Equal(t, "submit", committed.TransitionID)
	assert.Equal(t, "draft", committed.FromStateID)
	assert.Equal(t, "review", committed.ToStateID)
	assert.Equal(t, "user:alice", committed.Actor)
	assert.Equal(t, "please review", committed.Comments)

	captured := h.dispatcher.Events()
	assert.Equal(t, 1, countEvents(captured, events.TransitionCommittedEvent))
	assert.Equal(t, 1, countEvents(captured, events.NotificationIntentEvent))
}

func TestRequestTransitionAppliesSetFieldToEmptyStateData(t *testing.T) {
	definition := documentDefinition()
	definition.Transitions[0].AutomationRules = []*models.Action{
		{Kind: models.ActionSetField, Field: "submission.count", Value: 1},
	}

	h := newTestEngine(t, definition)
	h.allowAll()

	// The instance is written with no state data and reloaded from the store
	// before the transition runs; the set-field write must still land.
	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "")
	require.NoError(t, err)
	require.Equal(t, ResultCommitted, result.Kind)

	submission, ok := result.Instance.StateData["submission"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, submission["count"])

	stored, err := h.store.Instances().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.StateData)
}

func TestRequestTransitionDeniedByValidationRule(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.permissions.On("ResolveCallerPermissions", mock.Anything, mock.Anything).
		Return([]string{"doc.submit"}, nil)
	h.entities.On("LoadEntitySnapshot", mock.Anything, "document", mock.Anything).
		Return(map[string]any{"amount": 9000.0}, nil)

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "")
	require.NoError(t, err)

	assert.Equal(t, ResultDenied, result.Kind)
	assert.NotEmpty(t, result.Reason)
	assert.Equal(t, "draft", result.Instance.CurrentStateID)

	// Denials leave no mark on the audit trail.
	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestRequestTransitionDeniedByPermission(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.permissions.On("ResolveCallerPermissions", mock.Anything, mock.Anything).
		Return([]string{}, nil)
	h.entities.On("LoadEntitySnapshot", mock.Anything, "document", mock.Anything).
		Return(map[string]any{"amount": 100.0}, nil)

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "")
	require.NoError(t, err)

	assert.Equal(t, ResultDenied, result.Kind)
	assert.Contains(t, result.Reason, "doc.submit")
}

func TestRequestTransitionUnknownTransition(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	_, err = h.RequestTransition(t.Context(), instance.ID, "archive", alice, "")
	assert.ErrorIs(t, err, ErrTransitionNotFound)
}

func TestRequestTransitionFromWrongState(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	// publish starts at review, the instance is still at draft.
	_, err = h.RequestTransition(t.Context(), instance.ID, "publish", alice, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRequestTransitionRequiresValidCaller(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	_, err = h.RequestTransition(t.Context(), instance.ID, "submit", protocol.CallerContext{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid caller context")
}

func TestGatedTransitionApproveToCommit(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	instance, pending := gatePublish(t, h)

	// The instance stays in review with the pending marker set.
	assert.Equal(t, "review", instance.CurrentStateID)

	view, err := h.GetInstanceStatus(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "publish", view.PendingTransitionID)
	assert.Len(t, view.PendingApprovals, 2)

	// A second transition request is refused while approvals are pending.
	_, err = h.RequestTransition(t.Context(), instance.ID, "revise", alice, "")
	assert.ErrorIs(t, err, ErrTransitionAlreadyPending)

	ed1 := protocol.CallerContext{SubjectID: "user:ed1"}
	first, err := h.ResolveApproval(t.Context(), pending[0].ID, approvals.DecisionApproved, ed1, "")
	require.NoError(t, err)
	assert.Equal(t, approvals.OutcomePending, first.Outcome)
	assert.Equal(t, "review", first.Instance.CurrentStateID)

	ed2 := protocol.CallerContext{SubjectID: "user:ed2"}
	second, err := h.ResolveApproval(t.Context(), pending[1].ID, approvals.DecisionApproved, ed2, "ship it")
	require.NoError(t, err)
	assert.Equal(t, approvals.OutcomeQuorum, second.Outcome)
	assert.Equal(t, "published", second.Instance.CurrentStateID)
	assert.Equal(t, models.InstanceStatusArchived, second.Instance.Status)
	assert.Equal(t, true, second.Instance.StateData["published"])

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, models.HistoryTransitionCommitted, last.Kind)
	assert.Equal(t, "publish", last.TransitionID)
	assert.Equal(t, "user:ed2", last.Actor)

	// A terminal instance refuses further transitions.
	_, err = h.RequestTransition(t.Context(), instance.ID, "revise", alice, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestGatedTransitionRejection(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	instance, pending := gatePublish(t, h)

	ed1 := protocol.CallerContext{SubjectID: "user:ed1"}
	result, err := h.ResolveApproval(t.Context(), pending[0].ID, approvals.DecisionRejected, ed1, "needs sources")
	require.NoError(t, err)

	assert.Equal(t, approvals.OutcomeRejected, result.Outcome)
	assert.Equal(t, "review", result.Instance.CurrentStateID)

	_, stillPending := result.Instance.PendingTransitionID()
	assert.False(t, stillPending)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, models.HistoryTransitionAbandoned, last.Kind)
	assert.Equal(t, "publish", last.TransitionID)
	assert.Equal(t, "rejected", last.Metadata["cause"])

	// The transition can be requested again after the rejection.
	retry, err := h.RequestTransition(t.Context(), instance.ID, "publish", alice, "second attempt")
	require.NoError(t, err)
	assert.Equal(t, ResultPendingApproval, retry.Kind)
	assert.Len(t, retry.Approvals, 2)
}

func TestHardDeadlineExpiryAbandonsTransition(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	instance, pending := gatePublish(t, h)
	h.dispatcher.Reset()
	h.clock.Advance(72 * time.Hour)

	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[0]))

	captured := h.dispatcher.Events()
	assert.Equal(t, 1, countEvents(captured, events.ApprovalEscalatedEvent))
	assert.Equal(t, 1, countEvents(captured, events.TransitionAbandonedEvent))

	stored, err := h.store.Instances().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", stored.CurrentStateID)

	_, stillPending := stored.PendingTransitionID()
	assert.False(t, stillPending)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, models.HistoryTransitionAbandoned, last.Kind)
	assert.Equal(t, "expired", last.Metadata["cause"])

	// Expiring the same approval again is a no-op.
	h.dispatcher.Reset()
	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[0]))
	assert.Empty(t, h.dispatcher.Events())
}

func TestSoftDeadlineExpiryKeepsTransitionGated(t *testing.T) {
	definition := documentDefinition()
	definition.Transitions[1].Approvers = []*models.ApproverSpec{{
		Type:  models.ApproverRole,
		ID:    "editors",
		DueIn: models.Duration(time.Hour),
	}}

	h := newTestEngine(t, definition)
	h.allowAll()

	instance, pending := gatePublish(t, h)
	h.dispatcher.Reset()
	h.clock.Advance(2 * time.Hour)

	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[0]))

	captured := h.dispatcher.Events()
	assert.Equal(t, 1, countEvents(captured, events.ApprovalEscalatedEvent))
	assert.Equal(t, 0, countEvents(captured, events.TransitionAbandonedEvent))

	// The transition stays gated on the surviving approval.
	view, err := h.GetInstanceStatus(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "publish", view.PendingTransitionID)
	require.Len(t, view.PendingApprovals, 1)
	assert.Equal(t, pending[1].ID, view.PendingApprovals[0].ID)
}

func TestSoftDeadlineExpiryCommitsOnApprovedSibling(t *testing.T) {
	definition := documentDefinition()
	definition.Transitions[1].Approvers = []*models.ApproverSpec{{
		Type:  models.ApproverRole,
		ID:    "editors",
		DueIn: models.Duration(time.Hour),
	}}

	h := newTestEngine(t, definition)
	h.allowAll()

	instance, pending := gatePublish(t, h)

	ed1 := protocol.CallerContext{SubjectID: "user:ed1"}
	first, err := h.ResolveApproval(t.Context(), pending[0].ID, approvals.DecisionApproved, ed1, "")
	require.NoError(t, err)
	require.Equal(t, approvals.OutcomePending, first.Outcome)

	h.dispatcher.Reset()
	h.clock.Advance(2 * time.Hour)

	// The last pending approval lapses; the earlier approval completes the
	// round and the transition commits.
	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[1]))

	captured := h.dispatcher.Events()
	assert.Equal(t, 1, countEvents(captured, events.ApprovalEscalatedEvent))
	assert.Equal(t, 1, countEvents(captured, events.TransitionCommittedEvent))
	assert.Equal(t, 0, countEvents(captured, events.TransitionAbandonedEvent))

	stored, err := h.store.Instances().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "published", stored.CurrentStateID)
	assert.Equal(t, models.InstanceStatusArchived, stored.Status)

	_, stillPending := stored.PendingTransitionID()
	assert.False(t, stillPending)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, models.HistoryTransitionCommitted, last.Kind)
	assert.Equal(t, "publish", last.TransitionID)
	assert.Equal(t, "system:sweeper", last.Actor)
}

func TestSoftDeadlineExpiryOfUnapprovedRoundAbandons(t *testing.T) {
	definition := documentDefinition()
	definition.Transitions[1].Approvers = []*models.ApproverSpec{{
		Type:  models.ApproverRole,
		ID:    "editors",
		DueIn: models.Duration(time.Hour),
	}}

	h := newTestEngine(t, definition)
	h.allowAll()

	instance, pending := gatePublish(t, h)
	h.dispatcher.Reset()
	h.clock.Advance(2 * time.Hour)

	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[0]))
	require.NoError(t, h.HandleApprovalExpiry(t.Context(), pending[1]))

	captured := h.dispatcher.Events()
	assert.Equal(t, 2, countEvents(captured, events.ApprovalEscalatedEvent))
	assert.Equal(t, 1, countEvents(captured, events.TransitionAbandonedEvent))

	// The instance is not wedged: the marker is cleared and the transition
	// can be requested again.
	stored, err := h.store.Instances().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", stored.CurrentStateID)

	_, stillPending := stored.PendingTransitionID()
	assert.False(t, stillPending)

	retry, err := h.RequestTransition(t.Context(), instance.ID, "publish", alice, "second attempt")
	require.NoError(t, err)
	assert.Equal(t, ResultPendingApproval, retry.Kind)
	assert.Len(t, retry.Approvals, 2)
}

func TestHandleApprovalReminder(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	_, pending := gatePublish(t, h)
	h.dispatcher.Reset()
	h.clock.Advance(25 * time.Hour)

	require.NoError(t, h.HandleApprovalReminder(t.Context(), pending[0]))
	assert.Equal(t, 1, countEvents(h.dispatcher.Events(), events.ApprovalReminderEvent))

	// The reminder is sent at most once.
	h.dispatcher.Reset()
	require.NoError(t, h.HandleApprovalReminder(t.Context(), pending[0]))
	assert.Empty(t, h.dispatcher.Events())
}

func TestResolveApprovalTwiceFails(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	_, pending := gatePublish(t, h)

	ed1 := protocol.CallerContext{SubjectID: "user:ed1"}
	_, err := h.ResolveApproval(t.Context(), pending[0].ID, approvals.DecisionApproved, ed1, "")
	require.NoError(t, err)

	_, err = h.ResolveApproval(t.Context(), pending[0].ID, approvals.DecisionRejected, ed1, "")
	assert.ErrorIs(t, err, approvals.ErrApprovalAlreadyResolved)
}

func TestResolveApprovalNotFound(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	_, err := h.ResolveApproval(t.Context(), "missing", approvals.DecisionApproved, alice, "")
	assert.ErrorIs(t, err, persistence.ErrApprovalNotFound)
}

func TestConcurrentTransitionRequestsSerialize(t *testing.T) {
	h := newTestEngine(t, documentDefinition())
	h.allowAll()

	instance, err := h.CreateInstance(t.Context(), "document", "doc-1", "")
	require.NoError(t, err)

	type outcome struct {
		result *TransitionResult
		err    error
	}

	results := make(chan outcome, 2)

	var wg sync.WaitGroup

	for range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := h.RequestTransition(t.Context(), instance.ID, "submit", alice, "")
			results <- outcome{result: result, err: err}
		}()
	}

	wg.Wait()
	close(results)

	committed, illegal := 0, 0

	for r := range results {
		switch {
		case r.err == nil && r.result.Kind == ResultCommitted:
			committed++
		case assert.ErrorIs(t, r.err, ErrIllegalTransition):
			illegal++
		}
	}

	// Exactly one request wins; the loser observes the moved state.
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, illegal)

	trail, err := h.GetHistory(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestGetHistoryUnknownInstance(t *testing.T) {
	h := newTestEngine(t, documentDefinition())

	_, err := h.GetHistory(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrInstanceNotFound)
}
