package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory implementations of the ports, with the same conditional-update
// semantics as the Postgres repositories, so the services can be exercised
// hermetically.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type memWorkflowRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.WorkflowInstance

	// contexts receives the shared context of CreateWithContext when set.
	contexts *memContextRepo
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{items: map[uuid.UUID]*domain.WorkflowInstance{}}
}

func (r *memWorkflowRepo) Create(_ context.Context, wf *domain.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *wf
	r.items[wf.ID] = &copied
	return nil
}

func (r *memWorkflowRepo) CreateWithContext(ctx context.Context, wf *domain.WorkflowInstance, sc *domain.SharedContext) error {
	if err := r.Create(ctx, wf); err != nil {
		return err
	}
	if r.contexts != nil {
		if err := r.contexts.Create(ctx, sc); err != nil {
			// Same outcome as a rolled-back transaction.
			_ = r.Delete(ctx, wf.ID)
			return err
		}
	}
	return nil
}

func (r *memWorkflowRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.items[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	copied := *wf
	return &copied, nil
}

func (r *memWorkflowRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *memWorkflowRepo) Transition(_ context.Context, wf *domain.WorkflowInstance, from domain.WorkflowStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[wf.ID]
	if !ok || stored.Status != from {
		return domain.ErrConcurrencyConflict
	}
	copied := *wf
	r.items[wf.ID] = &copied
	return nil
}

func (r *memWorkflowRepo) OverwriteState(_ context.Context, wf *domain.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[wf.ID]
	if !ok {
		return domain.ErrWorkflowNotFound
	}
	stored.Status = wf.Status
	stored.CurrentStepIndex = wf.CurrentStepIndex
	stored.StepData = wf.StepData
	return nil
}

func (r *memWorkflowRepo) SetStepDataField(_ context.Context, workflowID uuid.UUID, field string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[workflowID]
	if !ok {
		return domain.ErrWorkflowNotFound
	}
	if stored.StepData == nil {
		stored.StepData = map[string]interface{}{}
	}
	stored.StepData[field] = value
	return nil
}

func (r *memWorkflowRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type memContextRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.SharedContext // by workflow id

	// failCreate simulates a storage error on context insertion.
	failCreate error
}

func newMemContextRepo() *memContextRepo {
	return &memContextRepo{items: map[uuid.UUID]*domain.SharedContext{}}
}

func (r *memContextRepo) Create(_ context.Context, sc *domain.SharedContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	copied := *sc
	r.items[sc.WorkflowID] = &copied
	return nil
}

func (r *memContextRepo) GetByWorkflowID(_ context.Context, workflowID uuid.UUID) (*domain.SharedContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.items[workflowID]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	copied := *sc
	copied.StepOutputs = map[string]domain.StepOutput{}
	for k, v := range sc.StepOutputs {
		copied.StepOutputs[k] = v
	}
	copied.Decisions = append([]domain.DecisionRecord(nil), sc.Decisions...)
	copied.Artifacts = append([]domain.ArtifactReference(nil), sc.Artifacts...)
	return &copied, nil
}

func (r *memContextRepo) ConditionalUpdate(_ context.Context, sc *domain.SharedContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[sc.WorkflowID]
	if !ok {
		return domain.ErrContextNotFound
	}
	if stored.Version != sc.Version-1 {
		return domain.ErrConcurrencyConflict
	}
	copied := *sc
	r.items[sc.WorkflowID] = &copied
	return nil
}

type memCheckpointRepo struct {
	mu        sync.Mutex
	workflows *memWorkflowRepo
	contexts  *memContextRepo
	items     []*domain.Checkpoint
}

func newMemCheckpointRepo(workflows *memWorkflowRepo, contexts *memContextRepo) *memCheckpointRepo {
	return &memCheckpointRepo{workflows: workflows, contexts: contexts}
}

func (r *memCheckpointRepo) Create(ctx context.Context, workflowID uuid.UUID, stepID string, cpType domain.CheckpointType, triggeredBy string) (*domain.Checkpoint, error) {
	wf, err := r.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	sc, err := r.contexts.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		sc = &domain.SharedContext{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	latest := 0
	for _, cp := range r.items {
		if cp.WorkflowID == workflowID && cp.Version > latest {
			latest = cp.Version
		}
	}

	snap := domain.StateSnapshot{
		Status:           wf.Status,
		CurrentStepIndex: wf.CurrentStepIndex,
		StepData:         wf.StepData,
		ContextVersion:   sc.Version,
		StepOutputs:      sc.StepOutputs,
		Decisions:        sc.Decisions,
		Artifacts:        sc.Artifacts,
		ContextSummary:   sc.Summary,
	}
	cp, err := domain.NewCheckpoint(workflowID, stepID, cpType, latest+1, snap, triggeredBy)
	if err != nil {
		return nil, err
	}
	r.items = append(r.items, cp)
	return cp, nil
}

func (r *memCheckpointRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cp := range r.items {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, domain.ErrCheckpointNotFound
}

func (r *memCheckpointRepo) List(_ context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Checkpoint
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].WorkflowID == workflowID {
			out = append(out, *r.items[i])
		}
	}
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memCheckpointRepo) Latest(_ context.Context, workflowID uuid.UUID) (*domain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Checkpoint
	for _, cp := range r.items {
		if cp.WorkflowID == workflowID && (latest == nil || cp.Version > latest.Version) {
			latest = cp
		}
	}
	if latest == nil {
		return nil, domain.ErrCheckpointNotFound
	}
	return latest, nil
}

func (r *memCheckpointRepo) Restore(ctx context.Context, workflowID, checkpointID uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := r.GetByID(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	snap, err := cp.DecodeSnapshot()
	if err != nil {
		return nil, err
	}

	wf, err := r.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	wf.Status = snap.Status
	wf.CurrentStepIndex = snap.CurrentStepIndex
	wf.StepData = snap.StepData
	if err := r.workflows.OverwriteState(ctx, wf); err != nil {
		return nil, err
	}

	if sc, err := r.contexts.GetByWorkflowID(ctx, workflowID); err == nil {
		sc.Version++
		sc.StepOutputs = snap.StepOutputs
		sc.Decisions = snap.Decisions
		sc.Artifacts = snap.Artifacts
		sc.Summary = snap.ContextSummary
		r.contexts.mu.Lock()
		r.contexts.items[workflowID] = sc
		r.contexts.mu.Unlock()
	}
	return cp, nil
}

type memInputRepo struct {
	mu        sync.Mutex
	workflows *memWorkflowRepo
	items     map[uuid.UUID]*domain.QueuedInput
	order     []uuid.UUID

	// failProcessed simulates a storage error while marking the given input
	// Processed, to exercise per-item failure isolation.
	failProcessed map[uuid.UUID]error
}

func newMemInputRepo(workflows *memWorkflowRepo) *memInputRepo {
	return &memInputRepo{
		workflows:     workflows,
		items:         map[uuid.UUID]*domain.QueuedInput{},
		failProcessed: map[uuid.UUID]error{},
	}
}

func (r *memInputRepo) Enqueue(ctx context.Context, input *domain.QueuedInput) error {
	if ok, _ := r.workflows.Exists(ctx, input.WorkflowID); !ok {
		return domain.ErrWorkflowNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := 0
	for _, item := range r.items {
		if item.WorkflowID == input.WorkflowID && item.SequenceNumber > latest {
			latest = item.SequenceNumber
		}
	}
	input.SequenceNumber = latest + 1
	copied := *input
	r.items[input.ID] = &copied
	r.order = append(r.order, input.ID)
	return nil
}

func (r *memInputRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.QueuedInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	input, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *input
	return &copied, nil
}

func (r *memInputRepo) ListQueued(_ context.Context, workflowID uuid.UUID) ([]domain.QueuedInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueuedInput
	for _, id := range r.order {
		item := r.items[id]
		if item.WorkflowID == workflowID && item.Status == domain.InputQueued {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *memInputRepo) ListQueuedByField(_ context.Context, workflowID uuid.UUID, fieldName string) ([]domain.QueuedInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueuedInput
	for _, id := range r.order {
		item := r.items[id]
		if item.WorkflowID == workflowID && item.FieldName == fieldName && item.Status == domain.InputQueued {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *memInputRepo) MarkOutcome(_ context.Context, id uuid.UUID, status domain.InputStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status == domain.InputProcessed {
		if err, ok := r.failProcessed[id]; ok {
			return err
		}
	}
	item, ok := r.items[id]
	if !ok || item.Status != domain.InputQueued {
		return domain.ErrConcurrencyConflict
	}
	item.Status = status
	item.RejectionReason = reason
	return nil
}

func (r *memInputRepo) ResetFailed(_ context.Context, workflowID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reset int64
	for _, item := range r.items {
		if item.WorkflowID == workflowID && item.Status == domain.InputFailed {
			item.Status = domain.InputQueued
			item.RejectionReason = ""
			reset++
		}
	}
	return reset, nil
}

type memConflictRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Conflict

	// failEscalate simulates a storage error while escalating the given
	// conflict, to exercise the retry accounting.
	failEscalate map[uuid.UUID]error
}

func newMemConflictRepo() *memConflictRepo {
	return &memConflictRepo{
		items:        map[uuid.UUID]*domain.Conflict{},
		failEscalate: map[uuid.UUID]error{},
	}
}

func (r *memConflictRepo) Create(_ context.Context, c *domain.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.items[c.ID] = &copied
	return nil
}

func (r *memConflictRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domain.ErrConflictNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memConflictRepo) ListByWorkflow(_ context.Context, workflowID uuid.UUID) ([]domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conflict
	for _, c := range r.items {
		if c.WorkflowID == workflowID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memConflictRepo) FindPendingByField(_ context.Context, workflowID uuid.UUID, fieldName string) (*domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.WorkflowID == workflowID && c.FieldName == fieldName && c.Status == domain.ConflictPending {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.ErrConflictNotFound
}

func (r *memConflictRepo) HasPendingForInput(_ context.Context, workflowID, inputID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.WorkflowID != workflowID || c.Status != domain.ConflictPending {
			continue
		}
		for _, input := range c.Inputs {
			if input.InputID == inputID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memConflictRepo) Resolve(_ context.Context, id uuid.UUID, res domain.ConflictResolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return domain.ErrConflictNotFound
	}
	if c.Status != domain.ConflictPending {
		return domain.ErrConflictAlreadyResolved
	}
	c.Status = domain.ConflictResolved
	c.Resolution = &res
	return nil
}

func (r *memConflictRepo) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conflict
	for _, c := range r.items {
		if c.Status == domain.ConflictPending && c.ExpiresAt.Before(now) {
			out = append(out, *c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memConflictRepo) Escalate(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failEscalate[id]; ok {
		return err
	}
	c, ok := r.items[id]
	if !ok || c.Status != domain.ConflictPending {
		return nil
	}
	c.Status = domain.ConflictEscalated
	c.EscalatedAt = &at
	return nil
}

func (r *memConflictRepo) RecordEscalationFailure(_ context.Context, id uuid.UUID, maxRetries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status != domain.ConflictPending {
		return nil
	}
	c.EscalationRetries++
	if c.EscalationRetries >= maxRetries {
		c.Status = domain.ConflictEscalationFailed
	}
	return nil
}

type memDecisionRepo struct {
	mu        sync.Mutex
	decisions map[uuid.UUID]*domain.Decision
	versions  map[uuid.UUID][]domain.DecisionVersion
	reviews   map[uuid.UUID]*domain.DecisionReview
}

func newMemDecisionRepo() *memDecisionRepo {
	return &memDecisionRepo{
		decisions: map[uuid.UUID]*domain.Decision{},
		versions:  map[uuid.UUID][]domain.DecisionVersion{},
		reviews:   map[uuid.UUID]*domain.DecisionReview{},
	}
}

func (r *memDecisionRepo) Create(_ context.Context, d *domain.Decision, initialValue datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *d
	r.decisions[d.ID] = &copied
	r.versions[d.ID] = []domain.DecisionVersion{{
		ID:            uuid.New(),
		DecisionID:    d.ID,
		VersionNumber: 1,
		Value:         initialValue,
		ModifiedBy:    d.DecidedBy,
		ModifiedAt:    d.DecidedAt,
		ChangeReason:  "initial decision",
	}}
	return nil
}

func (r *memDecisionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decisions[id]
	if !ok {
		return nil, domain.ErrDecisionNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memDecisionRepo) AppendVersion(_ context.Context, decisionID uuid.UUID, value datatypes.JSON, modifiedBy uuid.UUID, changeReason string) (*domain.DecisionVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decisions[decisionID]
	if !ok {
		return nil, domain.ErrDecisionNotFound
	}
	if d.Locked {
		return nil, domain.ErrDecisionLocked
	}
	versions := r.versions[decisionID]
	v := domain.DecisionVersion{
		ID:            uuid.New(),
		DecisionID:    decisionID,
		VersionNumber: len(versions) + 1,
		Value:         value,
		ModifiedBy:    modifiedBy,
		ModifiedAt:    time.Now(),
		ChangeReason:  changeReason,
	}
	r.versions[decisionID] = append(versions, v)
	return &v, nil
}

func (r *memDecisionRepo) GetVersion(_ context.Context, decisionID uuid.UUID, versionNumber int) (*domain.DecisionVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions[decisionID] {
		if v.VersionNumber == versionNumber {
			copied := v
			return &copied, nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

func (r *memDecisionRepo) LatestVersion(_ context.Context, decisionID uuid.UUID) (*domain.DecisionVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.versions[decisionID]
	if len(versions) == 0 {
		return nil, domain.ErrVersionNotFound
	}
	copied := versions[len(versions)-1]
	return &copied, nil
}

func (r *memDecisionRepo) ListVersions(_ context.Context, decisionID uuid.UUID) ([]domain.DecisionVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DecisionVersion(nil), r.versions[decisionID]...), nil
}

func (r *memDecisionRepo) SetLock(_ context.Context, decisionID uuid.UUID, locked bool, by, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decisions[decisionID]
	if !ok {
		return domain.ErrDecisionNotFound
	}
	d.Locked = locked
	d.LockedBy = by
	if locked {
		d.LockReason = reason
	} else {
		d.UnlockReason = reason
	}
	return nil
}

func (r *memDecisionRepo) CreateReview(_ context.Context, rv *domain.DecisionReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rv
	r.reviews[rv.ID] = &copied
	return nil
}

func (r *memDecisionRepo) GetReview(_ context.Context, id uuid.UUID) (*domain.DecisionReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	copied := *rv
	copied.Responses = append([]domain.ReviewResponse(nil), rv.Responses...)
	return &copied, nil
}

func (r *memDecisionRepo) UpdateReview(_ context.Context, rv *domain.DecisionReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rv
	r.reviews[rv.ID] = &copied
	return nil
}

type memSessionRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{items: map[uuid.UUID]*domain.Session{}}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.items[s.ID] = &copied
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memSessionRepo) LatestByUser(_ context.Context, userID uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Session
	for _, s := range r.items {
		if s.UserID == userID && (latest == nil || s.LastActivityAt.After(latest.LastActivityAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, domain.ErrSessionNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *memSessionRepo) Update(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	copied := *s
	r.items[s.ID] = &copied
	return nil
}

func (r *memSessionRepo) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept int64
	for _, s := range r.items {
		if s.IsActive && s.ExpiresAt.Before(now) {
			s.IsActive = false
			s.ConnectionID = nil
			swept++
		}
	}
	return swept, nil
}

type memEventBus struct {
	mu               sync.Mutex
	sessionRestored  []domain.SessionRestoredEvent
	conflictDetected []domain.ConflictDetectedEvent
	conflictResolved []domain.ConflictResolvedEvent
	checkpoints      []domain.CheckpointCreatedEvent
	decisionVersions []domain.DecisionVersionAddedEvent
}

func (b *memEventBus) PublishSessionRestored(_ context.Context, ev domain.SessionRestoredEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionRestored = append(b.sessionRestored, ev)
	return nil
}

func (b *memEventBus) PublishConflictDetected(_ context.Context, ev domain.ConflictDetectedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conflictDetected = append(b.conflictDetected, ev)
	return nil
}

func (b *memEventBus) PublishConflictResolved(_ context.Context, ev domain.ConflictResolvedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conflictResolved = append(b.conflictResolved, ev)
	return nil
}

func (b *memEventBus) PublishCheckpointCreated(_ context.Context, ev domain.CheckpointCreatedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints = append(b.checkpoints, ev)
	return nil
}

func (b *memEventBus) PublishDecisionVersionAdded(_ context.Context, ev domain.DecisionVersionAddedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decisionVersions = append(b.decisionVersions, ev)
	return nil
}
