package ports

import (
	"context"
	"time"

	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WorkflowRepository owns WorkflowInstance persistence. Status changes go
// through Transition, which re-asserts the expected from-status in its WHERE
// clause so a raced transition fails instead of silently overwriting.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.WorkflowInstance) error

	// CreateWithContext inserts the instance and its lifetime-bound shared
	// context in one transaction; a failure leaves neither behind.
	CreateWithContext(ctx context.Context, wf *domain.WorkflowInstance, sc *domain.SharedContext) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Transition persists a status change already validated in memory; from is
	// the status the caller observed.
	Transition(ctx context.Context, wf *domain.WorkflowInstance, from domain.WorkflowStatus) error

	// OverwriteState rewrites the mutable fields (step index, status, step
	// data) from a checkpoint restore.
	OverwriteState(ctx context.Context, wf *domain.WorkflowInstance) error

	// SetStepDataField writes one field value, used when a conflict resolution
	// picks the winning value for a contested field.
	SetStepDataField(ctx context.Context, workflowID uuid.UUID, field string, value any) error

	// Delete removes the instance and cascades to its context, checkpoints,
	// inputs and conflicts.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContextRepository owns SharedContext persistence. ConditionalUpdate is the
// single optimistic-concurrency gate reused by every context mutation.
type ContextRepository interface {
	Create(ctx context.Context, sc *domain.SharedContext) error
	GetByWorkflowID(ctx context.Context, workflowID uuid.UUID) (*domain.SharedContext, error)

	// ConditionalUpdate persists sc only if its Version is exactly one greater
	// than the stored version; otherwise domain.ErrConcurrencyConflict.
	ConditionalUpdate(ctx context.Context, sc *domain.SharedContext) error
}

// CheckpointRepository owns checkpoint persistence. Create runs the whole
// read-workflow / read-latest-version / insert unit inside one transaction.
type CheckpointRepository interface {
	Create(ctx context.Context, workflowID uuid.UUID, stepID string, cpType domain.CheckpointType, triggeredBy string) (*domain.Checkpoint, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error)

	// List paginates descending by creation time.
	List(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.Checkpoint, error)

	// Latest orders by version descending.
	Latest(ctx context.Context, workflowID uuid.UUID) (*domain.Checkpoint, error)

	// Restore overwrites the workflow's mutable fields and shared context from
	// the named checkpoint's snapshot, atomically.
	Restore(ctx context.Context, workflowID, checkpointID uuid.UUID) (*domain.Checkpoint, error)
}

// InputRepository owns the buffered input queue. Enqueue assigns the next
// sequence number atomically with the workflow existence check.
type InputRepository interface {
	Enqueue(ctx context.Context, input *domain.QueuedInput) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueuedInput, error)

	// ListQueued returns Queued inputs in ascending sequence order.
	ListQueued(ctx context.Context, workflowID uuid.UUID) ([]domain.QueuedInput, error)

	// ListQueuedByField returns Queued inputs targeting one field, ascending
	// by sequence.
	ListQueuedByField(ctx context.Context, workflowID uuid.UUID, fieldName string) ([]domain.QueuedInput, error)

	// MarkOutcome moves an input out of Queued exactly once.
	MarkOutcome(ctx context.Context, id uuid.UUID, status domain.InputStatus, reason string) error

	// ResetFailed moves this workflow's Failed inputs back to Queued so they
	// are retried after a checkpoint restore. Returns how many were reset.
	ResetFailed(ctx context.Context, workflowID uuid.UUID) (int64, error)
}

// ConflictRepository owns domain conflicts. Resolve and Escalate are
// status-guarded so each happens at most once.
type ConflictRepository interface {
	Create(ctx context.Context, c *domain.Conflict) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error)
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Conflict, error)
	FindPendingByField(ctx context.Context, workflowID uuid.UUID, fieldName string) (*domain.Conflict, error)

	// HasPendingForInput reports whether the input participates in any
	// Pending conflict.
	HasPendingForInput(ctx context.Context, workflowID, inputID uuid.UUID) (bool, error)

	// Resolve stamps the resolution while status is still Pending; a second
	// call returns domain.ErrConflictAlreadyResolved.
	Resolve(ctx context.Context, id uuid.UUID, res domain.ConflictResolution) error

	// ListExpiredPending returns Pending conflicts whose ExpiresAt has passed.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Conflict, error)

	// Escalate transitions Pending→Escalated; a no-op if already escalated.
	Escalate(ctx context.Context, id uuid.UUID, at time.Time) error

	// RecordEscalationFailure bumps the retry counter of a still-Pending
	// conflict; once maxRetries is reached the conflict is parked as
	// EscalationFailed so the sweep stops retrying it.
	RecordEscalationFailure(ctx context.Context, id uuid.UUID, maxRetries int) error
}

// DecisionRepository owns the append-only decision ledger.
type DecisionRepository interface {
	Create(ctx context.Context, d *domain.Decision, initialValue datatypes.JSON) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Decision, error)

	// AppendVersion inserts the next version (currentMax+1) in one
	// transaction; fails with domain.ErrDecisionLocked while locked.
	AppendVersion(ctx context.Context, decisionID uuid.UUID, value datatypes.JSON, modifiedBy uuid.UUID, changeReason string) (*domain.DecisionVersion, error)

	GetVersion(ctx context.Context, decisionID uuid.UUID, versionNumber int) (*domain.DecisionVersion, error)
	LatestVersion(ctx context.Context, decisionID uuid.UUID) (*domain.DecisionVersion, error)
	ListVersions(ctx context.Context, decisionID uuid.UUID) ([]domain.DecisionVersion, error)

	SetLock(ctx context.Context, decisionID uuid.UUID, locked bool, by, reason string) error

	CreateReview(ctx context.Context, r *domain.DecisionReview) error
	GetReview(ctx context.Context, id uuid.UUID) (*domain.DecisionReview, error)
	UpdateReview(ctx context.Context, r *domain.DecisionReview) error
}

// SessionRepository owns participant sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// LatestByUser returns the user's most recent session by last activity.
	LatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Session, error)

	Update(ctx context.Context, s *domain.Session) error

	// SweepExpired deactivates sessions past their expiry and clears their
	// connection reference. Returns how many were swept.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventBus pushes structured events to the real-time transport collaborator.
type EventBus interface {
	PublishSessionRestored(ctx context.Context, ev domain.SessionRestoredEvent) error
	PublishConflictDetected(ctx context.Context, ev domain.ConflictDetectedEvent) error
	PublishConflictResolved(ctx context.Context, ev domain.ConflictResolvedEvent) error
	PublishCheckpointCreated(ctx context.Context, ev domain.CheckpointCreatedEvent) error
	PublishDecisionVersionAdded(ctx context.Context, ev domain.DecisionVersionAddedEvent) error
}
