package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
)

// escalationBatchSize bounds how many expired conflicts one sweep tick takes.
const escalationBatchSize = 100

// maxEscalationRetries is how many failed escalation attempts a conflict gets
// before it is parked as EscalationFailed.
const maxEscalationRetries = 3

// ConflictService detects divergent concurrent inputs on the same field,
// holds them for human resolution, and escalates them past their expiry.
type ConflictService interface {
	// DetectField compares the latest still-queued input per user on a field
	// and opens a Pending conflict when values diverge. Returns nil when the
	// field is not contested.
	DetectField(ctx context.Context, workflowID uuid.UUID, fieldName string) (*domain.Conflict, error)

	// IsHeldByConflict reports whether the input is frozen by a pending
	// conflict and must not be applied yet.
	IsHeldByConflict(ctx context.Context, workflowID, inputID uuid.UUID) (bool, error)

	Get(ctx context.Context, id uuid.UUID) (*domain.Conflict, error)
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Conflict, error)

	Resolve(ctx context.Context, conflictID, resolvedBy uuid.UUID, rType domain.ResolutionType, finalValue, reason string) (*domain.Conflict, error)

	// EscalateExpired runs one sweep tick: every Pending conflict past its
	// expiry becomes Escalated. Idempotent and isolated per row.
	EscalateExpired(ctx context.Context) (int, error)
}

type conflictService struct {
	conflicts   ports.ConflictRepository
	inputs      ports.InputRepository
	workflows   ports.WorkflowRepository
	bus         ports.EventBus
	conflictTTL time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewConflictService creates a new ConflictService.
func NewConflictService(conflicts ports.ConflictRepository, inputs ports.InputRepository, workflows ports.WorkflowRepository, bus ports.EventBus, conflictTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) ConflictService {
	return &conflictService{
		conflicts:   conflicts,
		inputs:      inputs,
		workflows:   workflows,
		bus:         bus,
		conflictTTL: conflictTTL,
		logger:      logger,
		metrics:     m,
	}
}

// DetectField applies the minimal detection rule: same field, still queued,
// different value, different user. Only the latest input per user counts, so
// one user submitting twice supersedes themselves instead of conflicting.
func (s *conflictService) DetectField(ctx context.Context, workflowID uuid.UUID, fieldName string) (*domain.Conflict, error) {
	queued, err := s.inputs.ListQueuedByField(ctx, workflowID, fieldName)
	if err != nil {
		return nil, err
	}

	// Ascending sequence order: later entries replace earlier ones per user.
	latestPerUser := map[uuid.UUID]domain.QueuedInput{}
	for _, input := range queued {
		latestPerUser[input.UserID] = input
	}
	if len(latestPerUser) < 2 {
		return nil, nil
	}

	competing := make([]domain.ConflictInput, 0, len(latestPerUser))
	values := map[string]bool{}
	for _, input := range latestPerUser {
		value, displayName := decodeFieldEdit(input.Content, input.UserID)
		values[value] = true
		competing = append(competing, domain.ConflictInput{
			InputID:     input.ID,
			UserID:      input.UserID,
			DisplayName: displayName,
			Value:       value,
			SubmittedAt: input.CreatedAt,
		})
	}
	if len(values) < 2 {
		return nil, nil
	}

	// One pending conflict per contested field at a time.
	if existing, err := s.conflicts.FindPendingByField(ctx, workflowID, fieldName); err == nil {
		return existing, nil
	} else if err != domain.ErrConflictNotFound {
		return nil, err
	}

	// Earliest submission first: the natural AcceptA default.
	for i := 0; i < len(competing); i++ {
		for j := i + 1; j < len(competing); j++ {
			if competing[j].SubmittedAt.Before(competing[i].SubmittedAt) {
				competing[i], competing[j] = competing[j], competing[i]
			}
		}
	}

	conflict := domain.NewConflict(workflowID, fieldName, domain.ConflictFieldValue, competing, s.conflictTTL)
	if err := s.conflicts.Create(ctx, conflict); err != nil {
		return nil, err
	}
	s.metrics.ConflictsDetected.Inc()

	if err := s.bus.PublishConflictDetected(ctx, domain.ConflictDetectedEvent{
		ConflictID: conflict.ID,
		WorkflowID: workflowID,
		FieldName:  fieldName,
		Type:       conflict.Type,
		Inputs:     conflict.Inputs,
		ExpiresAt:  conflict.ExpiresAt,
	}); err != nil {
		s.logger.Warn("failed to publish conflict event",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("conflict detected",
		slog.String("workflow_id", workflowID.String()),
		slog.String("field", fieldName),
		slog.Int("inputs", len(competing)),
	)
	return conflict, nil
}

func (s *conflictService) IsHeldByConflict(ctx context.Context, workflowID, inputID uuid.UUID) (bool, error) {
	return s.conflicts.HasPendingForInput(ctx, workflowID, inputID)
}

func (s *conflictService) Get(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	return s.conflicts.GetByID(ctx, id)
}

func (s *conflictService) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Conflict, error) {
	return s.conflicts.ListByWorkflow(ctx, workflowID)
}

// Resolve settles a pending conflict exactly once. The status-guarded update
// is the atomic unit; applying the winning value and releasing the held
// inputs happen after it commits, best-effort.
func (s *conflictService) Resolve(ctx context.Context, conflictID, resolvedBy uuid.UUID, rType domain.ResolutionType, finalValue, reason string) (*domain.Conflict, error) {
	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	resolution := domain.ConflictResolution{
		ResolvedBy: resolvedBy,
		Type:       rType,
		FinalValue: conflict.ResolutionValue(rType, finalValue),
		Reason:     reason,
		ResolvedAt: time.Now(),
	}
	if err := s.conflicts.Resolve(ctx, conflictID, resolution); err != nil {
		return nil, err
	}
	s.metrics.ConflictsResolved.WithLabelValues(string(rType)).Inc()

	s.applyResolution(ctx, conflict, resolution)

	conflict.Status = domain.ConflictResolved
	conflict.Resolution = &resolution

	if err := s.bus.PublishConflictResolved(ctx, domain.ConflictResolvedEvent{
		ConflictID: conflict.ID,
		WorkflowID: conflict.WorkflowID,
		FieldName:  conflict.FieldName,
		Resolution: resolution,
	}); err != nil {
		s.logger.Warn("failed to publish resolution event",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return conflict, nil
}

// applyResolution writes the winning value to the contested field and moves
// the held inputs out of the queue: the accepted one is Processed, the rest
// Rejected. RejectBoth applies neither value.
func (s *conflictService) applyResolution(ctx context.Context, conflict *domain.Conflict, res domain.ConflictResolution) {
	var winner *uuid.UUID
	switch res.Type {
	case domain.ResolutionAcceptA:
		if len(conflict.Inputs) > 0 {
			winner = &conflict.Inputs[0].InputID
		}
	case domain.ResolutionAcceptB:
		if len(conflict.Inputs) > 1 {
			winner = &conflict.Inputs[1].InputID
		}
	}

	if res.Type != domain.ResolutionRejectBoth {
		if err := s.workflows.SetStepDataField(ctx, conflict.WorkflowID, conflict.FieldName, res.FinalValue); err != nil {
			s.logger.Warn("failed to apply resolved value",
				slog.String("conflict_id", conflict.ID.String()),
				slog.String("field", conflict.FieldName),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, input := range conflict.Inputs {
		status := domain.InputRejected
		reason := fmt.Sprintf("superseded by conflict resolution (%s)", res.Type)
		if winner != nil && input.InputID == *winner {
			status = domain.InputProcessed
			reason = ""
		}
		if err := s.inputs.MarkOutcome(ctx, input.InputID, status, reason); err != nil {
			s.logger.Warn("failed to settle conflict input",
				slog.String("input_id", input.InputID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// EscalateExpired is one sweep tick. Re-running it finds nothing new: the
// repository escalation is status-guarded. A single bad row is logged and
// skipped, never aborting the batch.
func (s *conflictService) EscalateExpired(ctx context.Context) (int, error) {
	expired, err := s.conflicts.ListExpiredPending(ctx, time.Now(), escalationBatchSize)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, conflict := range expired {
		if err := ctx.Err(); err != nil {
			return escalated, err
		}
		if err := s.conflicts.Escalate(ctx, conflict.ID, time.Now()); err != nil {
			s.logger.Error("failed to escalate conflict",
				slog.String("conflict_id", conflict.ID.String()),
				slog.Int("retries", conflict.EscalationRetries+1),
				slog.String("error", err.Error()),
			)
			if err := s.conflicts.RecordEscalationFailure(ctx, conflict.ID, maxEscalationRetries); err != nil {
				s.logger.Error("failed to record escalation failure",
					slog.String("conflict_id", conflict.ID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		escalated++
		s.metrics.ConflictsEscalated.Inc()
		s.logger.Info("conflict escalated",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("field", conflict.FieldName),
			slog.Time("expired_at", conflict.ExpiresAt),
		)
	}
	return escalated, nil
}

// decodeFieldEdit pulls the submitted value (and optional display name) out
// of a field-edit payload; non-object payloads fall back to the raw text.
func decodeFieldEdit(content []byte, userID uuid.UUID) (value, displayName string) {
	displayName = userID.String()[:8]
	var fields map[string]any
	if err := json.Unmarshal(content, &fields); err != nil {
		return string(content), displayName
	}
	if v, ok := fields["value"]; ok {
		value = fmt.Sprint(v)
	}
	if name, ok := fields["displayName"].(string); ok && name != "" {
		displayName = name
	}
	return value, displayName
}
