package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProcessResult reports one drain of the input queue. Processed, Rejected and
// Failed sum to the number of drained items; Skipped counts inputs left
// Queued because they are held by a pending conflict.
type ProcessResult struct {
	Processed int      `json:"processed"`
	Rejected  int      `json:"rejected"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// QueueService buffers participant inputs and drains them in arrival order.
type QueueService interface {
	Enqueue(ctx context.Context, workflowID, userID uuid.UUID, inputType domain.InputType, fieldName string, content datatypes.JSON) (*domain.QueuedInput, error)
	ProcessQueued(ctx context.Context, workflowID uuid.UUID) (*ProcessResult, error)
}

type queueService struct {
	inputs     ports.InputRepository
	workflows  ports.WorkflowRepository
	conflicts  ConflictService
	validators ValidatorRegistry
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewQueueService creates a new QueueService.
func NewQueueService(inputs ports.InputRepository, workflows ports.WorkflowRepository, conflicts ConflictService, validators ValidatorRegistry, logger *slog.Logger, m *metrics.Metrics) QueueService {
	return &queueService{
		inputs:     inputs,
		workflows:  workflows,
		conflicts:  conflicts,
		validators: validators,
		logger:     logger,
		metrics:    m,
	}
}

// Enqueue records the input with the next sequence number, then runs conflict
// detection for field-targeting inputs. Detection failures never fail the
// enqueue; the input is safely buffered either way.
func (s *queueService) Enqueue(ctx context.Context, workflowID, userID uuid.UUID, inputType domain.InputType, fieldName string, content datatypes.JSON) (*domain.QueuedInput, error) {
	input := domain.NewQueuedInput(workflowID, userID, inputType, fieldName, content)
	if err := s.inputs.Enqueue(ctx, input); err != nil {
		return nil, err
	}
	s.metrics.InputsEnqueued.Inc()

	if fieldName != "" {
		if _, err := s.conflicts.DetectField(ctx, workflowID, fieldName); err != nil {
			s.logger.Warn("conflict detection failed",
				slog.String("workflow_id", workflowID.String()),
				slog.String("field", fieldName),
				slog.String("error", err.Error()),
			)
		}
	}

	return input, nil
}

// ProcessQueued drains all Queued inputs in ascending sequence order. One bad
// item is marked Failed with the error as its reason and processing moves on;
// cancellation mid-batch leaves already-committed transitions intact and the
// remainder Queued for the next drain.
func (s *queueService) ProcessQueued(ctx context.Context, workflowID uuid.UUID) (*ProcessResult, error) {
	start := time.Now()
	defer func() { s.metrics.QueueDrainTime.Observe(time.Since(start).Seconds()) }()

	exists, err := s.workflows.Exists(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrWorkflowNotFound
	}

	queued, err := s.inputs.ListQueued(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, input := range queued {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		held, err := s.conflicts.IsHeldByConflict(ctx, workflowID, input.ID)
		if err != nil {
			s.failItem(ctx, &input, result, fmt.Errorf("conflict lookup: %w", err))
			continue
		}
		if held {
			result.Skipped++
			continue
		}

		if err := s.validators.Validate(input.InputType, input.Content); err != nil {
			if markErr := s.inputs.MarkOutcome(ctx, input.ID, domain.InputRejected, err.Error()); markErr != nil {
				s.failItem(ctx, &input, result, markErr)
				continue
			}
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("input %d: %v", input.SequenceNumber, err))
			s.metrics.InputsProcessed.WithLabelValues("rejected").Inc()
			continue
		}

		if err := s.inputs.MarkOutcome(ctx, input.ID, domain.InputProcessed, ""); err != nil {
			s.failItem(ctx, &input, result, err)
			continue
		}
		result.Processed++
		s.metrics.InputsProcessed.WithLabelValues("processed").Inc()
	}

	s.logger.Info("queue drained",
		slog.String("workflow_id", workflowID.String()),
		slog.Int("processed", result.Processed),
		slog.Int("rejected", result.Rejected),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// failItem marks a single input Failed and records the error without
// aborting the batch.
func (s *queueService) failItem(ctx context.Context, input *domain.QueuedInput, result *ProcessResult, cause error) {
	if err := s.inputs.MarkOutcome(ctx, input.ID, domain.InputFailed, cause.Error()); err != nil {
		s.logger.Error("failed to mark input as failed",
			slog.String("input_id", input.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("input %d: %v", input.SequenceNumber, cause))
	s.metrics.InputsProcessed.WithLabelValues("failed").Inc()
}
