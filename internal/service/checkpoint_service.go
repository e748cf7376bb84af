package service

import (
	"context"
	"log/slog"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
)

// CheckpointService captures and restores point-in-time snapshots of a
// workflow instance.
type CheckpointService interface {
	Create(ctx context.Context, workflowID uuid.UUID, stepID string, cpType domain.CheckpointType, triggeredBy string) (*domain.Checkpoint, error)
	Restore(ctx context.Context, workflowID, checkpointID uuid.UUID) (*domain.Checkpoint, error)
	List(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.Checkpoint, error)
	Latest(ctx context.Context, workflowID uuid.UUID) (*domain.Checkpoint, error)
}

type checkpointService struct {
	checkpoints ports.CheckpointRepository
	inputs      ports.InputRepository
	bus         ports.EventBus
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewCheckpointService creates a new CheckpointService.
func NewCheckpointService(checkpoints ports.CheckpointRepository, inputs ports.InputRepository, bus ports.EventBus, logger *slog.Logger, m *metrics.Metrics) CheckpointService {
	return &checkpointService{
		checkpoints: checkpoints,
		inputs:      inputs,
		bus:         bus,
		logger:      logger,
		metrics:     m,
	}
}

func (s *checkpointService) Create(ctx context.Context, workflowID uuid.UUID, stepID string, cpType domain.CheckpointType, triggeredBy string) (*domain.Checkpoint, error) {
	cp, err := s.checkpoints.Create(ctx, workflowID, stepID, cpType, triggeredBy)
	if err != nil {
		return nil, err
	}

	s.metrics.CheckpointsCreated.WithLabelValues(string(cpType)).Inc()
	if err := s.bus.PublishCheckpointCreated(ctx, domain.CheckpointCreatedEvent{
		CheckpointID: cp.ID,
		WorkflowID:   cp.WorkflowID,
		StepID:       cp.StepID,
		Type:         cp.CheckpointType,
		Version:      cp.Version,
		TriggeredBy:  cp.TriggeredBy,
		CreatedAt:    cp.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to publish checkpoint event",
			slog.String("checkpoint_id", cp.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("checkpoint created",
		slog.String("workflow_id", workflowID.String()),
		slog.Int("version", cp.Version),
		slog.String("type", string(cpType)),
	)
	return cp, nil
}

// Restore rolls the workflow back to the named checkpoint, then best-effort
// resets this workflow's Failed inputs to Queued so they are retried against
// the restored state. Reset failures are logged, never fatal to the restore.
func (s *checkpointService) Restore(ctx context.Context, workflowID, checkpointID uuid.UUID) (*domain.Checkpoint, error) {
	cp, err := s.checkpoints.Restore(ctx, workflowID, checkpointID)
	if err != nil {
		return nil, err
	}
	s.metrics.CheckpointsRestored.Inc()

	if reset, err := s.inputs.ResetFailed(ctx, workflowID); err != nil {
		s.logger.Warn("failed to reset failed inputs after restore",
			slog.String("workflow_id", workflowID.String()),
			slog.String("error", err.Error()),
		)
	} else if reset > 0 {
		s.logger.Info("failed inputs requeued after restore",
			slog.String("workflow_id", workflowID.String()),
			slog.Int64("count", reset),
		)
	}

	s.logger.Info("checkpoint restored",
		slog.String("workflow_id", workflowID.String()),
		slog.Int("version", cp.Version),
	)
	return cp, nil
}

func (s *checkpointService) List(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.Checkpoint, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.checkpoints.List(ctx, workflowID, limit, offset)
}

func (s *checkpointService) Latest(ctx context.Context, workflowID uuid.UUID) (*domain.Checkpoint, error) {
	return s.checkpoints.Latest(ctx, workflowID)
}
