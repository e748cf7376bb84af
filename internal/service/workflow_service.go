package service

import (
	"context"
	"log/slog"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WorkflowService owns the workflow instance lifecycle. All status changes go
// through Transition, the single mutation entry point backed by the
// transition table.
type WorkflowService interface {
	Create(ctx context.Context, definitionRef, name, createdBy string, preferences datatypes.JSONMap) (*domain.WorkflowInstance, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)
	Transition(ctx context.Context, id uuid.UUID, to domain.WorkflowStatus) (*domain.WorkflowInstance, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type workflowService struct {
	workflows ports.WorkflowRepository
	logger    *slog.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(workflows ports.WorkflowRepository, logger *slog.Logger) WorkflowService {
	return &workflowService{
		workflows: workflows,
		logger:    logger,
	}
}

// Create persists a new instance together with its shared context at v1 in a
// single transaction. The context is lifetime-bound to the instance, so a
// failed write must not leave an instance without it.
func (s *workflowService) Create(ctx context.Context, definitionRef, name, createdBy string, preferences datatypes.JSONMap) (*domain.WorkflowInstance, error) {
	wf := domain.NewWorkflowInstance(definitionRef, name)
	sc := domain.NewSharedContext(wf.ID, preferences, createdBy)
	if err := s.workflows.CreateWithContext(ctx, wf, sc); err != nil {
		return nil, err
	}

	s.logger.Info("workflow created",
		slog.String("workflow_id", wf.ID.String()),
		slog.String("definition", definitionRef),
	)
	return wf, nil
}

func (s *workflowService) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	return s.workflows.GetByID(ctx, id)
}

// Transition validates against the lifecycle table, then persists with the
// observed from-status as a guard. A raced transition surfaces as a
// concurrency conflict; the caller re-reads and retries.
func (s *workflowService) Transition(ctx context.Context, id uuid.UUID, to domain.WorkflowStatus) (*domain.WorkflowInstance, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := wf.Status
	if err := wf.TransitionTo(to); err != nil {
		return nil, err
	}
	if err := s.workflows.Transition(ctx, wf, from); err != nil {
		return nil, err
	}

	s.logger.Info("workflow transitioned",
		slog.String("workflow_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return wf, nil
}

func (s *workflowService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.workflows.Delete(ctx, id)
}
