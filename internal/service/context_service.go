package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// maxRetries bounds the internal re-read loop of the append helpers. Direct
// Update calls never retry; the caller owns that decision.
const maxRetries = 3

// ContextService is the shared context store: versioned reads and
// optimistically-gated writes over each workflow's accumulated state.
type ContextService interface {
	Get(ctx context.Context, workflowID uuid.UUID) (*domain.SharedContext, error)
	Create(ctx context.Context, workflowID uuid.UUID, preferences datatypes.JSONMap, createdBy string) (*domain.SharedContext, error)

	// Update applies a caller-prepared context whose Version must be exactly
	// stored+1, or domain.ErrConcurrencyConflict.
	Update(ctx context.Context, sc *domain.SharedContext) error

	AddStepOutput(ctx context.Context, workflowID uuid.UUID, out domain.StepOutput, modifiedBy string) (*domain.SharedContext, error)
	AddDecision(ctx context.Context, workflowID uuid.UUID, rec domain.DecisionRecord, modifiedBy string) (*domain.SharedContext, error)
	AddArtifact(ctx context.Context, workflowID uuid.UUID, ref domain.ArtifactReference, modifiedBy string) (*domain.SharedContext, error)
}

type contextService struct {
	contexts    ports.ContextRepository
	tokenBudget int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewContextService creates a new ContextService.
func NewContextService(contexts ports.ContextRepository, tokenBudget int, logger *slog.Logger, m *metrics.Metrics) ContextService {
	return &contextService{
		contexts:    contexts,
		tokenBudget: tokenBudget,
		logger:      logger,
		metrics:     m,
	}
}

func (s *contextService) Get(ctx context.Context, workflowID uuid.UUID) (*domain.SharedContext, error) {
	return s.contexts.GetByWorkflowID(ctx, workflowID)
}

func (s *contextService) Create(ctx context.Context, workflowID uuid.UUID, preferences datatypes.JSONMap, createdBy string) (*domain.SharedContext, error) {
	sc := domain.NewSharedContext(workflowID, preferences, createdBy)
	if err := s.contexts.Create(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *contextService) Update(ctx context.Context, sc *domain.SharedContext) error {
	s.enforceBudget(sc)
	err := s.contexts.ConditionalUpdate(ctx, sc)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		s.metrics.ConcurrencyConflicts.Inc()
	}
	if err == nil {
		s.metrics.ContextUpdates.WithLabelValues("update").Inc()
	}
	return err
}

func (s *contextService) AddStepOutput(ctx context.Context, workflowID uuid.UUID, out domain.StepOutput, modifiedBy string) (*domain.SharedContext, error) {
	return s.mutate(ctx, workflowID, "step_output", func(sc *domain.SharedContext) {
		sc.ApplyStepOutput(out, modifiedBy)
	})
}

func (s *contextService) AddDecision(ctx context.Context, workflowID uuid.UUID, rec domain.DecisionRecord, modifiedBy string) (*domain.SharedContext, error) {
	return s.mutate(ctx, workflowID, "decision", func(sc *domain.SharedContext) {
		sc.ApplyDecision(rec, modifiedBy)
	})
}

func (s *contextService) AddArtifact(ctx context.Context, workflowID uuid.UUID, ref domain.ArtifactReference, modifiedBy string) (*domain.SharedContext, error) {
	return s.mutate(ctx, workflowID, "artifact", func(sc *domain.SharedContext) {
		sc.ApplyArtifact(ref, modifiedBy)
	})
}

// mutate is the shared read/apply/conditionally-write loop. Each attempt
// re-reads the stored context so a lost race never overwrites the winner.
func (s *contextService) mutate(ctx context.Context, workflowID uuid.UUID, kind string, apply func(*domain.SharedContext)) (*domain.SharedContext, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		sc, err := s.contexts.GetByWorkflowID(ctx, workflowID)
		if err != nil {
			return nil, err
		}

		apply(sc)
		s.enforceBudget(sc)

		err = s.contexts.ConditionalUpdate(ctx, sc)
		if err == nil {
			s.metrics.ContextUpdates.WithLabelValues(kind).Inc()
			return sc, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, err
		}

		s.metrics.ConcurrencyConflicts.Inc()
		lastErr = err
		s.logger.Debug("context version race, retrying",
			slog.String("workflow_id", workflowID.String()),
			slog.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("context mutation lost %d version races: %w", maxRetries, lastErr)
}

// enforceBudget runs the synchronous token-budget check; older step outputs
// collapse into the summary while decisions stay verbatim.
func (s *contextService) enforceBudget(sc *domain.SharedContext) {
	if sc.Summarize(s.tokenBudget) {
		s.metrics.ContextSummarized.Inc()
		s.logger.Info("shared context summarized",
			slog.String("workflow_id", sc.WorkflowID.String()),
			slog.Int("remaining_outputs", len(sc.StepOutputs)),
		)
	}
}
