package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	minReasonLength = 5
	maxReasonLength = 500
)

// DecisionService is the append-only decision ledger: versioned values,
// lock/unlock gating and review approval.
type DecisionService interface {
	Create(ctx context.Context, d *domain.Decision, initialValue datatypes.JSON) (*domain.Decision, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Decision, error)

	// Update appends a new version; the decision's effective value is always
	// the latest version.
	Update(ctx context.Context, decisionID uuid.UUID, newValue datatypes.JSON, modifiedBy uuid.UUID, changeReason string) (*domain.DecisionVersion, error)

	CurrentValue(ctx context.Context, decisionID uuid.UUID) (*domain.DecisionVersion, error)
	History(ctx context.Context, decisionID uuid.UUID) ([]domain.DecisionVersion, error)

	Lock(ctx context.Context, decisionID uuid.UUID, lockedBy, reason string) error
	Unlock(ctx context.Context, decisionID uuid.UUID, unlockedBy, reason string) error

	// Diff reports field-level changes between two stored versions. Pure
	// read; no side effects.
	Diff(ctx context.Context, decisionID uuid.UUID, v1, v2 int) ([]domain.FieldChange, error)

	StartReview(ctx context.Context, decisionID uuid.UUID, reviewers []uuid.UUID, deadline time.Time) (*domain.DecisionReview, error)
	SubmitReview(ctx context.Context, reviewID, reviewerID uuid.UUID, verdict domain.ReviewVerdict, comment string) (*domain.DecisionReview, error)
	GetReview(ctx context.Context, reviewID uuid.UUID) (*domain.DecisionReview, error)
}

type decisionService struct {
	decisions ports.DecisionRepository
	bus       ports.EventBus
	logger    *slog.Logger
}

// NewDecisionService creates a new DecisionService.
func NewDecisionService(decisions ports.DecisionRepository, bus ports.EventBus, logger *slog.Logger) DecisionService {
	return &decisionService{
		decisions: decisions,
		bus:       bus,
		logger:    logger,
	}
}

func (s *decisionService) Create(ctx context.Context, d *domain.Decision, initialValue datatypes.JSON) (*domain.Decision, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	d.CreatedAt = time.Now()

	if err := s.decisions.Create(ctx, d, initialValue); err != nil {
		return nil, err
	}
	s.logger.Info("decision recorded",
		slog.String("decision_id", d.ID.String()),
		slog.String("workflow_id", d.WorkflowID.String()),
		slog.String("step", d.StepID),
	)
	return d, nil
}

func (s *decisionService) Get(ctx context.Context, id uuid.UUID) (*domain.Decision, error) {
	return s.decisions.GetByID(ctx, id)
}

func (s *decisionService) Update(ctx context.Context, decisionID uuid.UUID, newValue datatypes.JSON, modifiedBy uuid.UUID, changeReason string) (*domain.DecisionVersion, error) {
	version, err := s.decisions.AppendVersion(ctx, decisionID, newValue, modifiedBy, changeReason)
	if err != nil {
		return nil, err
	}

	d, err := s.decisions.GetByID(ctx, decisionID)
	if err != nil {
		return version, nil
	}
	if err := s.bus.PublishDecisionVersionAdded(ctx, domain.DecisionVersionAddedEvent{
		DecisionID:    decisionID,
		WorkflowID:    d.WorkflowID,
		VersionNumber: version.VersionNumber,
		ModifiedBy:    modifiedBy,
		ChangeReason:  changeReason,
		ModifiedAt:    version.ModifiedAt,
	}); err != nil {
		s.logger.Warn("failed to publish decision version event",
			slog.String("decision_id", decisionID.String()),
			slog.String("error", err.Error()),
		)
	}
	return version, nil
}

func (s *decisionService) CurrentValue(ctx context.Context, decisionID uuid.UUID) (*domain.DecisionVersion, error) {
	return s.decisions.LatestVersion(ctx, decisionID)
}

func (s *decisionService) History(ctx context.Context, decisionID uuid.UUID) ([]domain.DecisionVersion, error) {
	return s.decisions.ListVersions(ctx, decisionID)
}

func (s *decisionService) Lock(ctx context.Context, decisionID uuid.UUID, lockedBy, reason string) error {
	return s.decisions.SetLock(ctx, decisionID, true, lockedBy, reason)
}

// Unlock requires an audit reason of 5-500 characters.
func (s *decisionService) Unlock(ctx context.Context, decisionID uuid.UUID, unlockedBy, reason string) error {
	if len(reason) < minReasonLength || len(reason) > maxReasonLength {
		return fmt.Errorf("unlock of %s: %w", decisionID, domain.ErrReviewReasonRequired)
	}
	return s.decisions.SetLock(ctx, decisionID, false, unlockedBy, reason)
}

func (s *decisionService) Diff(ctx context.Context, decisionID uuid.UUID, v1, v2 int) ([]domain.FieldChange, error) {
	older, err := s.decisions.GetVersion(ctx, decisionID, v1)
	if err != nil {
		return nil, err
	}
	newer, err := s.decisions.GetVersion(ctx, decisionID, v2)
	if err != nil {
		return nil, err
	}
	return domain.DiffVersions(older.Value, newer.Value)
}

func (s *decisionService) StartReview(ctx context.Context, decisionID uuid.UUID, reviewers []uuid.UUID, deadline time.Time) (*domain.DecisionReview, error) {
	if _, err := s.decisions.GetByID(ctx, decisionID); err != nil {
		return nil, err
	}

	review := &domain.DecisionReview{
		ID:         uuid.New(),
		DecisionID: decisionID,
		Status:     domain.ReviewUnderReview,
		Reviewers:  reviewers,
		Responses:  []domain.ReviewResponse{},
		Deadline:   deadline,
		CreatedAt:  time.Now(),
	}
	if err := s.decisions.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// SubmitReview records one reviewer's verdict. The review completes when the
// last invited reviewer responds, or lazily when a submission arrives past
// the deadline, in which case the earlier partial responses are kept and
// the late verdict is refused.
func (s *decisionService) SubmitReview(ctx context.Context, reviewID, reviewerID uuid.UUID, verdict domain.ReviewVerdict, comment string) (*domain.DecisionReview, error) {
	review, err := s.decisions.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status == domain.ReviewCompleted {
		return nil, fmt.Errorf("review %s: %w", reviewID, domain.ErrAlreadyResponded)
	}

	now := time.Now()
	expired, err := s.finalizeExpired(ctx, review)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, fmt.Errorf("review %s deadline passed: %w", reviewID, domain.ErrReviewNotFound)
	}

	invited := false
	for _, r := range review.Reviewers {
		if r == reviewerID {
			invited = true
			break
		}
	}
	if !invited {
		return nil, fmt.Errorf("reviewer %s was not invited to review %s", reviewerID, reviewID)
	}
	if review.HasResponded(reviewerID) {
		return nil, fmt.Errorf("review %s: %w", reviewID, domain.ErrAlreadyResponded)
	}

	review.Responses = append(review.Responses, domain.ReviewResponse{
		ReviewerID:  reviewerID,
		Verdict:     verdict,
		Comment:     comment,
		RespondedAt: now,
	})
	if review.AllResponded() {
		review.Status = domain.ReviewCompleted
		review.CompletedAt = &now
	}
	if err := s.decisions.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// GetReview reads a review, finalizing it first when its deadline has passed
// so a timed-out review never reads as still open.
func (s *decisionService) GetReview(ctx context.Context, reviewID uuid.UUID) (*domain.DecisionReview, error) {
	review, err := s.decisions.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if _, err := s.finalizeExpired(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// finalizeExpired completes a review whose deadline has passed. CompletedAt
// is backdated to the deadline and partial responses are kept.
func (s *decisionService) finalizeExpired(ctx context.Context, review *domain.DecisionReview) (bool, error) {
	if review.Status != domain.ReviewUnderReview || !time.Now().After(review.Deadline) {
		return false, nil
	}
	review.Status = domain.ReviewCompleted
	completedAt := review.Deadline
	review.CompletedAt = &completedAt
	if err := s.decisions.UpdateReview(ctx, review); err != nil {
		return false, err
	}
	return true, nil
}
