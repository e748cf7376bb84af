package repository

import (
	"context"
	"errors"
	"fmt"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type contextRepository struct {
	db *gorm.DB
}

// NewContextRepository creates a new instance of ContextRepository
func NewContextRepository(db *gorm.DB) ports.ContextRepository {
	return &contextRepository{db: db}
}

func (r *contextRepository) Create(ctx context.Context, sc *domain.SharedContext) error {
	return r.db.WithContext(ctx).Create(sc).Error
}

func (r *contextRepository) GetByWorkflowID(ctx context.Context, workflowID uuid.UUID) (*domain.SharedContext, error) {
	var sc domain.SharedContext
	err := r.db.WithContext(ctx).Where("workflow_id = ?", workflowID).First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrContextNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ConditionalUpdate is the optimistic gate: the presented context must carry
// version stored+1, asserted by the version predicate. RowsAffected == 0 means
// another writer got there first and the caller must re-read and retry.
func (r *contextRepository) ConditionalUpdate(ctx context.Context, sc *domain.SharedContext) error {
	result := r.db.WithContext(ctx).
		Model(&domain.SharedContext{}).
		Where("workflow_id = ? AND version = ?", sc.WorkflowID, sc.Version-1).
		Select("version", "step_outputs", "decisions", "artifacts",
			"preferences", "summary", "last_modified_at", "last_modified_by").
		Updates(sc)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("shared context for workflow %s at version %d: %w",
			sc.WorkflowID, sc.Version-1, domain.ErrConcurrencyConflict)
	}
	return nil
}
