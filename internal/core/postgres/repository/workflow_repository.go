package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a new instance of WorkflowRepository
func NewWorkflowRepository(db *gorm.DB) ports.WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(ctx context.Context, wf *domain.WorkflowInstance) error {
	return r.db.WithContext(ctx).Create(wf).Error
}

// CreateWithContext inserts the instance and its shared context in one
// transaction so a failure between the two writes leaves neither behind.
func (r *workflowRepository) CreateWithContext(ctx context.Context, wf *domain.WorkflowInstance, sc *domain.SharedContext) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(wf).Error; err != nil {
			return err
		}
		return tx.Create(sc).Error
	})
}

func (r *workflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	var wf domain.WorkflowInstance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// Transition persists a validated status change. The from-status predicate
// makes a raced transition a no-op so the loser observes an error instead of
// silently overwriting the winner.
func (r *workflowRepository) Transition(ctx context.Context, wf *domain.WorkflowInstance, from domain.WorkflowStatus) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ?", wf.ID, from).
		Updates(map[string]interface{}{
			"status":       wf.Status,
			"paused_at":    wf.PausedAt,
			"cancelled_at": wf.CancelledAt,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("workflow %s no longer in status %s: %w", wf.ID, from, domain.ErrConcurrencyConflict)
	}
	return nil
}

func (r *workflowRepository) OverwriteState(ctx context.Context, wf *domain.WorkflowInstance) error {
	return r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ?", wf.ID).
		Updates(map[string]interface{}{
			"status":             wf.Status,
			"current_step_index": wf.CurrentStepIndex,
			"step_data":          wf.StepData,
			"updated_at":         time.Now(),
		}).Error
}

func (r *workflowRepository) SetStepDataField(ctx context.Context, workflowID uuid.UUID, field string, value any) error {
	wf, err := r.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.StepData == nil {
		wf.StepData = map[string]interface{}{}
	}
	wf.StepData[field] = value
	return r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ?", workflowID).
		Updates(map[string]interface{}{
			"step_data":  wf.StepData,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes the instance and everything referencing it by id.
func (r *workflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", id).Delete(&domain.Conflict{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&domain.QueuedInput{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&domain.Checkpoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&domain.SharedContext{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.WorkflowInstance{}).Error
	})
}
