package repository

import (
	"context"
	"errors"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type conflictRepository struct {
	db *gorm.DB
}

// NewConflictRepository creates a new instance of ConflictRepository
func NewConflictRepository(db *gorm.DB) ports.ConflictRepository {
	return &conflictRepository{db: db}
}

func (r *conflictRepository) Create(ctx context.Context, c *domain.Conflict) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conflictRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	var c domain.Conflict
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConflictNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conflictRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Conflict, error) {
	var conflicts []domain.Conflict
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Find(&conflicts).Error
	return conflicts, err
}

func (r *conflictRepository) FindPendingByField(ctx context.Context, workflowID uuid.UUID, fieldName string) (*domain.Conflict, error) {
	var c domain.Conflict
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND field_name = ? AND status = ?", workflowID, fieldName, domain.ConflictPending).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConflictNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conflictRepository) HasPendingForInput(ctx context.Context, workflowID, inputID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Conflict{}).
		Where("workflow_id = ? AND status = ? AND inputs::text LIKE ?",
			workflowID, domain.ConflictPending, "%"+inputID.String()+"%").
		Count(&count).Error
	return count > 0, err
}

// Resolve stamps the resolution while the conflict is still Pending. The
// status predicate enforces resolve-exactly-once: a second attempt affects no
// rows and surfaces ErrConflictAlreadyResolved without touching the stored
// resolution.
func (r *conflictRepository) Resolve(ctx context.Context, id uuid.UUID, res domain.ConflictResolution) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Conflict{}).
		Where("id = ? AND status = ?", id, domain.ConflictPending).
		Select("status", "resolution").
		Updates(&domain.Conflict{Status: domain.ConflictResolved, Resolution: &res})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&domain.Conflict{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrConflictNotFound
		}
		return domain.ErrConflictAlreadyResolved
	}
	return nil
}

func (r *conflictRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Conflict, error) {
	var conflicts []domain.Conflict
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.ConflictPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&conflicts).Error
	return conflicts, err
}

// Escalate is idempotent: the status predicate means a sweep re-running over
// the same row changes nothing.
func (r *conflictRepository) Escalate(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Conflict{}).
		Where("id = ? AND status = ?", id, domain.ConflictPending).
		Updates(map[string]interface{}{
			"status":       domain.ConflictEscalated,
			"escalated_at": at,
		}).Error
}

// RecordEscalationFailure counts a failed escalation attempt against a
// still-Pending conflict and parks it as EscalationFailed once the retry
// budget is exhausted.
func (r *conflictRepository) RecordEscalationFailure(ctx context.Context, id uuid.UUID, maxRetries int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Conflict{}).
			Where("id = ? AND status = ?", id, domain.ConflictPending).
			Update("escalation_retries", gorm.Expr("escalation_retries + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conflict{}).
			Where("id = ? AND status = ? AND escalation_retries >= ?", id, domain.ConflictPending, maxRetries).
			Update("status", domain.ConflictEscalationFailed).Error
	})
}
