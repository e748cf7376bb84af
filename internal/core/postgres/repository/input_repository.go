package repository

import (
	"context"
	"fmt"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type inputRepository struct {
	db *gorm.DB
}

// NewInputRepository creates a new instance of InputRepository
func NewInputRepository(db *gorm.DB) ports.InputRepository {
	return &inputRepository{db: db}
}

// Enqueue assigns the next sequence number and inserts, atomically with the
// workflow existence check. The unique (workflow_id, sequence_number) index
// keeps the sequence gapless if two writers race: the loser's transaction
// fails and is retried by the caller.
func (r *inputRepository) Enqueue(ctx context.Context, input *domain.QueuedInput) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.WorkflowInstance{}).
			Where("id = ?", input.WorkflowID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrWorkflowNotFound
		}

		var latest int
		row := tx.Model(&domain.QueuedInput{}).
			Where("workflow_id = ?", input.WorkflowID).
			Select("COALESCE(MAX(sequence_number), 0)").
			Row()
		if err := row.Scan(&latest); err != nil {
			return err
		}

		input.SequenceNumber = latest + 1
		return tx.Create(input).Error
	})
}

func (r *inputRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueuedInput, error) {
	var input domain.QueuedInput
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&input).Error; err != nil {
		return nil, err
	}
	return &input, nil
}

func (r *inputRepository) ListQueued(ctx context.Context, workflowID uuid.UUID) ([]domain.QueuedInput, error) {
	var inputs []domain.QueuedInput
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND status = ?", workflowID, domain.InputQueued).
		Order("sequence_number ASC").
		Find(&inputs).Error
	return inputs, err
}

func (r *inputRepository) ListQueuedByField(ctx context.Context, workflowID uuid.UUID, fieldName string) ([]domain.QueuedInput, error) {
	var inputs []domain.QueuedInput
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND field_name = ? AND status = ?", workflowID, fieldName, domain.InputQueued).
		Order("sequence_number ASC").
		Find(&inputs).Error
	return inputs, err
}

// MarkOutcome transitions an input out of Queued exactly once; the status
// predicate makes a second transition a no-op error.
func (r *inputRepository) MarkOutcome(ctx context.Context, id uuid.UUID, status domain.InputStatus, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.QueuedInput{}).
		Where("id = ? AND status = ?", id, domain.InputQueued).
		Updates(map[string]interface{}{
			"status":           status,
			"rejection_reason": reason,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("input %s already left queued status: %w", id, domain.ErrConcurrencyConflict)
	}
	return nil
}

func (r *inputRepository) ResetFailed(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.QueuedInput{}).
		Where("workflow_id = ? AND status = ?", workflowID, domain.InputFailed).
		Updates(map[string]interface{}{
			"status":           domain.InputQueued,
			"rejection_reason": "",
			"updated_at":       time.Now(),
		})
	return result.RowsAffected, result.Error
}
