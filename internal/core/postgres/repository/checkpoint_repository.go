package repository

import (
	"context"
	"errors"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a new instance of CheckpointRepository
func NewCheckpointRepository(db *gorm.DB) ports.CheckpointRepository {
	return &checkpointRepository{db: db}
}

// Create runs the whole unit in one transaction: read the workflow and its
// context, read the latest checkpoint version, insert at latest+1. The unique
// (workflow_id, version) index rejects the loser if two writers race, rolling
// the unit back with no partial checkpoint.
func (r *checkpointRepository) Create(ctx context.Context, workflowID uuid.UUID, stepID string, cpType domain.CheckpointType, triggeredBy string) (*domain.Checkpoint, error) {
	var created *domain.Checkpoint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wf domain.WorkflowInstance
		if err := tx.Where("id = ?", workflowID).First(&wf).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWorkflowNotFound
			}
			return err
		}

		var sc domain.SharedContext
		if err := tx.Where("workflow_id = ?", workflowID).First(&sc).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var latest int
		row := tx.Model(&domain.Checkpoint{}).
			Where("workflow_id = ?", workflowID).
			Select("COALESCE(MAX(version), 0)").
			Row()
		if err := row.Scan(&latest); err != nil {
			return err
		}

		snap := domain.StateSnapshot{
			Status:           wf.Status,
			CurrentStepIndex: wf.CurrentStepIndex,
			StepData:         wf.StepData,
			ContextVersion:   sc.Version,
			StepOutputs:      sc.StepOutputs,
			Decisions:        sc.Decisions,
			Artifacts:        sc.Artifacts,
			ContextSummary:   sc.Summary,
		}

		cp, err := domain.NewCheckpoint(workflowID, stepID, cpType, latest+1, snap, triggeredBy)
		if err != nil {
			return err
		}
		if err := tx.Create(cp).Error; err != nil {
			return err
		}
		created = cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *checkpointRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *checkpointRepository) List(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.Checkpoint, error) {
	var cps []domain.Checkpoint
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&cps).Error
	return cps, err
}

func (r *checkpointRepository) Latest(ctx context.Context, workflowID uuid.UUID) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("version DESC").
		First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Restore overwrites the workflow's mutable fields and its shared context
// from the snapshot, in one transaction. The context version keeps increasing
// (stored+1) so writers holding a pre-restore read observe a concurrency
// failure instead of clobbering the restored state.
func (r *checkpointRepository) Restore(ctx context.Context, workflowID, checkpointID uuid.UUID) (*domain.Checkpoint, error) {
	var restored *domain.Checkpoint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cp domain.Checkpoint
		if err := tx.Where("id = ? AND workflow_id = ?", checkpointID, workflowID).First(&cp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCheckpointNotFound
			}
			return err
		}

		snap, err := cp.DecodeSnapshot()
		if err != nil {
			return err
		}

		result := tx.Model(&domain.WorkflowInstance{}).
			Where("id = ?", workflowID).
			Updates(map[string]interface{}{
				"status":             snap.Status,
				"current_step_index": snap.CurrentStepIndex,
				"step_data":          datatypes.JSONMap(snap.StepData),
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrWorkflowNotFound
		}

		var sc domain.SharedContext
		if err := tx.Where("workflow_id = ?", workflowID).First(&sc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				restored = &cp
				return nil
			}
			return err
		}
		sc.Version++
		sc.StepOutputs = snap.StepOutputs
		sc.Decisions = snap.Decisions
		sc.Artifacts = snap.Artifacts
		sc.Summary = snap.ContextSummary
		sc.LastModifiedAt = time.Now()
		sc.LastModifiedBy = cp.TriggeredBy
		if err := tx.Model(&sc).
			Select("version", "step_outputs", "decisions", "artifacts", "summary", "last_modified_at", "last_modified_by").
			Updates(&sc).Error; err != nil {
			return err
		}

		restored = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}
