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

type decisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new instance of DecisionRepository
func NewDecisionRepository(db *gorm.DB) ports.DecisionRepository {
	return &decisionRepository{db: db}
}

// Create inserts the decision together with version 1 of its history.
func (r *decisionRepository) Create(ctx context.Context, d *domain.Decision, initialValue datatypes.JSON) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		v1 := &domain.DecisionVersion{
			ID:            uuid.New(),
			DecisionID:    d.ID,
			VersionNumber: 1,
			Value:         initialValue,
			ModifiedBy:    d.DecidedBy,
			ModifiedAt:    d.DecidedAt,
			ChangeReason:  "initial decision",
		}
		return tx.Create(v1).Error
	})
}

func (r *decisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Decision, error) {
	var d domain.Decision
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDecisionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AppendVersion inserts the next version in one transaction. The lock check
// and max-version read happen inside the same unit; the unique
// (decision_id, version_number) index rejects a racing writer so version
// numbers stay gapless.
func (r *decisionRepository) AppendVersion(ctx context.Context, decisionID uuid.UUID, value datatypes.JSON, modifiedBy uuid.UUID, changeReason string) (*domain.DecisionVersion, error) {
	var created *domain.DecisionVersion

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.Decision
		if err := tx.Where("id = ?", decisionID).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDecisionNotFound
			}
			return err
		}
		if d.Locked {
			return domain.ErrDecisionLocked
		}

		var latest int
		row := tx.Model(&domain.DecisionVersion{}).
			Where("decision_id = ?", decisionID).
			Select("COALESCE(MAX(version_number), 0)").
			Row()
		if err := row.Scan(&latest); err != nil {
			return err
		}

		v := &domain.DecisionVersion{
			ID:            uuid.New(),
			DecisionID:    decisionID,
			VersionNumber: latest + 1,
			Value:         value,
			ModifiedBy:    modifiedBy,
			ModifiedAt:    time.Now(),
			ChangeReason:  changeReason,
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Decision{}).
			Where("id = ?", decisionID).
			Update("updated_at", v.ModifiedAt).Error; err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *decisionRepository) GetVersion(ctx context.Context, decisionID uuid.UUID, versionNumber int) (*domain.DecisionVersion, error) {
	var v domain.DecisionVersion
	err := r.db.WithContext(ctx).
		Where("decision_id = ? AND version_number = ?", decisionID, versionNumber).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *decisionRepository) LatestVersion(ctx context.Context, decisionID uuid.UUID) (*domain.DecisionVersion, error) {
	var v domain.DecisionVersion
	err := r.db.WithContext(ctx).
		Where("decision_id = ?", decisionID).
		Order("version_number DESC").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *decisionRepository) ListVersions(ctx context.Context, decisionID uuid.UUID) ([]domain.DecisionVersion, error) {
	var versions []domain.DecisionVersion
	err := r.db.WithContext(ctx).
		Where("decision_id = ?", decisionID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

func (r *decisionRepository) SetLock(ctx context.Context, decisionID uuid.UUID, locked bool, by, reason string) error {
	updates := map[string]interface{}{
		"locked":     locked,
		"locked_by":  by,
		"updated_at": time.Now(),
	}
	if locked {
		updates["lock_reason"] = reason
	} else {
		updates["unlock_reason"] = reason
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Decision{}).
		Where("id = ?", decisionID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDecisionNotFound
	}
	return nil
}

func (r *decisionRepository) CreateReview(ctx context.Context, rv *domain.DecisionReview) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

func (r *decisionRepository) GetReview(ctx context.Context, id uuid.UUID) (*domain.DecisionReview, error) {
	var rv domain.DecisionReview
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *decisionRepository) UpdateReview(ctx context.Context, rv *domain.DecisionReview) error {
	return r.db.WithContext(ctx).
		Model(&domain.DecisionReview{}).
		Where("id = ?", rv.ID).
		Select("status", "responses", "completed_at").
		Updates(rv).Error
}
