package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// Repository exposes persistence helpers for the audit trail.
type Repository interface {
	Append(ctx context.Context, entry *models.ErrorLog) error
	List(ctx context.Context, params ListParams) ([]models.ErrorLog, error)
	Resolve(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListParams filters the audit listing.
type ListParams struct {
	Kind       enums.EntityKind
	Category   enums.ErrorCategory
	Unresolved bool
	Limit      int
}

func (r *repositoryImpl) Append(ctx context.Context, entry *models.ErrorLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.ErrorLog, error) {
	query := r.db.WithContext(ctx).Model(&models.ErrorLog{})
	if params.Kind != "" {
		query = query.Where("related_table = ?", params.Kind)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Unresolved {
		query = query.Where("resolved = ?", false)
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []models.ErrorLog
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *repositoryImpl) Resolve(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ErrorLog{}).
		Where("id = ? AND resolved = ?", id, false).
		UpdateColumn("resolved", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("resolved = ? AND created_at < ?", true, cutoff).
		Delete(&models.ErrorLog{})
	return result.RowsAffected, result.Error
}
