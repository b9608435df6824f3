package ingest

import (
	"context"

	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
)

// Repository exposes persistence helpers for story ingestion.
type Repository interface {
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	Create(ctx context.Context, story *models.Story) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an ingestion repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("external_id = ?", externalID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) Create(ctx context.Context, story *models.Story) error {
	return r.db.WithContext(ctx).Create(story).Error
}
