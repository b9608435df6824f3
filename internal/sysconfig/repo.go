package sysconfig

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
)

// Repository reads and writes operator configuration entries.
type Repository interface {
	Get(ctx context.Context, key string) (*models.ConfigEntry, error)
	List(ctx context.Context) ([]models.ConfigEntry, error)
	Upsert(ctx context.Context, key, value, description string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a config repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, key string) (*models.ConfigEntry, error) {
	var entry models.ConfigEntry
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.ConfigEntry, error) {
	var entries []models.ConfigEntry
	err := r.db.WithContext(ctx).Order("config_key ASC").Find(&entries).Error
	return entries, err
}

func (r *repositoryImpl) Upsert(ctx context.Context, key, value, description string) error {
	var existing models.ConfigEntry
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(&models.ConfigEntry{
			Key:         key,
			Value:       value,
			Description: description,
		}).Error
	case err != nil:
		return err
	}

	updates := map[string]any{"config_value": value}
	if description != "" {
		updates["description"] = description
	}
	return r.db.WithContext(ctx).
		Model(&models.ConfigEntry{}).
		Where("config_key = ?", key).
		Updates(updates).Error
}
