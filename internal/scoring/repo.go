package scoring

import (
	"context"

	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// Repository exposes the selection queries over stories.
type Repository interface {
	SelectEligible(ctx context.Context, params selectEligibleParams) ([]models.Story, error)
	CountByStatus(ctx context.Context) (map[enums.StoryStatus]int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a scoring repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type selectEligibleParams struct {
	MinScore  int
	MinLength int
	MaxLength int
	Limit     int
}

func (r *repositoryImpl) SelectEligible(ctx context.Context, params selectEligibleParams) ([]models.Story, error) {
	query := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("status = ?", enums.StoryStatusPending).
		Where("importance_score >= ?", params.MinScore).
		Where("nsfw = ?", false)
	if params.MinLength > 0 {
		query = query.Where("LENGTH(body) >= ?", params.MinLength)
	}
	if params.MaxLength > 0 {
		query = query.Where("LENGTH(body) <= ?", params.MaxLength)
	}

	var stories []models.Story
	err := query.Order("importance_score DESC, collected_at ASC").
		Limit(params.Limit).
		Find(&stories).Error
	if err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *repositoryImpl) CountByStatus(ctx context.Context) (map[enums.StoryStatus]int64, error) {
	type row struct {
		Status enums.StoryStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Story{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.StoryStatus]int64, len(rows))
	for _, entry := range rows {
		counts[entry.Status] = entry.Total
	}
	return counts, nil
}
