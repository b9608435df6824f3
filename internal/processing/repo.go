package processing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// Repository exposes the lease-guarded story transitions. Every mutation is a
// conditional update; RowsAffected tells the caller whether it won.
type Repository interface {
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
	ClaimStory(ctx context.Context, storyID, leaseToken uuid.UUID, expiresAt time.Time) (bool, error)
	CompleteStory(ctx context.Context, storyID, leaseToken uuid.UUID, content *models.ProcessedContent) (bool, error)
	FailStory(ctx context.Context, storyID uuid.UUID, leaseToken *uuid.UUID) (bool, error)
	ReleaseStory(ctx context.Context, storyID, leaseToken uuid.UUID) (bool, error)
	ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error)
	RequeueStory(ctx context.Context, storyID uuid.UUID) (bool, error)
	DeleteStoriesCollectedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ContentByStoryID(ctx context.Context, storyID uuid.UUID) (*models.ProcessedContent, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a processing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := r.db.WithContext(ctx).First(&story, "id = ?", storyID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &story, nil
}

// ClaimStory transitions pending → processing and stamps the lease. The
// status predicate makes concurrent claims race safely: exactly one caller
// observes RowsAffected == 1.
func (r *repositoryImpl) ClaimStory(ctx context.Context, storyID, leaseToken uuid.UUID, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, enums.StoryStatusPending).
		Updates(map[string]any{
			"status":           enums.StoryStatusProcessing,
			"lease_token":      leaseToken,
			"lease_expires_at": expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteStory inserts the content row and advances the story in one
// transaction, so a lost lease never leaves a dangling content row.
func (r *repositoryImpl) CompleteStory(ctx context.Context, storyID, leaseToken uuid.UUID, content *models.ProcessedContent) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Story{}).
			Where("id = ? AND status = ? AND lease_token = ?", storyID, enums.StoryStatusProcessing, leaseToken).
			Updates(map[string]any{
				"status":           enums.StoryStatusProcessed,
				"lease_token":      nil,
				"lease_expires_at": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if content.ID == uuid.Nil {
			content.ID = uuid.New()
		}
		if err := tx.Create(content).Error; err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

// FailStory transitions processing → failed. With a token it enforces lease
// ownership; without one it is an operator override.
func (r *repositoryImpl) FailStory(ctx context.Context, storyID uuid.UUID, leaseToken *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, enums.StoryStatusProcessing)
	if leaseToken != nil {
		query = query.Where("lease_token = ?", *leaseToken)
	}
	result := query.Updates(map[string]any{
		"status":           enums.StoryStatusFailed,
		"lease_token":      nil,
		"lease_expires_at": nil,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseStory hands a claimed story back to the pending pool, used when a
// transient dependency failure makes retrying later preferable to failing.
func (r *repositoryImpl) ReleaseStory(ctx context.Context, storyID, leaseToken uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("id = ? AND status = ? AND lease_token = ?", storyID, enums.StoryStatusProcessing, leaseToken).
		Updates(map[string]any{
			"status":           enums.StoryStatusPending,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReapExpiredLeases returns stranded processing stories to the pending pool
// once their lease has lapsed.
func (r *repositoryImpl) ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?", enums.StoryStatusProcessing, now).
		Updates(map[string]any{
			"status":           enums.StoryStatusPending,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	return result.RowsAffected, result.Error
}

// RequeueStory puts a failed story back to pending for another attempt.
func (r *repositoryImpl) RequeueStory(ctx context.Context, storyID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, enums.StoryStatusFailed).
		Updates(map[string]any{
			"status":           enums.StoryStatusPending,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteStoriesCollectedBefore removes delivered and dead stories past the
// retention cutoff. Content and publication rows follow via cascade.
func (r *repositoryImpl) DeleteStoriesCollectedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("collected_at < ? AND status IN ?", cutoff, []enums.StoryStatus{enums.StoryStatusPublished, enums.StoryStatusFailed}).
		Delete(&models.Story{})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ContentByStoryID(ctx context.Context, storyID uuid.UUID) (*models.ProcessedContent, error) {
	var content models.ProcessedContent
	err := r.db.WithContext(ctx).First(&content, "story_id = ?", storyID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &content, nil
}
