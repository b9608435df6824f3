package publishing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// Repository exposes persistence for platform publications and the derived
// content status.
type Repository interface {
	GetContent(ctx context.Context, contentID uuid.UUID) (*models.ProcessedContent, error)
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
	GetPublication(ctx context.Context, pubID uuid.UUID) (*models.PlatformPublication, error)
	HasActivePublication(ctx context.Context, contentID uuid.UUID, platform enums.Platform) (bool, error)
	Create(ctx context.Context, pub *models.PlatformPublication) error
	Due(ctx context.Context, now time.Time, limit int) ([]models.PlatformPublication, error)
	ClaimPublication(ctx context.Context, pubID, leaseToken uuid.UUID, now, expiresAt time.Time) (bool, error)
	MarkPublished(ctx context.Context, pubID, leaseToken uuid.UUID, remoteID, remoteURL string, publishedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, pubID uuid.UUID, leaseToken *uuid.UUID, message string) (bool, error)
	RecordTransientFailure(ctx context.Context, pubID, leaseToken uuid.UUID, message string) (bool, error)
	FailIfExhausted(ctx context.Context, pubID uuid.UUID, maxAttempts int) (bool, error)
	HasPublishedChild(ctx context.Context, contentID uuid.UUID) (bool, error)
	SetContentStatus(ctx context.Context, contentID uuid.UUID, status enums.ContentStatus) error
	ListUnscheduledContent(ctx context.Context, limit int) ([]models.ProcessedContent, error)
	ListByContent(ctx context.Context, contentID uuid.UUID) ([]models.PlatformPublication, error)
	ListPublished(ctx context.Context, limit int) ([]models.PlatformPublication, error)
	UpdateEngagement(ctx context.Context, pubID uuid.UUID, views, likes, shares, comments int) error
	Monitor(ctx context.Context, limit int) ([]MonitorRow, error)
}

// MonitorRow is one line of the pipeline monitor: a publication joined with
// its content artifact and source story.
type MonitorRow struct {
	PublicationID     uuid.UUID               `gorm:"column:publication_id" json:"publication_id"`
	Platform          enums.Platform          `gorm:"column:platform" json:"platform"`
	PublicationStatus enums.PublicationStatus `gorm:"column:publication_status" json:"publication_status"`
	ScheduledAt       time.Time               `gorm:"column:scheduled_time" json:"scheduled_time"`
	RemoteURL         string                  `gorm:"column:remote_url" json:"remote_url"`
	ViewCount         int                     `gorm:"column:view_count" json:"view_count"`
	ContentID         uuid.UUID               `gorm:"column:content_id" json:"content_id"`
	ContentStatus     enums.ContentStatus     `gorm:"column:content_status" json:"content_status"`
	StoryID           uuid.UUID               `gorm:"column:story_id" json:"story_id"`
	StoryTitle        string                  `gorm:"column:story_title" json:"story_title"`
	StoryStatus       enums.StoryStatus       `gorm:"column:story_status" json:"story_status"`
	ImportanceScore   int                     `gorm:"column:importance_score" json:"importance_score"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a publishing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetContent(ctx context.Context, contentID uuid.UUID) (*models.ProcessedContent, error) {
	var content models.ProcessedContent
	err := r.db.WithContext(ctx).First(&content, "id = ?", contentID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &content, nil
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

func (r *repositoryImpl) GetPublication(ctx context.Context, pubID uuid.UUID) (*models.PlatformPublication, error) {
	var pub models.PlatformPublication
	err := r.db.WithContext(ctx).First(&pub, "id = ?", pubID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pub, nil
}

func (r *repositoryImpl) HasActivePublication(ctx context.Context, contentID uuid.UUID, platform enums.Platform) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("content_id = ? AND platform = ? AND status <> ?", contentID, platform, enums.PublicationStatusFailed).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) Create(ctx context.Context, pub *models.PlatformPublication) error {
	if pub.ID == uuid.Nil {
		pub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(pub).Error
}

// Due returns scheduled publications whose slot has passed, earliest slot
// first and higher-importance stories first within a slot. Rows under a live
// lease are skipped.
func (r *repositoryImpl) Due(ctx context.Context, now time.Time, limit int) ([]models.PlatformPublication, error) {
	var pubs []models.PlatformPublication
	err := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Joins("JOIN processed_content ON processed_content.id = platform_publications.content_id").
		Joins("JOIN stories ON stories.id = processed_content.story_id").
		Where("platform_publications.status = ?", enums.PublicationStatusScheduled).
		Where("platform_publications.scheduled_time <= ?", now).
		Where("platform_publications.lease_token IS NULL OR platform_publications.lease_expires_at < ?", now).
		Order("platform_publications.scheduled_time ASC, stories.importance_score DESC").
		Limit(limit).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}
	return pubs, nil
}

func (r *repositoryImpl) ClaimPublication(ctx context.Context, pubID, leaseToken uuid.UUID, now, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ? AND status = ?", pubID, enums.PublicationStatusScheduled).
		Where("lease_token IS NULL OR lease_expires_at < ?", now).
		Updates(map[string]any{
			"lease_token":      leaseToken,
			"lease_expires_at": expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkPublished(ctx context.Context, pubID, leaseToken uuid.UUID, remoteID, remoteURL string, publishedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ? AND status = ? AND lease_token = ?", pubID, enums.PublicationStatusScheduled, leaseToken).
		Updates(map[string]any{
			"status":           enums.PublicationStatusPublished,
			"remote_id":        remoteID,
			"remote_url":       remoteURL,
			"published_at":     publishedAt,
			"last_error":       nil,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, pubID uuid.UUID, leaseToken *uuid.UUID, message string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ? AND status = ?", pubID, enums.PublicationStatusScheduled)
	if leaseToken != nil {
		query = query.Where("lease_token = ?", *leaseToken)
	}
	result := query.Updates(map[string]any{
		"status":           enums.PublicationStatusFailed,
		"last_error":       message,
		"lease_token":      nil,
		"lease_expires_at": nil,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordTransientFailure bumps the attempt counter and releases the lease so
// the row is picked up again on a later dispatch pass.
func (r *repositoryImpl) RecordTransientFailure(ctx context.Context, pubID, leaseToken uuid.UUID, message string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ? AND status = ? AND lease_token = ?", pubID, enums.PublicationStatusScheduled, leaseToken).
		Updates(map[string]any{
			"attempt_count":    gorm.Expr("attempt_count + 1"),
			"last_error":       message,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FailIfExhausted(ctx context.Context, pubID uuid.UUID, maxAttempts int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ? AND status = ? AND attempt_count >= ?", pubID, enums.PublicationStatusScheduled, maxAttempts).
		Updates(map[string]any{
			"status":           enums.PublicationStatusFailed,
			"lease_token":      nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) HasPublishedChild(ctx context.Context, contentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("content_id = ? AND status = ?", contentID, enums.PublicationStatusPublished).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) SetContentStatus(ctx context.Context, contentID uuid.UUID, status enums.ContentStatus) error {
	return r.db.WithContext(ctx).Model(&models.ProcessedContent{}).
		Where("id = ?", contentID).
		Update("status", status).Error
}

// ListUnscheduledContent returns processed content with no publication rows
// at all, oldest first.
func (r *repositoryImpl) ListUnscheduledContent(ctx context.Context, limit int) ([]models.ProcessedContent, error) {
	var contents []models.ProcessedContent
	err := r.db.WithContext(ctx).Model(&models.ProcessedContent{}).
		Where("status = ?", enums.ContentStatusProcessed).
		Where("NOT EXISTS (SELECT 1 FROM platform_publications WHERE platform_publications.content_id = processed_content.id)").
		Order("processed_at ASC").
		Limit(limit).
		Find(&contents).Error
	if err != nil {
		return nil, err
	}
	return contents, nil
}

func (r *repositoryImpl) ListByContent(ctx context.Context, contentID uuid.UUID) ([]models.PlatformPublication, error) {
	var pubs []models.PlatformPublication
	err := r.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("scheduled_time ASC").
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}
	return pubs, nil
}

func (r *repositoryImpl) ListPublished(ctx context.Context, limit int) ([]models.PlatformPublication, error) {
	var pubs []models.PlatformPublication
	err := r.db.WithContext(ctx).
		Where("status = ? AND remote_id IS NOT NULL", enums.PublicationStatusPublished).
		Order("published_at DESC").
		Limit(limit).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}
	return pubs, nil
}

func (r *repositoryImpl) UpdateEngagement(ctx context.Context, pubID uuid.UUID, views, likes, shares, comments int) error {
	return r.db.WithContext(ctx).Model(&models.PlatformPublication{}).
		Where("id = ?", pubID).
		Updates(map[string]any{
			"view_count":    views,
			"like_count":    likes,
			"share_count":   shares,
			"comment_count": comments,
		}).Error
}

func (r *repositoryImpl) Monitor(ctx context.Context, limit int) ([]MonitorRow, error) {
	var rows []MonitorRow
	err := r.db.WithContext(ctx).
		Table("platform_publications AS p").
		Select(`p.id AS publication_id, p.platform, p.status AS publication_status,
			p.scheduled_time, p.remote_url, p.view_count,
			c.id AS content_id, c.status AS content_status,
			s.id AS story_id, s.title AS story_title, s.status AS story_status,
			s.importance_score`).
		Joins("JOIN processed_content c ON c.id = p.content_id").
		Joins("JOIN stories s ON s.id = c.story_id").
		Order("p.scheduled_time DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
