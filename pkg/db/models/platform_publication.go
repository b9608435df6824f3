package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// PlatformPublication is a scheduled or completed delivery of a
// ProcessedContent to one external platform. Multiple rows per content are
// intentional fan-out, one per platform.
type PlatformPublication struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ContentID   uuid.UUID               `gorm:"column:content_id;type:uuid;not null;index" json:"content_id"`
	Platform    enums.Platform          `gorm:"column:platform;size:20;not null;index" json:"platform"`
	RemoteID    *string                 `gorm:"column:remote_id;size:64" json:"remote_id"`
	RemoteURL   string                  `gorm:"column:remote_url;size:255" json:"remote_url"`
	Title       string                  `gorm:"column:title;size:255" json:"title"`
	Description string                  `gorm:"column:description;type:text" json:"description"`
	Tags        string                  `gorm:"column:tags;type:text" json:"tags"`
	ScheduledAt time.Time               `gorm:"column:scheduled_time;not null;index" json:"scheduled_time"`
	Status      enums.PublicationStatus `gorm:"column:status;size:20;not null;default:scheduled;index" json:"status"`
	PublishedAt *time.Time              `gorm:"column:published_at" json:"published_at"`

	ViewCount    int `gorm:"column:view_count;not null;default:0" json:"view_count"`
	LikeCount    int `gorm:"column:like_count;not null;default:0" json:"like_count"`
	ShareCount   int `gorm:"column:share_count;not null;default:0" json:"share_count"`
	CommentCount int `gorm:"column:comment_count;not null;default:0" json:"comment_count"`

	AttemptCount int     `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError    *string `gorm:"column:last_error;type:text" json:"last_error"`

	LeaseToken     *uuid.UUID `gorm:"column:lease_token;type:uuid" json:"-"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at" json:"-"`

	Content *ProcessedContent `gorm:"foreignKey:ContentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PlatformPublication) TableName() string { return "platform_publications" }
