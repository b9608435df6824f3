package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// Story is a source content item collected from the upstream platform.
// The external id is the dedup key; status is mutated only by the processing
// state machine, guarded by the lease columns.
type Story struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExternalID      string            `gorm:"column:external_id;size:50;uniqueIndex;not null" json:"external_id"`
	Title           string            `gorm:"column:title;size:512;not null" json:"title"`
	Body            string            `gorm:"column:body;type:text;not null" json:"body"`
	Author          string            `gorm:"column:author;size:128;index" json:"author"`
	Score           int               `gorm:"column:score;not null;default:0" json:"score"`
	UpvoteRatio     float64           `gorm:"column:upvote_ratio" json:"upvote_ratio"`
	CommentCount    int               `gorm:"column:comment_count;not null;default:0" json:"comment_count"`
	Flair           string            `gorm:"column:flair;size:50" json:"flair"`
	NSFW            bool              `gorm:"column:nsfw;not null;default:false" json:"nsfw"`
	Awards          int               `gorm:"column:awards;not null;default:0" json:"awards"`
	SourceURL       string            `gorm:"column:source_url;size:512" json:"source_url"`
	SourceCreatedAt time.Time         `gorm:"column:source_created_at;index" json:"source_created_at"`
	CollectedAt     time.Time         `gorm:"column:collected_at;index;autoCreateTime" json:"collected_at"`
	Language        string            `gorm:"column:language;size:8;not null;default:es" json:"language"`
	Status          enums.StoryStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	ImportanceScore int               `gorm:"column:importance_score;not null;default:0;index" json:"importance_score"`

	LeaseToken     *uuid.UUID `gorm:"column:lease_token;type:uuid" json:"-"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at" json:"-"`
}

func (Story) TableName() string { return "stories" }
