package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// ProcessedContent is the rendered artifact derived from a Story. At most one
// active row exists per story; the invariant is enforced when the processing
// machine completes a claim.
type ProcessedContent struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoryID        uuid.UUID           `gorm:"column:story_id;type:uuid;not null;index" json:"story_id"`
	CleanedText    string              `gorm:"column:cleaned_text;type:text" json:"cleaned_text"`
	Script         string              `gorm:"column:script;type:text" json:"script"`
	AudioPath      string              `gorm:"column:audio_path;size:255" json:"audio_path"`
	BackgroundPath string              `gorm:"column:background_path;size:255" json:"background_path"`
	FinalPath      string              `gorm:"column:final_path;size:255" json:"final_path"`
	Duration       float64             `gorm:"column:duration_seconds" json:"duration_seconds"`
	ProcessedAt    time.Time           `gorm:"column:processed_at;index;autoCreateTime" json:"processed_at"`
	Status         enums.ContentStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`

	Story *Story `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ProcessedContent) TableName() string { return "processed_content" }
