package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

// ErrorLog is the append-only audit trail. Related entity is a weak reference
// (kind + id), never a foreign key; only the resolved flag is ever mutated.
type ErrorLog struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RelatedTable enums.EntityKind    `gorm:"column:related_table;size:50;index" json:"related_table"`
	RelatedID    *uuid.UUID          `gorm:"column:related_id;type:uuid;index" json:"related_id"`
	Category     enums.ErrorCategory `gorm:"column:category;size:50;index" json:"category"`
	Message      string              `gorm:"column:message;type:text" json:"message"`
	CreatedAt    time.Time           `gorm:"column:created_at;index;autoCreateTime" json:"created_at"`
	Resolved     bool                `gorm:"column:resolved;not null;default:false;index" json:"resolved"`
}

func (ErrorLog) TableName() string { return "error_logs" }
