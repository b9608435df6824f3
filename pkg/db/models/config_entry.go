package models

import "time"

// ConfigEntry is an operator-writable key/value setting read by selection and
// scheduling. The pipeline never writes this table.
type ConfigEntry struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Key         string    `gorm:"column:config_key;size:50;uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"column:config_value;type:text" json:"value"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ConfigEntry) TableName() string { return "system_config" }
