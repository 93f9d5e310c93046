package models

import "time"

// SequenceCounter backs the human-facing code series (MED, RX, PAT).
// Value only moves forward, via a single guarded increment statement.
type SequenceCounter struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
