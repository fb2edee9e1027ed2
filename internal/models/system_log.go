package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog is an ERROR-level log record persisted for later inspection.
type SystemLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Timestamp time.Time `gorm:"not null;index"`
	Level     string    `gorm:"size:10;not null;index"`
	Message   string    `gorm:"type:text"`
	RequestID string    `gorm:"size:64;index"`
	UserID    *uint     `gorm:"index"`
	Method    string    `gorm:"size:10"`
	Path      string    `gorm:"size:255"`
	Error     string    `gorm:"type:text"`
	LatencyMs int
	Extra     datatypes.JSON `gorm:"default:'{}'"`
	CreatedAt time.Time
}
