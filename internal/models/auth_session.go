package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthSession backs one refresh-token lineage. RefreshTokenHash is nil only
// inside the transaction that creates the row.
type AuthSession struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uint      `gorm:"not null;index"`
	RefreshTokenHash *string   `gorm:"size:64;uniqueIndex"`
	ExpiresAt        time.Time `gorm:"not null;index"`
	RevokedAt        *time.Time
	CreatedAt        time.Time
	User             User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (s *AuthSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the session is neither revoked nor expired at now.
func (s *AuthSession) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
