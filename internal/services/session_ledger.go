package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/torvix/backend/internal/models"
)

// SessionLedger persists refresh-token sessions. Every method runs on the
// handle it was built with, so a ledger obtained through WithTx takes part in
// the caller's transaction.
type SessionLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionLedger(db *gorm.DB) *SessionLedger {
	return &SessionLedger{db: db, now: time.Now}
}

func (l *SessionLedger) WithTx(tx *gorm.DB) *SessionLedger {
	return &SessionLedger{db: tx, now: l.now}
}

// Create inserts a session without a token hash. The caller mints the refresh
// token from the returned id and then calls AttachTokenHash.
func (l *SessionLedger) Create(userID uint, expiresAt time.Time) (*models.AuthSession, error) {
	session := &models.AuthSession{
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := l.db.Omit("User").Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if session.ID == uuid.Nil {
		return nil, errors.New("session created without id")
	}
	return session, nil
}

func (l *SessionLedger) AttachTokenHash(session *models.AuthSession, hash string) error {
	result := l.db.Model(&models.AuthSession{}).
		Where("id = ?", session.ID).
		Update("refresh_token_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to store refresh token hash: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("session %s vanished before hash was stored", session.ID)
	}
	session.RefreshTokenHash = &hash
	return nil
}

// FindByID returns the session or nil when it does not exist.
func (l *SessionLedger) FindByID(id uuid.UUID) (*models.AuthSession, error) {
	var session models.AuthSession
	err := l.db.Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// Revoke marks the session revoked. It reports whether this call performed
// the revocation; revoking an already revoked session is a no-op.
func (l *SessionLedger) Revoke(session *models.AuthSession) (bool, error) {
	now := l.now().UTC()
	result := l.db.Model(&models.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", session.ID).
		Update("revoked_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to revoke session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	session.RevokedAt = &now
	return true, nil
}

// PurgeStale deletes sessions that expired or were revoked before cutoff.
func (l *SessionLedger) PurgeStale(cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	result := l.db.
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&models.AuthSession{})
	return result.RowsAffected, result.Error
}
