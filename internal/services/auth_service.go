package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/dto"
	"github.com/torvix/backend/internal/models"
	"github.com/torvix/backend/internal/security"
)

const (
	msgEmailTaken         = "User with this email already exists"
	msgInvalidCredentials = "Incorrect email or password"
	msgInvalidRefresh     = "Invalid refresh token"
	msgInvalidAuth        = "Invalid authentication credentials"
)

var (
	ErrEmailTaken         = apperr.Conflict(msgEmailTaken)
	ErrInvalidCredentials = apperr.Unauthorized(msgInvalidCredentials)
	ErrInvalidToken       = apperr.Unauthorized(msgInvalidRefresh)
	ErrInvalidAccess      = apperr.Unauthorized(msgInvalidAuth)
)

// AuthEvents receives auth outcomes for metrics.
type AuthEvents interface {
	AuthEvent(operation, outcome string)
}

type noopEvents struct{}

func (noopEvents) AuthEvent(string, string) {}

// CurrentUser is the identity resolved from an access token.
type CurrentUser struct {
	User      *models.User
	SessionID uuid.UUID
}

type AuthService struct {
	db        *gorm.DB
	cfg       *config.Config
	passwords *security.CredentialStore
	tokens    *security.TokenCodec
	sessions  *SessionLedger
	events    AuthEvents
	now       func() time.Time

	// dummyHash is verified against when the login email is unknown so both
	// paths spend comparable time.
	dummyHash string
}

func NewAuthService(db *gorm.DB, cfg *config.Config, passwords *security.CredentialStore, tokens *security.TokenCodec) *AuthService {
	dummy, err := passwords.Hash(uuid.NewString())
	if err != nil {
		slog.Error("failed to prepare dummy password hash", "error", err)
	}
	return &AuthService{
		db:        db,
		cfg:       cfg,
		passwords: passwords,
		tokens:    tokens,
		sessions:  NewSessionLedger(db),
		events:    noopEvents{},
		now:       time.Now,
		dummyHash: dummy,
	}
}

func (s *AuthService) WithEvents(events AuthEvents) *AuthService {
	s.events = events
	return s
}

// WithClock replaces the clock used for session expiry and token issue times.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	s.sessions.now = now
	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.User, error) {
	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, apperr.InvalidInput("Email and name must not be empty")
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	applyProfile(&user, &req.Profile)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, email, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.events.AuthEvent("register", outcomeOf(err))
		return nil, err
	}
	if user.ID == 0 {
		return nil, apperr.Internal("Internal server error", errors.New("user inserted without id"))
	}

	s.events.AuthEvent("register", "success")
	slog.Info("user registered", "user_id", user.ID)
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	email := NormalizeEmail(req.Email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.passwords.Verify(req.Password, s.dummyHash)
		s.events.AuthEvent("login", "rejected")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !s.passwords.Verify(req.Password, user.PasswordHash) {
		s.events.AuthEvent("login", "rejected")
		return nil, ErrInvalidCredentials
	}

	var pair *dto.TokenResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pair, err = s.issueTokens(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.AuthEvent("login", "success")
	return pair, nil
}

// Refresh rotates the session behind refreshToken. The old session is
// revoked and a new one created in the same transaction; any mismatch is
// reported with the same error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, sessionID, userID, ok := s.decodeRefresh(refreshToken)
	if !ok {
		s.events.AuthEvent("refresh", "rejected")
		return nil, ErrInvalidToken
	}

	var pair *dto.TokenResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.sessions.WithTx(tx)

		session, err := ledger.FindByID(sessionID)
		if err != nil {
			return err
		}
		if !s.sessionMatches(session, userID, refreshToken) {
			return ErrInvalidToken
		}

		var user models.User
		if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		revoked, err := ledger.Revoke(session)
		if err != nil {
			return err
		}
		if !revoked {
			// A concurrent refresh rotated this session first.
			return ErrInvalidToken
		}

		pair, err = s.issueTokens(tx, userID)
		return err
	})
	if err != nil {
		s.events.AuthEvent("refresh", outcomeOf(err))
		return nil, err
	}

	s.events.AuthEvent("refresh", "success")
	slog.Debug("session rotated", "user_id", userID, "previous_session", claims.SessionID())
	return pair, nil
}

// Logout revokes the session behind refreshToken when it checks out. It never
// reports failure; storage errors are logged only.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	_, sessionID, userID, ok := s.decodeRefresh(refreshToken)
	if !ok {
		s.events.AuthEvent("logout", "ignored")
		return
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.sessions.WithTx(tx)
		session, err := ledger.FindByID(sessionID)
		if err != nil {
			return err
		}
		if session == nil || session.UserID != userID || session.RefreshTokenHash == nil ||
			!s.tokens.VerifyTokenHash(refreshToken, *session.RefreshTokenHash) {
			return nil
		}
		_, err = ledger.Revoke(session)
		return err
	})
	if err != nil {
		slog.Error("logout failed", "user_id", userID, "error", err)
		return
	}
	s.events.AuthEvent("logout", "success")
}

// ResolveCurrentUser authenticates an access token against its live session.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (*CurrentUser, error) {
	claims, err := s.tokens.Decode(accessToken, security.TokenTypeAccess)
	if err != nil {
		return nil, ErrInvalidAccess
	}
	userID, err := parseUserID(claims.Subject)
	if err != nil {
		return nil, ErrInvalidAccess
	}
	sessionID, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil, ErrInvalidAccess
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAccess
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	session, err := s.sessions.WithTx(db).FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != user.ID || !session.IsActive(s.now()) {
		return nil, ErrInvalidAccess
	}

	return &CurrentUser{User: &user, SessionID: sessionID}, nil
}

// EmailExists reports whether an account uses email, after normalisation.
func (s *AuthService) EmailExists(ctx context.Context, email string) (string, bool, error) {
	normalized := NormalizeEmail(email)
	taken, err := emailTaken(s.db.WithContext(ctx), normalized, 0)
	return normalized, taken, err
}

// UpdateProfile applies the non-nil fields of req to user.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, req *dto.UpdateProfileRequest) (*models.User, error) {
	updated := *user
	if req.Email != nil {
		updated.Email = NormalizeEmail(*req.Email)
		if updated.Email == "" {
			return nil, apperr.InvalidInput("Email must not be empty")
		}
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return nil, apperr.InvalidInput("Name must not be empty")
		}
	}
	if req.Password != nil {
		hash, err := s.passwords.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}
	applyProfile(&updated, &req.Profile)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if updated.Email != user.Email {
			taken, err := emailTaken(tx, updated.Email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrEmailTaken
			}
		}
		if err := tx.Save(&updated).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// issueTokens creates a session and mints the token pair bound to it.
func (s *AuthService) issueTokens(tx *gorm.DB, userID uint) (*dto.TokenResponse, error) {
	now := s.now()
	ledger := s.sessions.WithTx(tx)

	session, err := ledger.Create(userID, now.Add(s.cfg.RefreshTokenExpiry))
	if err != nil {
		return nil, err
	}

	subject := strconv.FormatUint(uint64(userID), 10)
	extra := map[string]any{security.ClaimSessionID: session.ID.String()}

	refresh, err := s.tokens.Encode(security.Claims{
		Subject:   subject,
		Type:      security.TokenTypeRefresh,
		IssuedAt:  now,
		ExpiresAt: session.ExpiresAt,
		Extra:     extra,
	})
	if err != nil {
		return nil, err
	}
	if err := ledger.AttachTokenHash(session, s.tokens.HashToken(refresh)); err != nil {
		return nil, err
	}

	access, err := s.tokens.Encode(security.Claims{
		Subject:   subject,
		Type:      security.TokenTypeAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenExpiry),
		Extra:     extra,
	})
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *AuthService) decodeRefresh(raw string) (security.Claims, uuid.UUID, uint, bool) {
	claims, err := s.tokens.Decode(raw, security.TokenTypeRefresh)
	if err != nil {
		return claims, uuid.Nil, 0, false
	}
	userID, err := parseUserID(claims.Subject)
	if err != nil {
		return claims, uuid.Nil, 0, false
	}
	sessionID, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return claims, uuid.Nil, 0, false
	}
	return claims, sessionID, userID, true
}

func (s *AuthService) sessionMatches(session *models.AuthSession, userID uint, raw string) bool {
	if session == nil || session.UserID != userID || !session.IsActive(s.now()) {
		return false
	}
	if session.RefreshTokenHash == nil {
		return false
	}
	return s.tokens.VerifyTokenHash(raw, *session.RefreshTokenHash)
}

func parseUserID(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", sub)
	}
	return uint(id), nil
}

func emailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := db.Model(&models.User{}).Where("lower(email) = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func applyProfile(u *models.User, p *dto.Profile) {
	if p.BirthDate != nil {
		d := datatypes.Date(p.BirthDate.Time)
		u.BirthDate = &d
	}
	if p.Weight != nil {
		u.Weight = p.Weight
	}
	if p.WeightMetric != nil {
		u.WeightMetric = p.WeightMetric
	}
	if p.Height != nil {
		u.Height = p.Height
	}
	if p.HeightMetric != nil {
		u.HeightMetric = p.HeightMetric
	}
	if p.Gender != nil {
		u.Gender = p.Gender
	}
	if p.ActivityLevel != nil {
		u.ActivityLevel = p.ActivityLevel
	}
	if p.WhatDoYouWantToAchieve != nil {
		u.Goal = p.WhatDoYouWantToAchieve
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return "rejected"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
