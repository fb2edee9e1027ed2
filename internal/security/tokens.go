package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/torvix/backend/internal/apperr"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	ClaimSessionID = "sid"
)

var ErrInvalidToken = errors.New("invalid token")

var reservedClaims = map[string]struct{}{
	"sub":  {},
	"iat":  {},
	"exp":  {},
	"type": {},
}

// Claims is the decoded form of a signed token.
type Claims struct {
	Subject   string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// SessionID returns the sid claim, or "" when absent.
func (c Claims) SessionID() string {
	sid, _ := c.Extra[ClaimSessionID].(string)
	return sid
}

// TokenCodec signs and validates HMAC bearer tokens and fingerprints raw
// tokens for storage.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenCodec{secret: []byte(secret), method: method, now: time.Now}, nil
}

// WithClock replaces the clock used for expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

func (c *TokenCodec) Algorithm() string { return c.method.Alg() }

func (c *TokenCodec) Secret() []byte { return c.secret }

func (c *TokenCodec) Encode(claims Claims) (string, error) {
	mc := jwt.MapClaims{}
	for k, v := range claims.Extra {
		if _, reserved := reservedClaims[k]; reserved {
			return "", apperr.InvalidInput(fmt.Sprintf("claim %q is reserved", k))
		}
		mc[k] = v
	}
	mc["sub"] = claims.Subject
	mc["type"] = claims.Type
	mc["iat"] = claims.IssuedAt.Unix()
	mc["exp"] = claims.ExpiresAt.Unix()

	token := jwt.NewWithClaims(c.method, mc)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode validates signature, expiry, type and subject. Every failure is
// reported as ErrInvalidToken.
func (c *TokenCodec) Decode(raw, expectedType string) (Claims, error) {
	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tokenType, _ := mc["type"].(string)
	if tokenType != expectedType {
		return Claims{}, fmt.Errorf("%w: unexpected type %q", ErrInvalidToken, tokenType)
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := Claims{Subject: sub, Type: tokenType, Extra: map[string]any{}}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	for k, v := range mc {
		if _, reserved := reservedClaims[k]; !reserved {
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

// HashToken returns the hex HMAC-SHA256 fingerprint of a raw token.
func (c *TokenCodec) HashToken(raw string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *TokenCodec) VerifyTokenHash(raw, stored string) bool {
	if raw == "" || stored == "" {
		return false
	}
	return hmac.Equal([]byte(c.HashToken(raw)), []byte(stored))
}
