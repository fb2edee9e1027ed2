package middleware

import (
	"context"
	"errors"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/services"
)

const (
	tokenLocal       = "jwt"
	currentUserLocal = "current_user"
)

// SessionResolver turns a verified access token into the current user.
type SessionResolver interface {
	ResolveCurrentUser(ctx context.Context, accessToken string) (*services.CurrentUser, error)
}

// JWTProtected checks the bearer token signature and expiry, then resolves
// the session behind it. Revoked or rotated sessions are rejected even while
// the access token itself is still inside its lifetime.
func JWTProtected(cfg *config.Config, resolver SessionResolver) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: cfg.JWTAlgorithm, Key: []byte(cfg.JWTSecret)},
		ContextKey: tokenLocal,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenLocal).(*jwt.Token)
			if !ok || token == nil {
				return services.ErrInvalidAccess
			}
			current, err := resolver.ResolveCurrentUser(c.UserContext(), token.Raw)
			if err != nil {
				return err
			}
			c.Locals(currentUserLocal, current)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) && c.Get(fiber.HeaderAuthorization) == "" {
				return apperr.Unauthorized("Not authenticated")
			}
			return services.ErrInvalidAccess
		},
	})
}

// CurrentUser returns the user resolved by JWTProtected. It panics on a route
// mounted without the middleware.
func CurrentUser(c *fiber.Ctx) *services.CurrentUser {
	return c.Locals(currentUserLocal).(*services.CurrentUser)
}
