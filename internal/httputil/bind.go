// Package httputil holds request binding and error rendering shared by the
// fiber handlers, plus the outbound HTTP helpers used by the integrations.
package httputil

import (
	"errors"
	"log/slog"
	"regexp"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/dto"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks struct tags on v and reports failures as InvalidInput.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperr.InvalidInput("Invalid request data")
		}
		return apperr.Wrap(apperr.ErrInvalidInput, "Invalid request data", err)
	}
	return nil
}

// Bind decodes the JSON body into dst and validates it.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.WithStatus(apperr.ErrInvalidInput, fiber.StatusBadRequest, "Invalid request body")
	}
	return Validate(dst)
}

// ErrorHandler renders every error returned by a handler as
// {"error": true, "message": ...}. Server errors are logged and reported to
// Sentry with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var status int
	var message string

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, message = fe.Code, fe.Message
	} else {
		status, message = apperr.HTTPStatus(err)
	}

	if status >= fiber.StatusInternalServerError {
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"status", status,
			"error", err.Error(),
		}
		if isUpstream(err) {
			slog.Warn("upstream request failed", attrs...)
		} else {
			slog.Error("unhandled server error", attrs...)
			if hub := sentryfiber.GetHubFromContext(c); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
			if !errors.Is(err, ErrMissingCredentials) {
				message = "Internal server error"
			}
		}
	}

	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// ErrMissingCredentials marks integrations called without API credentials.
// Its message names the missing settings and is shown to the client.
var ErrMissingCredentials = errors.New("missing integration credentials")

func isUpstream(err error) bool {
	return errors.Is(err, apperr.ErrUpstreamTimeout) ||
		errors.Is(err, apperr.ErrUpstreamUnavailable) ||
		errors.Is(err, apperr.ErrUpstreamBadResponse)
}
