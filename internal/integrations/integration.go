// Package integrations defines the contract shared by the third-party API
// proxies.
package integrations

import (
	"github.com/gofiber/fiber/v2"
)

// Integration is a stateless proxy that never exposes its credentials to
// clients.
type Integration interface {
	// ID returns the integration identifier, also used as the metrics label.
	ID() string

	// RegisterRoutes mounts the proxy routes on the root router. requireUser
	// is the bearer session middleware for routes that need a signed-in user.
	RegisterRoutes(router fiber.Router, requireUser fiber.Handler)
}
