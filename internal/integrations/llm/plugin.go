package llm

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
)

// Plugin implements the integrations.Integration interface for the
// OpenAI-compatible text and vision API.
type Plugin struct {
	handler *Handler
}

func New(cfg *config.Config, observer httputil.UpstreamObserver) *Plugin {
	return &Plugin{handler: NewHandler(NewService(cfg, observer))}
}

func (p *Plugin) ID() string { return integrationID }

// RegisterRoutes mounts the LLM routes. Every route needs a signed-in user.
func (p *Plugin) RegisterRoutes(router fiber.Router, requireUser fiber.Handler) {
	ai := router.Group("/api/openai", requireUser)
	ai.Post("/chat", p.handler.Chat)
	ai.Post("/food-photo", p.handler.FoodPhoto)
}
