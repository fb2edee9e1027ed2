package edamam

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
)

// Plugin implements the integrations.Integration interface for the Edamam
// food database.
type Plugin struct {
	handler *FoodDatabaseHandler
}

func New(cfg *config.Config, observer httputil.UpstreamObserver) *Plugin {
	return &Plugin{handler: NewFoodDatabaseHandler(NewFoodDatabaseService(cfg, observer))}
}

func (p *Plugin) ID() string { return "edamam" }

// RegisterRoutes mounts the public food database routes. None of them need a
// signed-in user.
func (p *Plugin) RegisterRoutes(router fiber.Router, _ fiber.Handler) {
	food := router.Group("/api/food-database")
	food.Get("/v2/parser", p.handler.Parser)
	food.Post("/v2/nutrients", p.handler.Nutrients)
	food.Post("/nutrients-from-image", p.handler.NutrientsFromImage)
	food.Post("/v2/nutrients-from-image", p.handler.NutrientsFromImage)
	food.Get("/auto-complete", p.handler.AutoComplete)

	// Older clients post to the root path.
	router.Post("/nutrients-from-image", p.handler.NutrientsFromImage)
}
