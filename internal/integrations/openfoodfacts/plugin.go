package openfoodfacts

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
)

// Plugin implements the integrations.Integration interface for barcode
// lookups against Open Food Facts.
type Plugin struct {
	handler *ProductHandler
}

func New(cfg *config.Config, observer httputil.UpstreamObserver) *Plugin {
	return &Plugin{handler: NewProductHandler(NewProductService(cfg, observer))}
}

func (p *Plugin) ID() string { return "openfoodfacts" }

func (p *Plugin) RegisterRoutes(router fiber.Router, _ fiber.Handler) {
	off := router.Group("/api/open-food-facts")
	off.Get("/products/:barcode", p.handler.GetByBarcode)
	off.Post("/product", p.handler.GetByPayload)
}
