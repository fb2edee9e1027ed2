package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/handlers"
	"github.com/torvix/backend/internal/integrations"
	"github.com/torvix/backend/internal/metrics"
)

func Setup(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	statsHandler *handlers.StatsHandler,
	healthHandler *handlers.HealthHandler,
	requireUser fiber.Handler,
	proxies []integrations.Integration,
) {
	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", metrics.Handler())

	// Auth: session lifecycle is public, profile needs a bearer token
	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/email_exists", authHandler.EmailExists)
	auth.Get("/me", requireUser, authHandler.Me)
	auth.Patch("/me", requireUser, authHandler.UpdateMe)

	// Statistics ledger, always scoped to the current user
	stats := app.Group("/stats", requireUser)
	stats.Get("/", statsHandler.List)
	stats.Post("/meals", statsHandler.CreateMeal)
	stats.Get("/days/:day/meals", statsHandler.GetDay)
	stats.Delete("/days/:day", statsHandler.DeleteDay)
	stats.Delete("/days/:day/meals/:mealId", statsHandler.DeleteMeal)
	stats.Get("/dish-names", statsHandler.DishNames)
	stats.Get("/dishes", statsHandler.MealsByDish)

	// Third-party proxies
	for _, p := range proxies {
		p.RegisterRoutes(app, requireUser)
		slog.Info("integration routes registered", "integration", p.ID())
	}
}
