package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/facilitator-activity-tracker/internal/config"
	"github.com/noah-isme/facilitator-activity-tracker/internal/handler"
	"github.com/noah-isme/facilitator-activity-tracker/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Database          handler.Pinger
	Queue             handler.QueueStatsReader
	DeadLetterHandler *handler.DeadLetterHandler
}

// Register wires the ops routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Database, deps.Queue))

	if deps.DeadLetterHandler != nil {
		deps.DeadLetterHandler.Register(api.Group("/queue/dead-letters"))
	}
}
