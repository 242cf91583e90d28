package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/facilitator-activity-tracker/internal/config"
	"github.com/noah-isme/facilitator-activity-tracker/internal/queue"
	"github.com/noah-isme/facilitator-activity-tracker/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// Pinger checks that a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueStatsReader reports notification queue depths.
type QueueStatsReader interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
	Queue       *queue.Stats      `json:"queue,omitempty"`
}

// HealthCheck returns a handler that reports application and dependency health.
// Either dependency may be nil.
func HealthCheck(cfg config.Config, db Pinger, jobs QueueStatsReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Checks:      map[string]string{},
		}

		if db != nil {
			payload.Checks["database"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				payload.Status = "degraded"
				payload.Checks["database"] = err.Error()
			}
		}

		if jobs != nil {
			payload.Checks["queue"] = "ok"
			stats, err := jobs.Stats(ctx)
			if err != nil {
				payload.Status = "degraded"
				payload.Checks["queue"] = err.Error()
			} else {
				payload.Queue = &stats
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
