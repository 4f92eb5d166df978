package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": version,
		})
	}
}

// ReadyHandler probes every configured backing service in parallel. The
// instance is ready when no required check fails.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			checks = make(map[string]string, len(deps.Checks)+1)
			allOK  = true
		)
		for _, chk := range deps.Checks {
			wg.Add(1)
			go func(chk ReadinessCheck) {
				defer wg.Done()
				err := chk.Probe(ctx)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					checks[chk.Name] = "ok"
				case chk.Optional:
					checks[chk.Name] = "degraded: " + err.Error()
				default:
					checks[chk.Name] = "error: " + err.Error()
					allOK = false
				}
			}(chk)
		}
		wg.Wait()

		if deps.Custom == nil || !deps.Custom.Enabled() {
			checks["store"] = "not configured"
		}

		status, code := "ready", fiber.StatusOK
		if !allOK {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
