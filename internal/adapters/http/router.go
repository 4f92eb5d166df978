package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

const requestTimeout = 20 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(requestid.New())
	app.Use(RequestLoggerMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
		LimitReached: rateLimitReached,
	}))

	app.Use(SecurityHeadersMiddleware(version))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// WebSocket sits before compression and ETags, which would buffer the upgrade.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(etag.New(etag.Config{Weak: true}))
	app.Use(CachingMiddleware())

	admin := AdminKeyMiddleware(deps.AdminKey)
	session := SessionMiddleware(deps.SecureCookies)
	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1 := app.Group("/v1")

	// Map data
	v1.Get("/cafes", withTimeout(ListCafesHandler(deps)))
	v1.Post("/cafes/refresh", admin, withTimeout(RefreshCafesHandler(deps)))
	v1.Get("/cafes/:id", withTimeout(GetCafeHandler(deps)))
	v1.Get("/geocode", withTimeout(GeocodeHandler(deps)))
	v1.Get("/route", withTimeout(RouteHandler(deps)))

	// Custom store
	v1.Get("/custom-cafes", withTimeout(ListCustomCafesHandler(deps)))
	v1.Post("/custom-cafes", withTimeout(AddCustomCafeHandler(deps)))
	v1.Post("/custom-cafes/bulk", admin, withTimeout(BulkAddHandler(deps)))
	v1.Patch("/custom-cafes/:id", admin, withTimeout(UpdateCustomCafeHandler(deps)))
	v1.Delete("/custom-cafes/:id", admin, withTimeout(DeleteCustomCafeHandler(deps)))
	v1.Post("/reports", withTimeout(SubmitReportHandler(deps)))
	v1.Get("/reports", admin, withTimeout(ListReportsHandler(deps)))
	v1.Get("/overrides", withTimeout(ListOverridesHandler(deps)))
	v1.Put("/overrides/:id", admin, withTimeout(SaveOverrideHandler(deps)))
	v1.Delete("/overrides/:id", admin, withTimeout(DeleteOverrideHandler(deps)))

	// Visits
	v1.Post("/visits", session, withTimeout(RecordVisitHandler(deps)))
	v1.Get("/visits", withTimeout(GetVisitsHandler(deps)))

	// GraphQL
	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app)
}
