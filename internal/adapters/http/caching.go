package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set it
// themselves. Anything tied to the store or the session is never shared.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}
		if cc := cacheControlFor(c.Path()); cc != "" {
			c.Set(fiber.HeaderCacheControl, cc)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "no-cache"
	case path == "/metrics":
		return "no-store"
	case strings.HasPrefix(path, "/v1/geocode"):
		return "public, max-age=86400"
	case strings.HasPrefix(path, "/v1/cafes"):
		return "public, max-age=60"
	case strings.HasPrefix(path, "/v1/route"):
		return "private, max-age=300"
	case strings.HasPrefix(path, "/v1/visits"),
		strings.HasPrefix(path, "/v1/reports"):
		return "no-store"
	case strings.HasPrefix(path, "/v1/custom-cafes"),
		strings.HasPrefix(path, "/v1/overrides"):
		return "no-cache"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	}
	return ""
}
