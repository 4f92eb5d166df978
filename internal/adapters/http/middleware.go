package http

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// SessionCookie identifies a browser session for visit counting.
	SessionCookie = "kopimap_session"
	// AdminKeyHeader carries the moderator key.
	AdminKeyHeader = "X-Admin-Key"

	sessionLocal = "session_id"
)

// SessionMiddleware makes sure every request has a session id, issuing the
// cookie when the browser has none. The cookie lives for the browser session.
func SessionMiddleware(secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(SessionCookie)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(sessionLocal, sid)
		return c.Next()
	}
}

// SessionID returns the id set by SessionMiddleware.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionLocal).(string)
	return sid
}

// AdminKeyMiddleware admits requests carrying key in X-Admin-Key. With an
// empty key every admin route answers 403.
func AdminKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return errForbidden(c, "admin routes are disabled")
		}
		got := strings.TrimSpace(c.Get(AdminKeyHeader))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return errUnauthorized(c, "missing or invalid admin key")
		}
		return c.Next()
	}
}

// SecurityHeadersMiddleware sets the static hardening headers.
func SecurityHeadersMiddleware(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", version)
		return c.Next()
	}
}

// rateLimitReached renders limiter rejections as APIError.
func rateLimitReached(c *fiber.Ctx) error {
	return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}
