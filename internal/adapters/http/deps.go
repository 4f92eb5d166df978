package http

import (
	"context"
	"time"

	"github.com/samirrijal/kopimap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Cafes   *usecases.CafeService
	Custom  *usecases.CustomCafeService
	Geocode *usecases.GeocodeService
	Routes  *usecases.RouteService
	Visits  *usecases.VisitService
	Catalog *usecases.CatalogFeed

	// AdminKey guards moderator routes. Empty disables them.
	AdminKey string
	// SearchDebounce is the WebSocket type-ahead delay.
	SearchDebounce time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// Checks are probed by /v1/ready.
	Checks  []ReadinessCheck
	Version string
}

// ReadinessCheck probes one backing service. Optional checks are reported
// but never fail readiness.
type ReadinessCheck struct {
	Name     string
	Optional bool
	Probe    func(ctx context.Context) error
}
