package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
)

// RouteService handles route planning.
type RouteService struct {
	router ports.Router
}

// NewRouteService creates a new RouteService.
func NewRouteService(router ports.Router) *RouteService {
	return &RouteService{router: router}
}

// Plan returns the driving route between two points. Upstream failures
// come back as domain.ErrNoRoute.
func (s *RouteService) Plan(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error) {
	if err := validatePoint("from", from); err != nil {
		return nil, err
	}
	if err := validatePoint("to", to); err != nil {
		return nil, err
	}
	return s.router.Route(ctx, from, to)
}

func validatePoint(name string, p domain.GeoPoint) error {
	if p.IsZero() {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: %s is out of range", domain.ErrValidation, name)
	}
	return nil
}

// RouteTracker holds the route currently shown to one client. A new
// request clears the previous route before it starts, a failed request
// leaves nothing behind, and a request overtaken by a newer one or by
// Cancel is discarded.
type RouteTracker struct {
	svc *RouteService

	mu      sync.Mutex
	seq     uint64
	current *domain.Route
}

// NewRouteTracker creates an empty tracker.
func NewRouteTracker(svc *RouteService) *RouteTracker {
	return &RouteTracker{svc: svc}
}

// Request plans a new route and makes it current if no newer request or
// cancel arrived meanwhile.
func (t *RouteTracker) Request(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error) {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.current = nil
	t.mu.Unlock()

	route, err := t.svc.Plan(ctx, from, to)

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.seq {
		return nil, context.Canceled
	}
	if err != nil {
		return nil, err
	}
	t.current = route
	return route, nil
}

// Current returns the route on display, or nil.
func (t *RouteTracker) Current() *domain.Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Cancel discards the current route and any request in flight.
func (t *RouteTracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.current = nil
}
