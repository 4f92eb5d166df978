package ports

import (
	"context"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// CafeSource fetches cafes from the open geodata feed.
type CafeSource interface {
	// FetchOpenCafes never fails: when every upstream is down it returns the
	// built-in fallback list.
	FetchOpenCafes(ctx context.Context, bounds domain.Bounds, query string) []domain.Cafe
}

// Geocoder resolves free-text addresses. ok is false when nothing matched or
// the upstream failed.
type Geocoder interface {
	Geocode(ctx context.Context, text string, bounds domain.Bounds) (point domain.GeoPoint, ok bool)
}

// Router computes a driving route. Any failure is reported as domain.ErrNoRoute.
type Router interface {
	Route(ctx context.Context, origin, destination domain.GeoPoint) (*domain.Route, error)
}

// CustomCafeStore persists user-submitted cafes, issue reports and overrides.
// Implementations return errors from every method; fail-soft reads are the
// caller's policy.
type CustomCafeStore interface {
	Add(ctx context.Context, form domain.CafeForm) (string, error)
	List(ctx context.Context) ([]domain.Cafe, error)
	Update(ctx context.Context, id string, patch domain.CafePatch) error
	Delete(ctx context.Context, id string) error
	SubmitIssueReport(ctx context.Context, report domain.IssueReport) error
	ListIssueReports(ctx context.Context) ([]domain.IssueReport, error)
	SaveOverride(ctx context.Context, override domain.Override) error
	ListOverrides(ctx context.Context) (map[string]domain.Override, error)
	DeleteOverride(ctx context.Context, originalID string) error
	BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error)
}
