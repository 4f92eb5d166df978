package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/pkg/geospatial"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
	"github.com/samirrijal/kopimap/internal/pkg/telemetry"
)

// CafeQuery narrows the visible list. Zero values mean no filter.
type CafeQuery struct {
	Text     string
	Near     *domain.GeoPoint
	RadiusKm float64 // only used with Near
}

// CafeService builds the visible cafe list from the open feed, the custom
// store and the overrides.
type CafeService struct {
	source   ports.CafeSource
	custom   *CustomCafeService
	cache    ports.CacheService
	events   ports.EventPublisher
	bounds   domain.Bounds
	cacheTTL time.Duration
	tracer   trace.Tracer
}

// NewCafeService creates a new CafeService. cache and events may be nil.
func NewCafeService(source ports.CafeSource, custom *CustomCafeService, cache ports.CacheService,
	events ports.EventPublisher, bounds domain.Bounds, cacheTTL time.Duration) *CafeService {
	return &CafeService{
		source:   source,
		custom:   custom,
		cache:    cache,
		events:   events,
		bounds:   bounds,
		cacheTTL: cacheTTL,
		tracer:   telemetry.Tracer("usecases"),
	}
}

// List returns the visible cafes matching q. With q.Near set every cafe
// gets a distance and the list is sorted nearest first.
func (s *CafeService) List(ctx context.Context, q CafeQuery) ([]domain.Cafe, error) {
	ctx, span := s.tracer.Start(ctx, "CafeService.List")
	defer span.End()

	var (
		open      []domain.Cafe
		custom    []domain.Cafe
		overrides map[string]domain.Override
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		open = s.openCafes(gctx)
		return nil
	})
	g.Go(func() error {
		custom = s.custom.List(gctx)
		return nil
	})
	g.Go(func() error {
		overrides = s.custom.ListOverrides(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cafes := BuildVisibleCafeList(s.inBounds(open), s.inBounds(custom), overrides)
	metrics.CafesVisible.Set(float64(len(cafes)))
	span.SetAttributes(
		telemetry.AttrOverrides.Int(len(overrides)),
		telemetry.AttrCafeCount.Int(len(cafes)),
	)

	cafes = domain.FilterCafes(cafes, q.Text)
	if q.Near != nil {
		cafes = withDistance(cafes, *q.Near, q.RadiusKm)
	}
	return cafes, nil
}

// GetByID returns one visible cafe.
func (s *CafeService) GetByID(ctx context.Context, id string) (*domain.Cafe, error) {
	cafes, err := s.List(ctx, CafeQuery{})
	if err != nil {
		return nil, err
	}
	for i := range cafes {
		if cafes[i].ID == id {
			return &cafes[i], nil
		}
	}
	return nil, fmt.Errorf("cafe %s: %w", id, domain.ErrNotFound)
}

// Refresh drops the cached open cafes, pulls everything again and tells
// other instances the catalog changed.
func (s *CafeService) Refresh(ctx context.Context) ([]domain.Cafe, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cacheKey()); err != nil {
			slog.WarnContext(ctx, "drop cafe cache failed", "error", err)
		}
	}
	cafes, err := s.List(ctx, CafeQuery{})
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		if err := s.events.PublishCatalogChanged(ctx, "refresh"); err != nil {
			slog.WarnContext(ctx, "publish catalog change failed", "error", err)
		}
	}
	return cafes, nil
}

func (s *CafeService) cacheKey() string {
	return "cafes:open:" + s.bounds.OverpassBBox()
}

// openCafes reads through the cache. The built-in fallback list is never
// cached so a recovered upstream shows up on the next request.
func (s *CafeService) openCafes(ctx context.Context) []domain.Cafe {
	key := s.cacheKey()
	span := trace.SpanFromContext(ctx)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cafes []domain.Cafe
			if err := json.Unmarshal(data, &cafes); err == nil {
				metrics.CacheHits.WithLabelValues("open_cafes").Inc()
				span.SetAttributes(telemetry.AttrCacheState.String("hit"))
				return cafes
			}
		}
		metrics.CacheMisses.WithLabelValues("open_cafes").Inc()
		span.SetAttributes(telemetry.AttrCacheState.String("miss"))
	}

	cafes := s.source.FetchOpenCafes(ctx, s.bounds, "")

	if s.cache != nil && s.cacheTTL > 0 && !isFallbackList(cafes) {
		if data, err := json.Marshal(cafes); err == nil {
			_ = s.cache.Set(ctx, key, data, int(s.cacheTTL.Seconds()))
		}
	}
	return cafes
}

func (s *CafeService) inBounds(cafes []domain.Cafe) []domain.Cafe {
	out := make([]domain.Cafe, 0, len(cafes))
	for _, c := range cafes {
		if s.bounds.Contains(c.Location) {
			out = append(out, c)
		}
	}
	return out
}

func isFallbackList(cafes []domain.Cafe) bool {
	return len(cafes) > 0 && cafes[0].IsFallback()
}

// withDistance sets DistanceKm, drops cafes beyond radiusKm (when positive)
// and sorts nearest first.
func withDistance(cafes []domain.Cafe, from domain.GeoPoint, radiusKm float64) []domain.Cafe {
	var box *domain.Bounds
	if radiusKm > 0 {
		b := geospatial.BoundingBox(from.Lat, from.Lon, radiusKm*1000)
		box = &b
	}

	out := make([]domain.Cafe, 0, len(cafes))
	for _, c := range cafes {
		if box != nil && !box.Contains(c.Location) {
			continue
		}
		d := geospatial.DistanceKm(from, c.Location)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		c.DistanceKm = &d
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKm < *out[j].DistanceKm
	})
	return out
}
