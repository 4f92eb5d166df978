package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

const geocodeCacheTTL = 24 * 60 * 60

// GeocodeService resolves addresses inside the configured area. Matches are
// cached for a day to stay well inside Nominatim's usage policy.
type GeocodeService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
	bounds   domain.Bounds
}

// NewGeocodeService creates a new GeocodeService. cache may be nil.
func NewGeocodeService(geocoder ports.Geocoder, cache ports.CacheService, bounds domain.Bounds) *GeocodeService {
	return &GeocodeService{geocoder: geocoder, cache: cache, bounds: bounds}
}

// Geocode returns the first match for text. A blank text is a validation
// error; no match is (zero, false, nil).
func (s *GeocodeService) Geocode(ctx context.Context, text string) (domain.GeoPoint, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.GeoPoint{}, false, fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}

	cacheKey := "geocode:" + s.bounds.ViewBox() + ":" + strings.ToLower(text)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.GeoPoint
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return p, true, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	p, ok := s.geocoder.Geocode(ctx, text, s.bounds)
	if !ok {
		return domain.GeoPoint{}, false, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, geocodeCacheTTL)
		}
	}
	return p, true, nil
}
