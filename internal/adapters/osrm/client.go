package osrm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

// Client implements ports.Router against an OSRM HTTP server.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// New creates a routing client. A zero timeout means 15s.
func New(baseURL string, timeout time.Duration, hc *http.Client) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, http: hc}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// Route returns the driving route from origin to destination. Every failure
// is reported as domain.ErrNoRoute wrapping the cause.
func (c *Client) Route(ctx context.Context, origin, destination domain.GeoPoint) (*domain.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	route, err := c.fetch(ctx, origin, destination)
	metrics.ObserveUpstream("osrm", start, err)
	if err != nil {
		slog.WarnContext(ctx, "routing failed", "from", origin, "to", destination, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrNoRoute, err)
	}
	return route, nil
}

func (c *Client) fetch(ctx context.Context, origin, destination domain.GeoPoint) (*domain.Route, error) {
	u := fmt.Sprintf("%s/route/v1/driving/%g,%g;%g,%g?overview=full&geometries=geojson",
		c.baseURL, origin.Lon, origin.Lat, destination.Lon, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rr.Code != "Ok" {
		return nil, fmt.Errorf("osrm code %q", rr.Code)
	}
	if len(rr.Routes) == 0 {
		return nil, fmt.Errorf("no routes in response")
	}

	r := rr.Routes[0]
	path := make([]domain.GeoPoint, 0, len(r.Geometry.Coordinates))
	for _, pair := range r.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		path = append(path, domain.GeoPoint{Lat: pair[1], Lon: pair[0]})
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("route has no geometry")
	}

	return &domain.Route{
		Path:        domain.GeoLineString{Coordinates: path},
		DistanceKm:  r.Distance / 1000,
		DurationMin: r.Duration / 60,
	}, nil
}
