package nominatim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

// Options configures the client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	RateLimit  float64 // requests per second; Nominatim's policy allows 1
	HTTPClient *http.Client
}

// Client implements ports.Geocoder using a Nominatim search endpoint.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	http      *http.Client
}

// New creates a geocoding client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		http:      opts.HTTPClient,
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves text to the first match inside bounds. Errors are logged
// and reported as no match.
func (c *Client) Geocode(ctx context.Context, text string, bounds domain.Bounds) (domain.GeoPoint, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.GeoPoint{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	p, err := c.search(ctx, text, bounds)
	metrics.ObserveUpstream("nominatim", start, err)
	if err != nil {
		slog.WarnContext(ctx, "geocoding failed", "query", text, "error", err)
		return domain.GeoPoint{}, false
	}
	if p == nil {
		return domain.GeoPoint{}, false
	}
	return *p, true
}

func (c *Client) search(ctx context.Context, text string, bounds domain.Bounds) (*domain.GeoPoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", text)
	q.Set("viewbox", bounds.ViewBox())
	q.Set("bounded", "1")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	return &domain.GeoPoint{Lat: lat, Lon: lon}, nil
}
