package overpass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
	"github.com/samirrijal/kopimap/internal/pkg/telemetry"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 32 << 20
)

// Options configures the client.
type Options struct {
	Endpoints  []string
	Timeout    time.Duration // per endpoint attempt
	HTTPClient *http.Client
	// BreakerTimeout is how long an open breaker stays open.
	BreakerTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens a breaker.
	BreakerFailures uint32
}

// Client implements ports.CafeSource against a chain of interchangeable
// Overpass API endpoints.
type Client struct {
	endpoints []*endpoint
	http      *http.Client
	timeout   time.Duration
	tracer    trace.Tracer
}

type endpoint struct {
	url string
	cb  *gobreaker.CircuitBreaker[[]domain.Cafe]
}

// New builds a client trying opts.Endpoints in order.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = time.Minute
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}

	c := &Client{
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		tracer:  telemetry.Tracer("overpass"),
	}
	for _, u := range opts.Endpoints {
		c.endpoints = append(c.endpoints, &endpoint{url: u, cb: newBreaker(u, opts)})
	}
	return c
}

func newBreaker(name string, opts Options) *gobreaker.CircuitBreaker[[]domain.Cafe] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	failures := opts.BreakerFailures

	return gobreaker.NewCircuitBreaker[[]domain.Cafe](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller giving up is not the endpoint's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("overpass circuit breaker state change",
				"endpoint", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// FetchOpenCafes queries each endpoint in order and returns the first
// successful result. When every endpoint fails the built-in fallback list is
// returned instead. query, if not blank, filters by name, address or cuisine.
func (c *Client) FetchOpenCafes(ctx context.Context, bounds domain.Bounds, query string) []domain.Cafe {
	ctx, span := c.tracer.Start(ctx, "overpass.FetchOpenCafes")
	defer span.End()
	span.SetAttributes(telemetry.AttrQuery.String(query))

	cafes, err := c.fetch(ctx, bounds)
	if err != nil {
		slog.WarnContext(ctx, "all overpass endpoints failed, serving fallback list", "error", err)
		metrics.FallbackServed.Inc()
		span.SetAttributes(telemetry.AttrFallback.Bool(true))
		span.SetStatus(codes.Error, err.Error())
		cafes = FallbackCafes()
	}

	cafes = domain.FilterCafes(cafes, query)
	span.SetAttributes(telemetry.AttrCafeCount.Int(len(cafes)))
	return cafes
}

// fetch walks the endpoint chain. The error joins every attempt's failure.
func (c *Client) fetch(ctx context.Context, bounds domain.Bounds) ([]domain.Cafe, error) {
	if len(c.endpoints) == 0 {
		return nil, errors.New("no overpass endpoints configured")
	}
	ql := BuildQuery(bounds, c.timeout)

	var errs []error
	for i, ep := range c.endpoints {
		cafes, err := c.attempt(ctx, ep, ql, i)
		if err == nil {
			return cafes, nil
		}
		slog.WarnContext(ctx, "overpass endpoint failed", "endpoint", ep.url, "attempt", i+1, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", ep.url, err))
	}
	return nil, errors.Join(errs...)
}

func (c *Client) attempt(ctx context.Context, ep *endpoint, ql string, n int) ([]domain.Cafe, error) {
	ctx, span := c.tracer.Start(ctx, "overpass.attempt")
	defer span.End()
	span.SetAttributes(telemetry.AttrEndpoint.String(ep.url), telemetry.AttrAttempt.Int(n+1))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	// An undecodable body counts against the endpoint's breaker.
	cafes, err := ep.cb.Execute(func() ([]domain.Cafe, error) {
		body, err := c.post(ctx, ep.url, ql)
		if err != nil {
			return nil, err
		}
		return parseResponse(body)
	})
	metrics.ObserveUpstream("overpass", start, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return cafes, nil
}

func (c *Client) post(ctx context.Context, endpointURL, ql string) ([]byte, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// BuildQuery renders the Overpass QL for cafes inside bounds.
func BuildQuery(bounds domain.Bounds, timeout time.Duration) string {
	bbox := bounds.OverpassBBox()
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 15
	}
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node["amenity"="cafe"](%s);
  way["amenity"="cafe"](%s);
);
out center tags;`, secs, bbox, bbox)
}
