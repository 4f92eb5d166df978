// Package sheets implements the custom cafe store on top of the spreadsheet
// web-app API: one endpoint, POST for writes, GET for lists, every call
// authenticated by the shared key.
package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

const (
	actionAdd            = "add"
	actionUpdate         = "update"
	actionDelete         = "delete"
	actionReport         = "report"
	actionOverride       = "override"
	actionDeleteOverride = "deleteOverride"
	actionBulkAdd        = "bulkAdd"
)

// Client talks to the spreadsheet API.
type Client struct {
	url     string
	key     string
	timeout time.Duration
	http    *http.Client
}

// New creates a client. A zero timeout means 15s.
func New(endpoint, key string, timeout time.Duration, hc *http.Client) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{url: endpoint, key: key, timeout: timeout, http: hc}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      any             `json:"id,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Add stores a new cafe and returns the id the sheet assigned.
func (c *Client) Add(ctx context.Context, form domain.CafeForm) (string, error) {
	env, err := c.post(ctx, actionAdd, form)
	if err != nil {
		return "", err
	}
	id := anyString(env.ID)
	if id == "" {
		return "", fmt.Errorf("sheets add: response carried no id")
	}
	return id, nil
}

// List returns every custom cafe. Rows that cannot be parsed are skipped.
func (c *Client) List(ctx context.Context) ([]domain.Cafe, error) {
	rows, err := c.get(ctx, "")
	if err != nil {
		return nil, err
	}
	cafes := make([]domain.Cafe, 0, len(rows))
	for i, row := range rows {
		cafe, err := parseCafeRow(row)
		if err != nil {
			slog.WarnContext(ctx, "skipping custom cafe row", "row", i, "error", err)
			continue
		}
		cafes = append(cafes, cafe)
	}
	return cafes, nil
}

// Update sends only the fields set in patch.
func (c *Client) Update(ctx context.Context, id string, patch domain.CafePatch) error {
	payload, err := spread(patch)
	if err != nil {
		return err
	}
	payload["id"] = id
	_, err = c.post(ctx, actionUpdate, payload)
	return err
}

// Delete removes a custom cafe.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.post(ctx, actionDelete, map[string]any{"id": id})
	return err
}

// SubmitIssueReport appends a report row.
func (c *Client) SubmitIssueReport(ctx context.Context, report domain.IssueReport) error {
	_, err := c.post(ctx, actionReport, report)
	return err
}

// ListIssueReports returns the submitted reports.
func (c *Client) ListIssueReports(ctx context.Context) ([]domain.IssueReport, error) {
	rows, err := c.get(ctx, "reports")
	if err != nil {
		return nil, err
	}
	reports := make([]domain.IssueReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, parseReportRow(row))
	}
	return reports, nil
}

// SaveOverride creates or replaces the override for override.OriginalID.
func (c *Client) SaveOverride(ctx context.Context, o domain.Override) error {
	_, err := c.post(ctx, actionOverride, map[string]any{
		"original_id":   o.OriginalID,
		"original_name": o.OriginalName,
		"overrides":     o.CafePatch,
		"hidden":        o.Hidden,
	})
	return err
}

// ListOverrides returns the overrides keyed by original id. When the sheet
// holds more than one row for an id the last row wins.
func (c *Client) ListOverrides(ctx context.Context) (map[string]domain.Override, error) {
	rows, err := c.get(ctx, "overrides")
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Override, len(rows))
	for i, row := range rows {
		o, err := parseOverrideRow(row)
		if err != nil {
			slog.WarnContext(ctx, "skipping override row", "row", i, "error", err)
			continue
		}
		out[o.OriginalID] = o
	}
	return out, nil
}

// DeleteOverride removes the override for originalID.
func (c *Client) DeleteOverride(ctx context.Context, originalID string) error {
	_, err := c.post(ctx, actionDeleteOverride, map[string]any{"original_id": originalID})
	return err
}

// BulkAdd submits many cafes at once. The sheet skips rows whose source_ref
// it already holds.
func (c *Client) BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	forms := make([]domain.CafeForm, len(cafes))
	for i, cafe := range cafes {
		forms[i] = domain.FormFromCafe(cafe)
	}
	env, err := c.post(ctx, actionBulkAdd, map[string]any{"cafes": forms})
	if err != nil {
		return domain.BulkResult{}, err
	}
	var res domain.BulkResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return domain.BulkResult{}, fmt.Errorf("sheets bulkAdd: decode result: %w", err)
		}
	}
	if res.Total == 0 {
		res.Total = len(cafes)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, action string, payload any) (*envelope, error) {
	body, err := spread(payload)
	if err != nil {
		return nil, fmt.Errorf("sheets %s: %w", action, err)
	}
	body["key"] = c.key
	body["action"] = action

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sheets %s: encode: %w", action, err)
	}

	env, err := c.do(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("sheets %s: %w", action, err)
	}
	return env, nil
}

func (c *Client) get(ctx context.Context, typ string) ([]map[string]any, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("sheets: bad url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.key)
	if typ != "" {
		q.Set("type", typ)
	}
	u.RawQuery = q.Encode()

	env, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("sheets list %q: %w", typ, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("sheets list %q: decode rows: %w", typ, err)
	}
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	env, err := c.roundTrip(ctx, method, target, body)
	metrics.ObserveUpstream("sheets", start, err)
	return env, err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body io.Reader) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = "request rejected"
		}
		return nil, errors.New(msg)
	}
	return &env, nil
}

// spread turns a payload into a JSON object so the key and action can sit
// beside its fields.
func spread(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m)+2)
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return out, nil
}
