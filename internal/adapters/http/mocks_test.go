package http_test

import (
	"context"
	"sync"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// ---- Mock ports ----

type mockSource struct {
	cafes []domain.Cafe
}

func (m *mockSource) FetchOpenCafes(ctx context.Context, bounds domain.Bounds, query string) []domain.Cafe {
	return domain.FilterCafes(append([]domain.Cafe(nil), m.cafes...), query)
}

type mockStore struct {
	mu sync.Mutex

	addFn            func(ctx context.Context, form domain.CafeForm) (string, error)
	listFn           func(ctx context.Context) ([]domain.Cafe, error)
	updateFn         func(ctx context.Context, id string, patch domain.CafePatch) error
	deleteFn         func(ctx context.Context, id string) error
	reports          []domain.IssueReport
	overrides        map[string]domain.Override
	bulkAddFn        func(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error)
	deleteOverrideFn func(ctx context.Context, originalID string) error
}

func (m *mockStore) Add(ctx context.Context, form domain.CafeForm) (string, error) {
	if m.addFn != nil {
		return m.addFn(ctx, form)
	}
	return "custom-1", nil
}

func (m *mockStore) List(ctx context.Context) ([]domain.Cafe, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) Update(ctx context.Context, id string, patch domain.CafePatch) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockStore) SubmitIssueReport(ctx context.Context, r domain.IssueReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockStore) ListIssueReports(ctx context.Context) ([]domain.IssueReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.IssueReport(nil), m.reports...), nil
}

func (m *mockStore) SaveOverride(ctx context.Context, o domain.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides == nil {
		m.overrides = make(map[string]domain.Override)
	}
	m.overrides[o.OriginalID] = o
	return nil
}

func (m *mockStore) ListOverrides(ctx context.Context) (map[string]domain.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Override, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) DeleteOverride(ctx context.Context, originalID string) error {
	if m.deleteOverrideFn != nil {
		return m.deleteOverrideFn(ctx, originalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, originalID)
	return nil
}

func (m *mockStore) BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	if m.bulkAddFn != nil {
		return m.bulkAddFn(ctx, cafes)
	}
	return domain.BulkResult{Added: len(cafes), Total: len(cafes)}, nil
}

type mockGeocoder struct {
	geocodeFn func(ctx context.Context, text string, bounds domain.Bounds) (domain.GeoPoint, bool)
}

func (m *mockGeocoder) Geocode(ctx context.Context, text string, bounds domain.Bounds) (domain.GeoPoint, bool) {
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, text, bounds)
	}
	return domain.GeoPoint{}, false
}

type mockRouter struct {
	routeFn func(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error)
}

func (m *mockRouter) Route(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, from, to)
	}
	return nil, domain.ErrNoRoute
}
