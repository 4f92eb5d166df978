package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// --- Mock CafeSource ---

type mockSource struct {
	mu      sync.Mutex
	calls   int
	fetchFn func(ctx context.Context, bounds domain.Bounds, query string) []domain.Cafe
}

func (m *mockSource) FetchOpenCafes(ctx context.Context, bounds domain.Bounds, query string) []domain.Cafe {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, bounds, query)
	}
	return nil
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock CustomCafeStore ---

type mockStore struct {
	addFn            func(ctx context.Context, form domain.CafeForm) (string, error)
	listFn           func(ctx context.Context) ([]domain.Cafe, error)
	updateFn         func(ctx context.Context, id string, patch domain.CafePatch) error
	deleteFn         func(ctx context.Context, id string) error
	submitReportFn   func(ctx context.Context, r domain.IssueReport) error
	listReportsFn    func(ctx context.Context) ([]domain.IssueReport, error)
	saveOverrideFn   func(ctx context.Context, o domain.Override) error
	listOverridesFn  func(ctx context.Context) (map[string]domain.Override, error)
	deleteOverrideFn func(ctx context.Context, originalID string) error
	bulkAddFn        func(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error)
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
	if m.submitReportFn != nil {
		return m.submitReportFn(ctx, r)
	}
	return nil
}

func (m *mockStore) ListIssueReports(ctx context.Context) ([]domain.IssueReport, error) {
	if m.listReportsFn != nil {
		return m.listReportsFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) SaveOverride(ctx context.Context, o domain.Override) error {
	if m.saveOverrideFn != nil {
		return m.saveOverrideFn(ctx, o)
	}
	return nil
}

func (m *mockStore) ListOverrides(ctx context.Context) (map[string]domain.Override, error) {
	if m.listOverridesFn != nil {
		return m.listOverridesFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) DeleteOverride(ctx context.Context, originalID string) error {
	if m.deleteOverrideFn != nil {
		return m.deleteOverrideFn(ctx, originalID)
	}
	return nil
}

func (m *mockStore) BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	if m.bulkAddFn != nil {
		return m.bulkAddFn(ctx, cafes)
	}
	return domain.BulkResult{Added: len(cafes), Total: len(cafes)}, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockEvents struct {
	mu      sync.Mutex
	visits  []domain.VisitStats
	catalog []string
}

func (m *mockEvents) PublishVisitStats(ctx context.Context, stats domain.VisitStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, stats)
	return nil
}

func (m *mockEvents) PublishCatalogChanged(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = append(m.catalog, reason)
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	calls     int
	geocodeFn func(ctx context.Context, text string, bounds domain.Bounds) (domain.GeoPoint, bool)
}

func (m *mockGeocoder) Geocode(ctx context.Context, text string, bounds domain.Bounds) (domain.GeoPoint, bool) {
	m.calls++
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, text, bounds)
	}
	return domain.GeoPoint{}, false
}

// --- Mock Router ---

type mockRouter struct {
	routeFn func(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error)
}

func (m *mockRouter) Route(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error) {
	if m.routeFn != nil {
		return m.routeFn(ctx, from, to)
	}
	return nil, domain.ErrNoRoute
}

// --- Mock VisitCounterStore / SessionFlags ---

type mockCounter struct {
	incrementFn func(ctx context.Context, day string) (domain.VisitStats, error)
	snapshotFn  func(ctx context.Context, day string) (domain.VisitStats, error)
}

func (m *mockCounter) Increment(ctx context.Context, day string) (domain.VisitStats, error) {
	return m.incrementFn(ctx, day)
}

func (m *mockCounter) Snapshot(ctx context.Context, day string) (domain.VisitStats, error) {
	return m.snapshotFn(ctx, day)
}

type mockFlags struct {
	setOnceFn func(ctx context.Context, sessionID, flag string) (bool, error)
}

func (m *mockFlags) SetOnce(ctx context.Context, sessionID, flag string) (bool, error) {
	return m.setOnceFn(ctx, sessionID, flag)
}
