package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/kopimap/internal/adapters/http"
	"github.com/samirrijal/kopimap/internal/adapters/memory"
	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/core/usecases"
)

const adminKey = "s3cret"

var surabaya = domain.SurabayaBounds

func openCafes() []domain.Cafe {
	return []domain.Cafe{
		{ID: "osm-node-1", Name: "Kopi Tuku Darmo", Location: domain.GeoPoint{Lat: -7.290, Lon: 112.738}, Source: domain.SourceOSM},
		{ID: "osm-node-2", Name: "Starbucks Galaxy", Location: domain.GeoPoint{Lat: -7.275, Lon: 112.781}, Source: domain.SourceOSM},
		{ID: "osm-node-3", Name: "Titik Temu", Location: domain.GeoPoint{Lat: -7.262, Lon: 112.739}, Source: domain.SourceOSM},
	}
}

// ---- Test helpers ----

type fixture struct {
	source   *mockSource
	store    *mockStore
	geocoder *mockGeocoder
	router   *mockRouter
	// noStore builds the deps with the custom store disabled.
	noStore bool
}

func (f *fixture) deps() *handler.Dependencies {
	if f.source == nil {
		f.source = &mockSource{cafes: openCafes()}
	}
	if f.store == nil {
		f.store = &mockStore{}
	}
	if f.geocoder == nil {
		f.geocoder = &mockGeocoder{}
	}
	if f.router == nil {
		f.router = &mockRouter{}
	}

	var store ports.CustomCafeStore = f.store
	if f.noStore {
		store = nil
	}
	custom := usecases.NewCustomCafeService(store, nil)
	return &handler.Dependencies{
		Cafes:   usecases.NewCafeService(f.source, custom, nil, nil, surabaya, time.Minute),
		Custom:  custom,
		Geocode: usecases.NewGeocodeService(f.geocoder, nil, surabaya),
		Routes:  usecases.NewRouteService(f.router),
		Visits: usecases.NewVisitService(usecases.VisitServiceOptions{
			Fallback:      memory.NewVisitCounter(),
			FallbackFlags: memory.NewSessionFlags(time.Hour),
		}),
		Catalog:  usecases.NewCatalogFeed(),
		AdminKey: adminKey,
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          handler.ErrorHandler,
	})
	handler.SetupRoutes(app, deps)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string, headers ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	var apiErr handler.APIError
	decode(t, resp, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
}

type cafePage struct {
	Data       []domain.Cafe      `json:"data"`
	Pagination handler.Pagination `json:"pagination"`
}

// ---- Cafes ----

func TestListCafes_MergesStoreAndOverrides(t *testing.T) {
	f := &fixture{store: &mockStore{
		listFn: func(ctx context.Context) ([]domain.Cafe, error) {
			return []domain.Cafe{{ID: "custom-1", Name: "Warkop Baru", Location: domain.GeoPoint{Lat: -7.25, Lon: 112.75}, Source: domain.SourceCustom}}, nil
		},
		overrides: map[string]domain.Override{"osm-node-2": {OriginalID: "osm-node-2", Hidden: true}},
	}}
	app := setupApp(f.deps())

	resp := do(t, app, "GET", "/v1/cafes", "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var page cafePage
	decode(t, resp, &page)
	if page.Pagination.Total != 3 {
		t.Fatalf("expected 3 visible cafes, got %d", page.Pagination.Total)
	}
	for _, c := range page.Data {
		if c.ID == "osm-node-2" {
			t.Error("hidden cafe must not be listed")
		}
	}
	if last := page.Data[len(page.Data)-1]; last.ID != "custom-1" || last.Source != domain.SourceCustom {
		t.Errorf("custom cafes come after open ones, got %+v", last)
	}
}

func TestListCafes_PaginationKeepsFilters(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	resp := do(t, app, "GET", "/v1/cafes?q=t&offset=0&limit=1", "")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "q=t") {
		t.Errorf("Link header should carry q and a next page, got %q", link)
	}

	var page cafePage
	decode(t, resp, &page)
	if len(page.Data) != 1 || page.Pagination.Limit != 1 {
		t.Errorf("expected a page of 1, got %d (limit %d)", len(page.Data), page.Pagination.Limit)
	}
}

func TestListCafes_NearSortsAndFilters(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	// From Tunjungan: Titik Temu ~0.1 km, Darmo ~3 km, Galaxy ~5 km.
	resp := do(t, app, "GET", "/v1/cafes?lat=-7.2625&lon=112.7395&radius_km=4", "")
	var page cafePage
	decode(t, resp, &page)
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 cafes within 4 km, got %d", len(page.Data))
	}
	if page.Data[0].ID != "osm-node-3" || page.Data[0].DistanceKm == nil {
		t.Errorf("nearest cafe first with a distance, got %+v", page.Data[0])
	}
}

func TestListCafes_BadParams(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	for _, target := range []string{
		"/v1/cafes?lat=-7.26",
		"/v1/cafes?radius_km=3",
		"/v1/cafes?lat=abc&lon=112.7",
		"/v1/cafes?lat=-7.26&lon=112.7&radius_km=500",
		"/v1/cafes?q=" + strings.Repeat("k", 201),
	} {
		resp := do(t, app, "GET", target, "")
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestGetCafe(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	resp := do(t, app, "GET", "/v1/cafes/osm-node-1", "")
	var cafe domain.Cafe
	decode(t, resp, &cafe)
	if cafe.Name != "Kopi Tuku Darmo" {
		t.Errorf("unexpected cafe %+v", cafe)
	}

	expectError(t, do(t, app, "GET", "/v1/cafes/osm-node-404", ""), 404, "not_found")
}

func TestRefreshCafes(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	expectError(t, do(t, app, "POST", "/v1/cafes/refresh", ""), 401, "unauthorized")

	resp := do(t, app, "POST", "/v1/cafes/refresh", "", handler.AdminKeyHeader, adminKey)
	var body struct {
		Count int `json:"count"`
	}
	decode(t, resp, &body)
	if body.Count != 3 {
		t.Errorf("expected count 3, got %d", body.Count)
	}
}

// ---- Navigation ----

func TestGeocode(t *testing.T) {
	f := &fixture{geocoder: &mockGeocoder{geocodeFn: func(ctx context.Context, text string, b domain.Bounds) (domain.GeoPoint, bool) {
		if text == "Jl. Darmo" {
			return domain.GeoPoint{Lat: -7.29, Lon: 112.74}, true
		}
		return domain.GeoPoint{}, false
	}}}
	app := setupApp(f.deps())

	var p domain.GeoPoint
	decode(t, do(t, app, "GET", "/v1/geocode?q=Jl.%20Darmo", ""), &p)
	if p.Lat != -7.29 {
		t.Errorf("unexpected point %+v", p)
	}
	expectError(t, do(t, app, "GET", "/v1/geocode?q=Atlantis", ""), 404, "not_found")
	expectError(t, do(t, app, "GET", "/v1/geocode", ""), 400, "bad_request")
}

func TestRoute(t *testing.T) {
	f := &fixture{router: &mockRouter{routeFn: func(ctx context.Context, from, to domain.GeoPoint) (*domain.Route, error) {
		if to.Lat == 0.5 {
			return nil, domain.ErrNoRoute
		}
		return &domain.Route{
			Path:        domain.GeoLineString{Coordinates: []domain.GeoPoint{from, to}},
			DistanceKm:  5.2,
			DurationMin: 15,
		}, nil
	}}}
	app := setupApp(f.deps())

	var route domain.Route
	decode(t, do(t, app, "GET", "/v1/route?from=-7.30,112.75&to=-7.26,112.74", ""), &route)
	if route.DistanceKm != 5.2 || len(route.Path.Coordinates) != 2 {
		t.Errorf("unexpected route %+v", route)
	}

	expectError(t, do(t, app, "GET", "/v1/route?from=-7.30&to=-7.26,112.74", ""), 400, "bad_request")
	expectError(t, do(t, app, "GET", "/v1/route?from=-7.30,112.75&to=0.5,112.74", ""), 404, "no_route")
}

// ---- Custom store ----

func TestAddCustomCafe(t *testing.T) {
	called := false
	f := &fixture{store: &mockStore{addFn: func(ctx context.Context, form domain.CafeForm) (string, error) {
		called = true
		if form.Name != "Warkop Pitulikur" || !form.Amenities.Wifi {
			t.Errorf("form not decoded: %+v", form)
		}
		return "custom-42", nil
	}}}
	app := setupApp(f.deps())

	resp := do(t, app, "POST", "/v1/custom-cafes",
		`{"name":"Warkop Pitulikur","lat":-7.27,"lon":112.75,"amenities":{"wifi":true}}`)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		ID string `json:"id"`
	}
	decode(t, resp, &body)
	if body.ID != "custom-42" || !called {
		t.Errorf("unexpected id %q", body.ID)
	}
}

func TestAddCustomCafe_ValidationBeforeStore(t *testing.T) {
	f := &fixture{store: &mockStore{addFn: func(ctx context.Context, form domain.CafeForm) (string, error) {
		t.Error("store must not be called for an invalid form")
		return "", nil
	}}}
	app := setupApp(f.deps())

	expectError(t, do(t, app, "POST", "/v1/custom-cafes", `{"lat":-7.27,"lon":112.75}`), 400, "bad_request")
	expectError(t, do(t, app, "POST", "/v1/custom-cafes", `{"name":`), 400, "bad_request")
}

func TestAddCustomCafe_StoreFailures(t *testing.T) {
	form := `{"name":"Warkop","lat":-7.27,"lon":112.75}`

	disabled := setupApp((&fixture{noStore: true}).deps())
	expectError(t, do(t, disabled, "POST", "/v1/custom-cafes", form), 503, "store_disabled")

	failing := setupApp((&fixture{store: &mockStore{addFn: func(ctx context.Context, f domain.CafeForm) (string, error) {
		return "", errors.New("sheets add: HTTP 500")
	}}}).deps())
	expectError(t, do(t, failing, "POST", "/v1/custom-cafes", form), 502, "upstream_error")
}

func TestListCustomCafes_StoreDownIsEmpty(t *testing.T) {
	f := &fixture{store: &mockStore{listFn: func(ctx context.Context) ([]domain.Cafe, error) {
		return nil, errors.New("timeout")
	}}}
	app := setupApp(f.deps())

	resp := do(t, app, "GET", "/v1/custom-cafes", "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected 200 with an empty list, got %d %s", resp.StatusCode, body)
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	deleted := ""
	f := &fixture{store: &mockStore{deleteFn: func(ctx context.Context, id string) error {
		deleted = id
		return nil
	}}}
	app := setupApp(f.deps())

	expectError(t, do(t, app, "DELETE", "/v1/custom-cafes/custom-1", ""), 401, "unauthorized")
	expectError(t, do(t, app, "DELETE", "/v1/custom-cafes/custom-1", "", handler.AdminKeyHeader, "wrong"), 401, "unauthorized")
	expectError(t, do(t, app, "GET", "/v1/reports", ""), 401, "unauthorized")

	resp := do(t, app, "DELETE", "/v1/custom-cafes/custom-1", "", handler.AdminKeyHeader, adminKey)
	if resp.StatusCode != 204 || deleted != "custom-1" {
		t.Errorf("expected 204 and a delete of custom-1, got %d %q", resp.StatusCode, deleted)
	}

	deps := f.deps()
	deps.AdminKey = ""
	noAdmin := setupApp(deps)
	expectError(t, do(t, noAdmin, "DELETE", "/v1/custom-cafes/custom-1", "", handler.AdminKeyHeader, ""), 403, "forbidden")
}

func TestUpdateCustomCafe_OnlyPresentFields(t *testing.T) {
	var got domain.CafePatch
	f := &fixture{store: &mockStore{updateFn: func(ctx context.Context, id string, patch domain.CafePatch) error {
		got = patch
		return nil
	}}}
	app := setupApp(f.deps())

	resp := do(t, app, "PATCH", "/v1/custom-cafes/custom-1",
		`{"name":"Warkop Baru","phone":"","address":null}`, handler.AdminKeyHeader, adminKey)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got.Name == nil || *got.Name != "Warkop Baru" {
		t.Errorf("name should be set, got %v", got.Name)
	}
	if got.Phone == nil || *got.Phone != "" {
		t.Errorf("empty phone should be present to clear the field, got %v", got.Phone)
	}
	if got.Address != nil || got.Website != nil {
		t.Error("null and absent keys must stay unset")
	}

	expectError(t, do(t, app, "PATCH", "/v1/custom-cafes/custom-1", `{}`, handler.AdminKeyHeader, adminKey), 400, "bad_request")
}

func TestUpdateCustomCafe_NotFound(t *testing.T) {
	f := &fixture{store: &mockStore{updateFn: func(ctx context.Context, id string, patch domain.CafePatch) error {
		return domain.ErrNotFound
	}}}
	app := setupApp(f.deps())

	expectError(t, do(t, app, "PATCH", "/v1/custom-cafes/nope", `{"name":"X"}`, handler.AdminKeyHeader, adminKey), 404, "not_found")
}

func TestBulkAdd(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	body := `{"cafes":[
		{"id":"osm-node-1","name":"Kopi Tuku","location":{"lat":-7.29,"lon":112.73},"source":"osm"},
		{"id":"osm-node-9","name":"","location":{"lat":-7.29,"lon":112.73},"source":"osm"}
	]}`
	resp := do(t, app, "POST", "/v1/custom-cafes/bulk", body, handler.AdminKeyHeader, adminKey)
	var res domain.BulkResult
	decode(t, resp, &res)
	if res.Added != 1 || res.Skipped != 1 || res.Total != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	expectError(t, do(t, app, "POST", "/v1/custom-cafes/bulk", `{"cafes":[]}`, handler.AdminKeyHeader, adminKey), 400, "bad_request")
}

func TestReports(t *testing.T) {
	f := &fixture{}
	app := setupApp(f.deps())

	resp := do(t, app, "POST", "/v1/reports",
		`{"cafe_id":"osm-node-1","cafe_name":"Kopi Tuku","type":"closed","description":"  Tutup permanen  "}`)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	expectError(t, do(t, app, "POST", "/v1/reports",
		`{"cafe_id":"osm-node-1","type":"haunted","description":"x"}`), 400, "bad_request")

	var reports []domain.IssueReport
	decode(t, do(t, app, "GET", "/v1/reports", "", handler.AdminKeyHeader, adminKey), &reports)
	if len(reports) != 1 || reports[0].Description != "Tutup permanen" || reports[0].SubmittedAt.IsZero() {
		t.Errorf("unexpected reports %+v", reports)
	}
}

func TestOverrides_PathIDWins(t *testing.T) {
	f := &fixture{}
	app := setupApp(f.deps())

	resp := do(t, app, "PUT", "/v1/overrides/osm-node-1",
		`{"original_id":"osm-node-2","original_name":"Kopi Tuku Darmo","name":"Tuku Darmo"}`,
		handler.AdminKeyHeader, adminKey)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	var overrides map[string]domain.Override
	decode(t, do(t, app, "GET", "/v1/overrides", ""), &overrides)
	o, ok := overrides["osm-node-1"]
	if !ok || o.Name == nil || *o.Name != "Tuku Darmo" {
		t.Fatalf("override not stored under the path id: %+v", overrides)
	}

	var cafe domain.Cafe
	decode(t, do(t, app, "GET", "/v1/cafes/osm-node-1", ""), &cafe)
	if cafe.Name != "Tuku Darmo" {
		t.Errorf("override should apply to the visible list, got %q", cafe.Name)
	}

	resp = do(t, app, "DELETE", "/v1/overrides/osm-node-1", "", handler.AdminKeyHeader, adminKey)
	if resp.StatusCode != 204 {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

// ---- Visits ----

func TestVisits_CountedOncePerSession(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	type visit struct {
		domain.VisitStats
		Counted bool `json:"counted"`
	}

	resp := do(t, app, "POST", "/v1/visits", "")
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == handler.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatal("expected an HttpOnly session cookie")
	}
	var first visit
	decode(t, resp, &first)
	if !first.Counted || first.Total != 1 {
		t.Errorf("first visit should count, got %+v", first)
	}

	var again visit
	decode(t, do(t, app, "POST", "/v1/visits", "", "Cookie", cookie.Name+"="+cookie.Value), &again)
	if again.Counted || again.Total != 1 {
		t.Errorf("same session must not count twice, got %+v", again)
	}

	var other visit
	decode(t, do(t, app, "POST", "/v1/visits", ""), &other)
	if other.Total != 2 || other.Today != 2 {
		t.Errorf("a new session counts, got %+v", other)
	}

	var snap domain.VisitStats
	decode(t, do(t, app, "GET", "/v1/visits", ""), &snap)
	if snap.Total != 2 {
		t.Errorf("snapshot should read 2, got %+v", snap)
	}
}

// ---- GraphQL ----

func TestGraphQL_Cafes(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	resp := do(t, app, "POST", "/graphql", `{"query":"{ cafes(q: \"tuku\") { id name location { lat } } visits { total } }"}`)
	var result struct {
		Data struct {
			Cafes []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Location struct {
					Lat float64 `json:"lat"`
				} `json:"location"`
			} `json:"cafes"`
			Visits struct {
				Total int `json:"total"`
			} `json:"visits"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	decode(t, resp, &result)
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.Cafes) != 1 || result.Data.Cafes[0].ID != "osm-node-1" || result.Data.Cafes[0].Location.Lat != -7.29 {
		t.Errorf("unexpected cafes %+v", result.Data.Cafes)
	}
}

func TestGraphQL_BadBody(t *testing.T) {
	app := setupApp((&fixture{}).deps())
	expectError(t, do(t, app, "POST", "/graphql", `{}`), 400, "bad_request")
}

// ---- System ----

func TestReady(t *testing.T) {
	deps := (&fixture{}).deps()
	deps.Checks = []handler.ReadinessCheck{
		{Name: "valkey", Optional: true, Probe: func(ctx context.Context) error { return errors.New("dial tcp: refused") }},
		{Name: "store", Probe: func(ctx context.Context) error { return nil }},
	}
	resp := do(t, setupApp(deps), "GET", "/v1/ready", "")
	if resp.StatusCode != 200 {
		t.Errorf("optional failures keep the instance ready, got %d", resp.StatusCode)
	}

	deps.Checks = append(deps.Checks, handler.ReadinessCheck{
		Name:  "nats",
		Probe: func(ctx context.Context) error { return errors.New("disconnected") },
	})
	resp = do(t, setupApp(deps), "GET", "/v1/ready", "")
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, resp, &body)
	if resp.StatusCode != 503 || body.Checks["nats"] != "error: disconnected" {
		t.Errorf("expected 503 with the nats error, got %d %+v", resp.StatusCode, body)
	}
}

func TestHealthAndDocs(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	if resp := do(t, app, "GET", "/v1/health", ""); resp.StatusCode != 200 {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}
	resp := do(t, app, "GET", "/docs/openapi.yaml", "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.HasPrefix(string(body), "openapi:") {
		t.Errorf("expected the embedded document, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIsAPIError(t *testing.T) {
	app := setupApp((&fixture{}).deps())
	expectError(t, do(t, app, "GET", "/v1/nope", ""), 404, "not_found")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := setupApp((&fixture{}).deps())
	expectError(t, do(t, app, "GET", "/ws", ""), 426, "upgrade_required")
}

func TestCacheControl(t *testing.T) {
	app := setupApp((&fixture{}).deps())

	if cc := do(t, app, "GET", "/v1/cafes", "").Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("cafes: unexpected Cache-Control %q", cc)
	}
	if cc := do(t, app, "GET", "/v1/visits", "").Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("visits: unexpected Cache-Control %q", cc)
	}
}
