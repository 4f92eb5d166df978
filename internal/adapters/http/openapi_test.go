package http_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/kopimap/api"
)

func loadDocument(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return doc
}

// TestOpenAPIDocument validates the embedded document and checks it lists
// every public route.
func TestOpenAPIDocument(t *testing.T) {
	doc := loadDocument(t)

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/cafes",
		"/v1/cafes/refresh",
		"/v1/cafes/{id}",
		"/v1/geocode",
		"/v1/route",
		"/v1/custom-cafes",
		"/v1/custom-cafes/bulk",
		"/v1/custom-cafes/{id}",
		"/v1/reports",
		"/v1/overrides",
		"/v1/overrides/{id}",
		"/v1/visits",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"GeoPoint",
		"Cafe",
		"CafeForm",
		"CafePatch",
		"Override",
		"IssueReport",
		"Route",
		"VisitStats",
		"BulkResult",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

func TestOpenAPIAdminRoutesDeclareKey(t *testing.T) {
	doc := loadDocument(t)

	if doc.Components.SecuritySchemes["adminKey"] == nil {
		t.Fatal("adminKey security scheme missing")
	}
	del := doc.Paths.Find("/v1/custom-cafes/{id}").Delete
	if del == nil || del.Security == nil || len(*del.Security) == 0 {
		t.Error("DELETE /v1/custom-cafes/{id} should require the admin key")
	}
	refresh := doc.Paths.Find("/v1/cafes/refresh").Post
	if refresh == nil || refresh.Security == nil || len(*refresh.Security) == 0 {
		t.Error("POST /v1/cafes/refresh should require the admin key")
	}
}

func TestOpenAPICafeSearchParameter(t *testing.T) {
	doc := loadDocument(t)

	get := doc.Paths.Find("/v1/cafes").Get
	if get == nil {
		t.Fatal("GET /v1/cafes missing")
	}
	q := get.Parameters.GetByInAndName("query", "q")
	if q == nil {
		t.Fatal("q parameter missing")
	}
	if q.Description != "Case-insensitive match on name, address or cuisine" {
		t.Errorf("unexpected q description %q", q.Description)
	}
}

func TestOpenAPIInfo(t *testing.T) {
	doc := loadDocument(t)

	if doc.Info.Title != "Kopimap API" {
		t.Errorf("expected title 'Kopimap API', got %q", doc.Info.Title)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}
	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(doc.Servers) == 0 {
		t.Fatal("expected at least one server")
	}
}
