package overpass_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/kopimap/internal/adapters/overpass"
	"github.com/samirrijal/kopimap/internal/core/domain"
)

var testBounds = domain.Bounds{MinLat: -7.4, MinLon: 112.6, MaxLat: -7.1, MaxLon: 112.9}

const sampleResponse = `{
  "elements": [
    {"type":"node","id":101,"lat":-7.26,"lon":112.74,
     "tags":{"amenity":"cafe","name":"Kopi Tuku","addr:street":"Jl. Tunjungan","addr:housenumber":"12",
             "addr:city":"Surabaya","internet_access":"wlan","outdoor_seating":"yes","cuisine":"coffee_shop"}},
    {"type":"way","id":202,"center":{"lat":-7.28,"lon":112.75},
     "tags":{"amenity":"cafe","name":"Rumah Kopi","takeaway":"only","addr:suburb":"Gubeng"}},
    {"type":"node","id":303,"lat":-7.27,"lon":112.76,"tags":{"amenity":"cafe"}},
    {"type":"way","id":404,"tags":{"amenity":"cafe","name":"No Geometry"}}
  ]
}`

func unreachable(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOpenCafes_NormalizesElements(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		vals, _ := url.ParseQuery(string(body))
		gotData = vals.Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	c := overpass.New(overpass.Options{Endpoints: []string{srv.URL}})
	cafes := c.FetchOpenCafes(context.Background(), testBounds, "")

	if !strings.Contains(gotData, "(-7.4,112.6,-7.1,112.9)") {
		t.Errorf("query should carry the s,w,n,e bbox, got %q", gotData)
	}
	if len(cafes) != 2 {
		t.Fatalf("expected 2 cafes (nameless and geometry-less dropped), got %d", len(cafes))
	}

	first := cafes[0]
	if first.ID != "osm-node-101" || first.Source != domain.SourceOSM {
		t.Errorf("unexpected identity: %+v", first)
	}
	if first.Address != "Jl. Tunjungan, 12, Surabaya" {
		t.Errorf("unexpected address %q", first.Address)
	}
	if !first.Amenities.Wifi || !first.Amenities.OutdoorSeating {
		t.Errorf("amenities not mapped: %+v", first.Amenities)
	}

	second := cafes[1]
	if second.Location != (domain.GeoPoint{Lat: -7.28, Lon: 112.75}) {
		t.Errorf("way should use its center, got %+v", second.Location)
	}
	if second.Address != "Gubeng" || !second.Amenities.Takeaway {
		t.Errorf("unexpected second cafe: %+v", second)
	}
}

func TestFetchOpenCafes_FailsOverInOrder(t *testing.T) {
	var firstHits int32
	bad := unreachable(t, &firstHits)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer good.Close()

	c := overpass.New(overpass.Options{Endpoints: []string{bad.URL, good.URL}})
	cafes := c.FetchOpenCafes(context.Background(), testBounds, "")

	if atomic.LoadInt32(&firstHits) != 1 {
		t.Errorf("first endpoint should be tried once, got %d", firstHits)
	}
	if len(cafes) != 2 {
		t.Fatalf("expected live result from second endpoint, got %d cafes", len(cafes))
	}
}

func TestFetchOpenCafes_AllEndpointsDownReturnsFallback(t *testing.T) {
	c := overpass.New(overpass.Options{Endpoints: []string{
		unreachable(t, nil).URL,
		unreachable(t, nil).URL,
		unreachable(t, nil).URL,
	}})

	cafes := c.FetchOpenCafes(context.Background(), testBounds, "")
	if len(cafes) != 10 {
		t.Fatalf("expected the 10 built-in cafes, got %d", len(cafes))
	}
	for i, cafe := range cafes {
		if cafe.ID != overpass.FallbackCafes()[i].ID {
			t.Errorf("fallback order changed at %d: %s", i, cafe.ID)
		}
	}
}

func TestFetchOpenCafes_FallbackIsFiltered(t *testing.T) {
	c := overpass.New(overpass.Options{Endpoints: []string{unreachable(t, nil).URL}})

	cafes := c.FetchOpenCafes(context.Background(), testBounds, "STARBUCKS")
	if len(cafes) != 1 || cafes[0].Name != "Starbucks Galaxy Mall" {
		t.Fatalf("expected case-insensitive match on name, got %+v", cafes)
	}

	byAddress := c.FetchOpenCafes(context.Background(), testBounds, "gubeng")
	if len(byAddress) != 2 {
		t.Errorf("expected 2 cafes in Gubeng, got %d", len(byAddress))
	}
}

func TestFetchOpenCafes_MalformedBodyCountsAsFailure(t *testing.T) {
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>rate limited</html>")
	}))
	defer garbage.Close()

	c := overpass.New(overpass.Options{Endpoints: []string{garbage.URL}})
	if got := len(c.FetchOpenCafes(context.Background(), testBounds, "")); got != 10 {
		t.Errorf("expected fallback after undecodable body, got %d", got)
	}
}

func TestFetchOpenCafes_AttemptTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer good.Close()

	c := overpass.New(overpass.Options{
		Endpoints: []string{slow.URL, good.URL},
		Timeout:   50 * time.Millisecond,
	})

	start := time.Now()
	cafes := c.FetchOpenCafes(context.Background(), testBounds, "")
	if time.Since(start) > time.Second {
		t.Errorf("slow endpoint should be abandoned after its timeout")
	}
	if len(cafes) != 2 {
		t.Errorf("expected result from second endpoint, got %d", len(cafes))
	}
}

func TestFetchOpenCafes_OpenBreakerSkipsEndpoint(t *testing.T) {
	var hits int32
	bad := unreachable(t, &hits)

	c := overpass.New(overpass.Options{
		Endpoints:       []string{bad.URL},
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	})

	for i := 0; i < 5; i++ {
		c.FetchOpenCafes(context.Background(), testBounds, "")
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("breaker should stop calls after 2 failures, endpoint saw %d", got)
	}
}

func TestFetchOpenCafes_GarbageBodiesOpenBreaker(t *testing.T) {
	var hits int32
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, "<html>rate limited</html>")
	}))
	defer garbage.Close()

	c := overpass.New(overpass.Options{
		Endpoints:       []string{garbage.URL},
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	})

	for i := 0; i < 5; i++ {
		c.FetchOpenCafes(context.Background(), testBounds, "")
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("undecodable 200 responses should trip the breaker after 2 calls, endpoint saw %d", got)
	}
}

func TestBuildAddress_SkipsMissingParts(t *testing.T) {
	got := overpass.BuildAddress(map[string]string{
		"addr:street":   "Jl. Darmo",
		"addr:district": "Wonokromo",
	})
	if got != "Jl. Darmo, Wonokromo" {
		t.Errorf("unexpected address %q", got)
	}
	if overpass.BuildAddress(nil) != "" {
		t.Error("no tags should give an empty address")
	}
}
