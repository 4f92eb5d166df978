package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("kopimap-test")
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Area.Bounds != domain.SurabayaBounds {
		t.Errorf("unexpected default area %+v", cfg.Area.Bounds)
	}
	if len(cfg.Overpass.Endpoints) != 3 {
		t.Errorf("expected 3 overpass endpoints, got %d", len(cfg.Overpass.Endpoints))
	}
	if cfg.Search.Debounce != 400*time.Millisecond {
		t.Errorf("unexpected debounce %s", cfg.Search.Debounce)
	}
	if cfg.Telemetry.ServiceName != "kopimap-test" {
		t.Errorf("service name should default to the binary, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Store.Enabled() {
		t.Error("sheets store without url and key must be disabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KOPIMAP_STORE_URL", "https://script.example/exec")
	t.Setenv("KOPIMAP_STORE_KEY", "k")
	t.Setenv("KOPIMAP_SERVER_PORT", "9090")
	t.Setenv("KOPIMAP_VISITS_TIMEZONE", "UTC")

	cfg, err := Load("kopimap-test")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Store.Enabled() || cfg.Store.URL != "https://script.example/exec" {
		t.Errorf("store should be enabled from env, got %+v", cfg.Store)
	}
	if cfg.Server.Port != 9090 || cfg.Visits.Timezone != "UTC" {
		t.Errorf("env not applied: port=%d tz=%s", cfg.Server.Port, cfg.Visits.Timezone)
	}
}

func TestLoad_InvalidCollectsEveryProblem(t *testing.T) {
	t.Setenv("KOPIMAP_SERVER_PORT", "0")
	t.Setenv("KOPIMAP_STORE_DRIVER", "firebase")
	t.Setenv("KOPIMAP_VISITS_TIMEZONE", "Mars/Olympus")

	_, err := Load("kopimap-test")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"server.port", "store.driver", "visits.timezone"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestStoreConfig_Enabled(t *testing.T) {
	tests := []struct {
		store StoreConfig
		want  bool
	}{
		{StoreConfig{Driver: "sheets", URL: "u", Key: "k"}, true},
		{StoreConfig{Driver: "sheets", URL: "u"}, false},
		{StoreConfig{Driver: "postgres"}, true},
		{StoreConfig{Driver: "none", URL: "u", Key: "k"}, false},
	}
	for _, tt := range tests {
		if got := tt.store.Enabled(); got != tt.want {
			t.Errorf("%+v: Enabled() = %v, want %v", tt.store, got, tt.want)
		}
	}
}

func TestValidate_PostgresNeedsDatabase(t *testing.T) {
	cfg, err := Load("kopimap-test")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.Driver = "postgres"
	cfg.Database.Host = ""
	cfg.Database.DBName = ""

	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "database.host") || !strings.Contains(err.Error(), "database.dbname") {
		t.Errorf("expected database errors, got %v", err)
	}
}
