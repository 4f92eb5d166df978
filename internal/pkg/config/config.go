package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Area      AreaConfig      `mapstructure:"area"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Nominatim NominatimConfig `mapstructure:"nominatim"`
	OSRM      OSRMConfig      `mapstructure:"osrm"`
	Store     StoreConfig     `mapstructure:"store"`
	Visits    VisitsConfig    `mapstructure:"visits"`
	Search    SearchConfig    `mapstructure:"search"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port          int      `mapstructure:"port"`
	ReadTimeout   int      `mapstructure:"read_timeout"`
	WriteTimeout  int      `mapstructure:"write_timeout"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
	AdminKey      string   `mapstructure:"admin_key"`
	SecureCookies bool     `mapstructure:"secure_cookies"`
}

// AreaConfig is the metropolitan bounding box used for default queries.
type AreaConfig struct {
	Name   string        `mapstructure:"name"`
	Bounds domain.Bounds `mapstructure:"bounds"`
}

type OverpassConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type NominatimConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
}

type OSRMConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects the custom cafe store. Driver "sheets" needs URL and
// Key; leaving either empty disables the store.
type StoreConfig struct {
	Driver  string        `mapstructure:"driver"` // sheets | postgres | none
	URL     string        `mapstructure:"url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the configured driver has what it needs.
func (s StoreConfig) Enabled() bool {
	switch s.Driver {
	case "sheets":
		return s.URL != "" && s.Key != ""
	case "postgres":
		return true
	default:
		return false
	}
}

type VisitsConfig struct {
	Timezone   string        `mapstructure:"timezone"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// RefreshConfig drives cmd/refresher. A zero interval turns it off.
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, an optional file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: KOPIMAP_STORE_URL → store.url
	v.SetEnvPrefix("KOPIMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	b := domain.SurabayaBounds

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 20)
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("area.name", "Surabaya")
	v.SetDefault("area.bounds.min_lat", b.MinLat)
	v.SetDefault("area.bounds.min_lon", b.MinLon)
	v.SetDefault("area.bounds.max_lat", b.MaxLat)
	v.SetDefault("area.bounds.max_lon", b.MaxLon)
	v.SetDefault("overpass.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
		"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
	})
	v.SetDefault("overpass.timeout", 15*time.Second)
	v.SetDefault("overpass.cache_ttl", 10*time.Minute)
	v.SetDefault("nominatim.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.timeout", 10*time.Second)
	v.SetDefault("nominatim.user_agent", "kopimap/1.0 (+https://github.com/samirrijal/kopimap)")
	v.SetDefault("nominatim.rate_limit", 1.0)
	v.SetDefault("osrm.url", "https://router.project-osrm.org")
	v.SetDefault("osrm.timeout", 15*time.Second)
	v.SetDefault("store.driver", "sheets")
	v.SetDefault("store.url", "")
	v.SetDefault("store.key", "")
	v.SetDefault("store.timeout", 15*time.Second)
	v.SetDefault("visits.timezone", "Asia/Jakarta")
	v.SetDefault("visits.session_ttl", 12*time.Hour)
	v.SetDefault("search.debounce", 400*time.Millisecond)
	v.SetDefault("refresh.interval", 10*time.Minute)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kopimap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "kopimap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "kopimap-import")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if !c.Area.Bounds.Valid() {
		errs = append(errs, "area.bounds must describe a non-empty box")
	}
	if len(c.Overpass.Endpoints) == 0 {
		errs = append(errs, "overpass.endpoints must list at least one endpoint")
	}
	if c.Overpass.Timeout <= 0 {
		errs = append(errs, "overpass.timeout must be positive")
	}
	if c.Nominatim.URL == "" {
		errs = append(errs, "nominatim.url is required")
	}
	if c.Nominatim.Timeout <= 0 {
		errs = append(errs, "nominatim.timeout must be positive")
	}
	if c.Nominatim.RateLimit <= 0 {
		errs = append(errs, "nominatim.rate_limit must be positive")
	}
	if c.OSRM.URL == "" {
		errs = append(errs, "osrm.url is required")
	}
	switch c.Store.Driver {
	case "sheets", "postgres", "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sheets, postgres or none, got %q", c.Store.Driver))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, "store.timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Visits.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("visits.timezone: %v", err))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, "search.debounce must not be negative")
	}
	if c.Refresh.Interval < 0 {
		errs = append(errs, "refresh.interval must not be negative")
	}
	if c.Store.Driver == "postgres" {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
