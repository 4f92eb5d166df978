package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/kopimap/internal/adapters/http"
	"github.com/samirrijal/kopimap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/kopimap/internal/adapters/nats"
	"github.com/samirrijal/kopimap/internal/adapters/nominatim"
	"github.com/samirrijal/kopimap/internal/adapters/osrm"
	"github.com/samirrijal/kopimap/internal/adapters/overpass"
	"github.com/samirrijal/kopimap/internal/adapters/postgres"
	"github.com/samirrijal/kopimap/internal/adapters/sheets"
	"github.com/samirrijal/kopimap/internal/adapters/valkey"
	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/core/usecases"
	"github.com/samirrijal/kopimap/internal/pkg/config"
	"github.com/samirrijal/kopimap/internal/pkg/logging"
	"github.com/samirrijal/kopimap/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("kopimap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var checks []http.ReadinessCheck

	// Upstream map services
	source := overpass.New(overpass.Options{
		Endpoints: cfg.Overpass.Endpoints,
		Timeout:   cfg.Overpass.Timeout,
	})
	geocoder := nominatim.New(nominatim.Options{
		BaseURL:   cfg.Nominatim.URL,
		Timeout:   cfg.Nominatim.Timeout,
		UserAgent: cfg.Nominatim.UserAgent,
		RateLimit: cfg.Nominatim.RateLimit,
	})
	router := osrm.New(cfg.OSRM.URL, cfg.OSRM.Timeout, nil)

	// Custom store
	store, closeStore, storeCheck := openStore(ctx, cfg)
	defer closeStore()
	if storeCheck != nil {
		checks = append(checks, *storeCheck)
	}

	// Cache and visit counters; memory stands in when Valkey is down.
	var (
		cache   ports.CacheService
		counter ports.VisitCounterStore
		flags   ports.SessionFlags
	)
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, using in-memory counters", "error", err)
	} else {
		defer vc.Close()
		cache = valkey.NewCache(vc)
		counter = valkey.NewVisitCounter(vc)
		flags = valkey.NewSessionFlags(vc, cfg.Visits.SessionTTL)
		checks = append(checks, http.ReadinessCheck{Name: "valkey", Optional: true, Probe: vc.Ping})
	}

	// NATS
	feed := usecases.NewCatalogFeed()
	var remote ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events stay local", "error", err)
	} else {
		defer pub.Close()
		remote = pub
		slog.Info("nats connected", "origin", pub.Origin())
		checks = append(checks, http.ReadinessCheck{Name: "nats", Optional: true, Probe: func(context.Context) error {
			if !pub.Conn().IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	events := usecases.NewLocalEvents(feed, remote)

	loc, err := time.LoadLocation(cfg.Visits.Timezone)
	if err != nil {
		log.Fatalf("visits timezone: %v", err)
	}

	// Use cases
	customSvc := usecases.NewCustomCafeService(store, events)
	cafeSvc := usecases.NewCafeService(source, customSvc, cache, events, cfg.Area.Bounds, cfg.Overpass.CacheTTL)
	geocodeSvc := usecases.NewGeocodeService(geocoder, cache, cfg.Area.Bounds)
	routeSvc := usecases.NewRouteService(router)
	visitSvc := usecases.NewVisitService(usecases.VisitServiceOptions{
		Counter:       counter,
		Fallback:      memory.NewVisitCounter(),
		Flags:         flags,
		FallbackFlags: memory.NewSessionFlags(cfg.Visits.SessionTTL),
		Events:        events,
		Location:      loc,
	})

	// Events from other instances
	if pub != nil {
		sub := natsadapter.NewSubscriber(pub)
		defer sub.Close()
		if err := sub.SubscribeVisitStats(ctx, func(_ context.Context, stats domain.VisitStats) {
			visitSvc.Broadcast(stats)
		}); err != nil {
			slog.Warn("visit stats subscription failed", "error", err)
		}
		if err := sub.SubscribeCatalogChanged(ctx, func(_ context.Context, reason string) {
			feed.Notify(reason)
		}); err != nil {
			slog.Warn("catalog subscription failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Cafes:          cafeSvc,
		Custom:         customSvc,
		Geocode:        geocodeSvc,
		Routes:         routeSvc,
		Visits:         visitSvc,
		Catalog:        feed,
		AdminKey:       cfg.Server.AdminKey,
		SearchDebounce: cfg.Search.Debounce,
		SecureCookies:  cfg.Server.SecureCookies,
		Checks:         checks,
		Version:        version,
	}
	if deps.AdminKey == "" {
		slog.Warn("server.admin_key is empty, admin routes are disabled")
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // bulk imports carry up to 1000 cafes
		AppName:      "Kopimap API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: http.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowOrigins, ", "),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, " + http.AdminKeyHeader,
		AllowCredentials: !slices.Contains(cfg.Server.AllowOrigins, "*"),
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "area", cfg.Area.Name, "store", cfg.Store.Driver, "store_enabled", store != nil)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// openStore builds the configured custom store. A nil store disables the
// feature; the interface is left untyped nil in that case.
func openStore(ctx context.Context, cfg *config.Config) (ports.CustomCafeStore, func(), *http.ReadinessCheck) {
	noop := func() {}

	switch {
	case !cfg.Store.Enabled():
		slog.Warn("custom store disabled", "driver", cfg.Store.Driver)
		return nil, noop, nil

	case cfg.Store.Driver == "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		s := postgres.NewCustomStore(db)
		return s, db.Close, &http.ReadinessCheck{Name: "store", Probe: s.Ready}

	default:
		return sheets.New(cfg.Store.URL, cfg.Store.Key, cfg.Store.Timeout, nil), noop, nil
	}
}
