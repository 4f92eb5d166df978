package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/kopimap/internal/adapters/nats"
	"github.com/samirrijal/kopimap/internal/adapters/overpass"
	"github.com/samirrijal/kopimap/internal/adapters/postgres"
	"github.com/samirrijal/kopimap/internal/adapters/sheets"
	"github.com/samirrijal/kopimap/internal/adapters/valkey"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/core/usecases"
	"github.com/samirrijal/kopimap/internal/pkg/config"
	"github.com/samirrijal/kopimap/internal/pkg/logging"
)

// The refresher re-pulls the open cafe feed on a fixed interval, rewrites
// the shared cache and tells every API instance the catalog changed. API
// instances never poll on their own.
func main() {
	cfg, err := config.Load("kopimap-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Refresh.Interval == 0 {
		slog.Info("refresh.interval is 0, nothing to do")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The cache is what API instances read, so it is required here.
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vc.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	var store ports.CustomCafeStore
	switch {
	case !cfg.Store.Enabled():
	case cfg.Store.Driver == "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		store = postgres.NewCustomStore(db)
	default:
		store = sheets.New(cfg.Store.URL, cfg.Store.Key, cfg.Store.Timeout, nil)
	}

	source := overpass.New(overpass.Options{
		Endpoints: cfg.Overpass.Endpoints,
		Timeout:   cfg.Overpass.Timeout,
	})
	cafes := usecases.NewCafeService(source, usecases.NewCustomCafeService(store, pub),
		valkey.NewCache(vc), pub, cfg.Area.Bounds, cfg.Overpass.CacheTTL)

	ticker := time.NewTicker(cfg.Refresh.Interval)
	defer ticker.Stop()

	slog.Info("refresher started", "interval", cfg.Refresh.Interval, "area", cfg.Area.Name)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	refresh(ctx, cafes)

	for {
		select {
		case <-ticker.C:
			refresh(ctx, cafes)
		case sig := <-quit:
			slog.Info("shutting down refresher", "signal", sig.String())
			return
		}
	}
}

func refresh(ctx context.Context, cafes *usecases.CafeService) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	list, err := cafes.Refresh(ctx)
	if err != nil {
		slog.Error("refresh failed", "error", err)
		return
	}
	slog.Info("catalog refreshed", "cafes", len(list), "took", time.Since(start).Round(time.Millisecond))
}
