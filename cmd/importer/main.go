package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/kopimap/internal/adapters/nats"
	"github.com/samirrijal/kopimap/internal/adapters/overpass"
	"github.com/samirrijal/kopimap/internal/adapters/postgres"
	"github.com/samirrijal/kopimap/internal/adapters/sheets"
	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/core/usecases"
	"github.com/samirrijal/kopimap/internal/pkg/config"
	"github.com/samirrijal/kopimap/internal/pkg/logging"
	"github.com/samirrijal/kopimap/internal/workflows"
)

const usage = `usage:
  importer worker                          run the import worker
  importer start [-q text] [-batch n] [id...]  start an import and wait for it`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("kopimap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(c, cfg)
	case "start":
		startImport(c, cfg, os.Args[2:])
	default:
		log.Fatal(usage)
	}
}

func runWorker(c client.Client, cfg *config.Config) {
	ctx := context.Background()

	store := openStore(ctx, cfg)
	if store == nil {
		log.Fatal("custom store is disabled, nothing to import into")
	}

	// Other instances learn about the new cafes through NATS.
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, import will not notify API instances", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.BulkImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{
		Source: overpass.New(overpass.Options{
			Endpoints: cfg.Overpass.Endpoints,
			Timeout:   cfg.Overpass.Timeout,
		}),
		Custom: usecases.NewCustomCafeService(store, events),
		Bounds: cfg.Area.Bounds,
	})

	slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue, "store", cfg.Store.Driver)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startImport(c client.Client, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	query := fs.String("q", "", "only import cafes matching this text")
	batch := fs.Int("batch", workflows.DefaultBatchSize, "cafes per store call")
	_ = fs.Parse(args)

	input := workflows.ImportInput{Query: *query, IDs: fs.Args(), BatchSize: *batch}
	ctx := context.Background()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.BulkImportWorkflow, input)
	if err != nil {
		log.Fatalf("start import: %v", err)
	}
	slog.Info("import started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res domain.BulkResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	fmt.Printf("added %d, skipped %d of %d\n", res.Added, res.Skipped, res.Total)
}

// openStore returns nil when the configured store is disabled.
func openStore(ctx context.Context, cfg *config.Config) ports.CustomCafeStore {
	if !cfg.Store.Enabled() {
		return nil
	}
	if cfg.Store.Driver == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		return postgres.NewCustomStore(db)
	}
	return sheets.New(cfg.Store.URL, cfg.Store.Key, cfg.Store.Timeout, nil)
}
