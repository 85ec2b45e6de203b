package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/roundpilot/roundpilot-go/internal/audit"
	"github.com/roundpilot/roundpilot-go/internal/config"
	"github.com/roundpilot/roundpilot-go/internal/generate"
	"github.com/roundpilot/roundpilot-go/internal/ledger"
	"github.com/roundpilot/roundpilot-go/internal/notify"
	"github.com/roundpilot/roundpilot-go/internal/pipeline"
	"github.com/roundpilot/roundpilot-go/internal/platform/httpserver"
	"github.com/roundpilot/roundpilot-go/internal/platform/objectstore"
	"github.com/roundpilot/roundpilot-go/internal/platform/postgres"
	"github.com/roundpilot/roundpilot-go/internal/repohost"
	"github.com/roundpilot/roundpilot-go/internal/scratch"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using process environment")
	}

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	var outcomes ledger.Store
	var staging scratch.Store
	var auditor *audit.Recorder
	readiness := []httpserver.ReadinessCheck{}

	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := ledger.EnsureSchema(bootCtx, db); err != nil {
			cancel()
			logger.Error("ledger schema bootstrap failed", "error", err)
			os.Exit(1)
		}
		if err := audit.EnsureSchema(bootCtx, db); err != nil {
			cancel()
			logger.Error("audit schema bootstrap failed", "error", err)
			os.Exit(1)
		}
		cancel()

		outcomes = ledger.NewPostgresStore(db)
		auditor = audit.NewRecorder(db, logger)
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(checkCtx)
			},
		})

		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		bucketCtx, cancelBucket := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBucket(bucketCtx, storeClient, storeCfg); err != nil {
			cancelBucket()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancelBucket()

		staging = scratch.NewMinIOStore(storeClient, storeCfg.Bucket)
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				_, err := storeClient.BucketExists(checkCtx, storeCfg.Bucket)
				return err
			},
		})
	case config.LedgerMemory:
		logger.Warn("memory ledger selected, outcomes will not survive restarts")
		outcomes = ledger.NewMemoryStore()
		staging = scratch.NewMemoryStore()
	}

	repos, err := repohost.NewClient(ctx, repohost.Config{
		Owner:   cfg.RepoOwner,
		Token:   cfg.RepoToken,
		BaseURL: cfg.RepoAPIBase,
		Timeout: cfg.RepoTimeout,
	})
	if err != nil {
		logger.Error("repo host client init failed", "error", err)
		os.Exit(2)
	}

	generator, err := generate.New(generate.Config{
		Endpoint: cfg.GeneratorEndpoint,
		APIKey:   cfg.GeneratorAPIKey,
		Model:    cfg.GeneratorModel,
		Timeout:  cfg.GeneratorTimeout,
	}, logger)
	if err != nil {
		logger.Error("generator init failed", "error", err)
		os.Exit(2)
	}

	notifier := notify.New(cfg.NotifyTimeout)
	runner := pipeline.NewRunner(logger, repos, generator, notifier, outcomes, staging, auditor, cfg.StageTimeout)

	// Admitted jobs run to completion even while the server shuts down.
	api := newIntakeAPI(context.WithoutCancel(ctx), logger, cfg.SharedSecret, outcomes, runner, notifier, auditor)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("intake"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("intake", readiness...))
	api.register(mux)

	handler := httpserver.Wrap(logger, "intake", mux)
	if err := httpserver.Run(ctx, logger, httpserver.Config{
		Service:         "intake",
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, handler); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("draining in-flight rounds")
	api.drain()
	logger.Info("intake stopped")
}
