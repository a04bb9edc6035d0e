package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"soldi/internal/amqp"
	"soldi/internal/config"
	"soldi/internal/demo"
	apphttp "soldi/internal/http"
	"soldi/internal/identity"
	"soldi/internal/kv"
	applog "soldi/internal/log"
	"soldi/internal/remote"
	"soldi/internal/sheets"
	"soldi/internal/tracker"
	"soldi/internal/vocab"
)

// authTokenKey is where a previously issued bearer token persists between
// restarts; startup resolution falls back to anonymous when it is absent
// or invalid.
const authTokenKey = "auth:token"

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.FromEnv("soldi"))
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := remote.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	local, err := kv.NewSQLite(cfg.SQLitePath)
	if err != nil {
		logger.Error("Failed to open local KV store", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}
	defer local.Close()

	// Change events are optional; without a broker, mutations still work.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
			events = nil
		} else {
			defer events.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var vocabProvider vocab.Provider
	if cfg.VocabProvider == "sheets" {
		client, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		vocabProvider = vocab.NewSheets(client)
		logger.Info("Initialized sheets vocabulary provider")
	} else {
		vocabProvider = vocab.NewFromFiles(cfg.DataDirectory)
		logger.Info("Initialized static vocabulary provider", "data_directory", cfg.DataDirectory)
	}

	ids := identity.NewManager([]byte(cfg.JWTSecret), logger)
	if token, ok, err := local.Get(authTokenKey); err == nil && ok {
		ids.Resolve(token)
	} else {
		ids.Resolve("")
	}

	remoteStore := remote.New(pool, local, events, logger)
	demoStore := demo.NewStore(local, logger)

	tr := tracker.New(remoteStore, demoStore, local, ids, logger)
	tr.SetCacheTTL(cfg.CacheTTL)
	tr.Start(ctx)
	defer tr.Close()

	srv := apphttp.NewServer(":"+cfg.Port, tr, ids, vocabProvider, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting soldi server", "port", cfg.Port, "state", tr.State())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
