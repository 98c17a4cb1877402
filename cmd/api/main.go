package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slangdict/api/internal/app"
	"slangdict/api/internal/config"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/metrics"
	"slangdict/api/internal/session"
	"slangdict/api/internal/store"
	"slangdict/api/internal/vote"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := store.ApplyMigrations(ctx, db); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	registry := metrics.NewRegistry()
	voteMetrics, err := metrics.NewVoteMetrics(registry)
	if err != nil {
		logger.Error("register vote metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		logger.Error("register http metrics", "error", err)
		os.Exit(1)
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		logger.Info("using redis for revoked sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		sessions = redisStore
	} else {
		logger.Info("using process memory for revoked sessions")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()

	engine := vote.NewEngine(db,
		vote.WithMaxAttempts(cfg.VoteMaxAttempts),
		vote.WithRecorder(voteMetrics),
		vote.WithLogger(logger),
	)
	service := app.New(cfg, store.NewSQLStore(db), engine, sessions, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin,
		app.WithHTTPLogger(logger),
		app.WithMetrics(registry, httpMetrics),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("slangdict api listening", "addr", cfg.Addr, "dialect", string(db.Dialect))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serveErr:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
