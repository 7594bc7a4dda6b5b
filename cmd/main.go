package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"patina/internal/config"
	"patina/internal/core"
	"patina/internal/database"
	"patina/internal/feed"
	"patina/internal/ratelimiter"
	"patina/internal/scheduler"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	limiter := ratelimiter.New(cfg.HostRateInterval, log)
	fetcher := feed.NewFetcher(cfg.UserAgent, cfg.FetchTimeout, limiter, log)
	reader := core.New(db, fetcher, log)

	sched := scheduler.New(ctx, reader, cfg.RefreshSpec, cfg.RefreshTimeout, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.RefreshSpec,
			"timezone", scheduler.Timezone)

		return
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.RefreshSpec,
		"timeout", cfg.RefreshTimeout,
		"timezone", scheduler.Timezone)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}
