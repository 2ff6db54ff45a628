package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"atompub/internal/application"
	"atompub/internal/domain/entity"
	"atompub/internal/infrastructure/feed"
	"atompub/internal/infrastructure/storage"
	"atompub/internal/infrastructure/xmpppub"
	"atompub/internal/interfaces/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	setupLogging(cfg.LogLevel)
	slog.Info("starting atompub", "feeds", len(cfg.Feeds), "jid", cfg.JID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := storage.NewSQLiteCacheRepository(cfg.CachePath, cfg.CacheCapacity)
	if err != nil {
		// Cache trouble is never fatal: dedup degrades to process-lifetime
		// memory with a one-time cold-start reseed per feed.
		slog.Warn("seen cache unavailable, falling back to in-memory dedup",
			"path", cfg.CachePath, "error", err)
		cache = storage.NewMemoryCacheRepository(cfg.CacheCapacity)
	}
	defer cache.Close()

	session, err := xmpppub.NewSession(xmpppub.SessionConfig{
		JID:      cfg.JID,
		Secret:   cfg.Secret,
		Resource: cfg.Resource,
		Address:  cfg.Address,
	})
	if err != nil {
		slog.Error("xmpp connection failed", "error", err)
		return 1
	}
	defer session.Close()

	publisher := xmpppub.NewPublisher(session)
	fetcher := feed.NewFeedRepository(feed.Config{
		Timeout:         cfg.FetchTimeout(),
		SummaryMaxRunes: cfg.SummaryMaxRunes,
	})

	tasks := make([]application.Task, 0, len(cfg.Feeds))
	for name, fc := range cfg.Feeds {
		fs := application.NewFeedSync(
			name,
			fc.URL,
			entity.Destination{Service: fc.Service, Node: fc.Node},
			fetcher,
			cache,
			publisher,
			cfg.MaxPublishAttempts,
		)
		tasks = append(tasks, application.Task{Sync: fs, Interval: cfg.Refresh(name)})
		slog.Info("scheduled feed", "feed", name, "interval", cfg.Refresh(name))
	}

	scheduler := application.NewScheduler(tasks, cfg.Jitter())
	if err := scheduler.Run(ctx); err != nil {
		slog.Error("scheduler stopped", "error", err)
		return 1
	}

	slog.Info("shutting down")
	return 0
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
