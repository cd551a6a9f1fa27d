package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bryan-buckman/feedrewrite/internal/config"
	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
	"github.com/bryan-buckman/feedrewrite/internal/pipeline"
	"github.com/bryan-buckman/feedrewrite/internal/rewrite"
	"github.com/bryan-buckman/feedrewrite/internal/rss"
	"github.com/bryan-buckman/feedrewrite/internal/shortener"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg          *config.Config
	log          logger.Logger
	store        storage.Store
	metrics      *metrics.Metrics
	orchestrator *pipeline.Orchestrator
	webhook      *pipeline.Webhook
	redis        *redis.Client
}

// newStoreApp opens logging and storage only.
func newStoreApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Debug("Storage opened", logger.String("backend", store.Backend()))
	return &app{cfg: cfg, log: log, store: store}, nil
}

// newApp wires the full pipeline.
func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	a, err := newStoreApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.metrics = metrics.New(reg)

	httpClient := &http.Client{}

	providers, err := rewrite.BuildProviders(cfg.Rewrite.Providers, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	chain := rewrite.NewChain(providers, cfg.Pipeline.RewriteTimeout, a.log, a.metrics)
	if chain.Available() == 0 {
		a.log.Warn("No LLM provider has a credential; every rewrite will be skipped")
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Lock.Backend == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.Redis.Addr,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = lock.NewRedis(a.redis, cfg.Lock.TTL, a.log)
	}

	deps := pipeline.Deps{
		Store:     a.store,
		Fetcher:   rss.NewFetcher(httpClient, cfg.FetchOptions(), a.log, a.metrics),
		Rewriter:  rewrite.NewEngine(chain, cfg.RewriteOptions()),
		Shortener: shortener.New(cfg.ShortenerOptions(), httpClient, a.log, a.metrics),
		Locker:    locker,
		Logger:    a.log,
		Metrics:   a.metrics,
	}
	if cfg.Pipeline.NextStageURL != "" {
		a.webhook = pipeline.NewWebhook(cfg.Pipeline.NextStageURL, httpClient, 0, a.log)
		deps.Notifier = a.webhook
	}
	a.orchestrator = pipeline.New(deps, cfg.PipelineOptions())
	return a, nil
}

// Close waits for pending notifications and releases connections.
func (a *app) Close() {
	if a.webhook != nil {
		a.webhook.Wait()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Closing storage failed", logger.Error(err))
		}
	}
	_ = a.log.Sync()
}
