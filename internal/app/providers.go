package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/cache"
	"nhlagent/internal/infra/catalog"
	"nhlagent/internal/infra/nhlapi"
	"nhlagent/internal/infra/telemetry"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

// NewCacheStore opens the response cache. The cleanup closes it.
func NewCacheStore(cfg Config, logger *zap.Logger) (cache.Store, func(), error) {
	store, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.BoltPath, logger)
	if err != nil {
		return nil, nil, domain.E(domain.CodeInvalidConfig, "app.cache", "open response cache", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close response cache failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func NewNHLClient(cfg Config, store cache.Store, metrics domain.Metrics, logger *zap.Logger) *nhlapi.Client {
	return nhlapi.NewClient(nhlapi.Options{
		PrimaryBaseURL: cfg.NHL.PrimaryBaseURL,
		StatsBaseURL:   cfg.NHL.StatsBaseURL,
		Timeout:        cfg.NHL.Timeout,
		Cache:          store,
		Logger:         logger,
		Metrics:        metrics,
	})
}

func NewCatalog(ctx context.Context, cfg Config, logger *zap.Logger) (*catalog.Catalog, error) {
	loader := catalog.NewLoader(logger)
	var (
		cat *catalog.Catalog
		err error
	)
	if cfg.Catalog.BasePath == "" && cfg.Catalog.OverridesPath == "" {
		cat, err = loader.Default(ctx)
	} else {
		cat, err = loader.Load(ctx, cfg.Catalog.BasePath, cfg.Catalog.OverridesPath)
	}
	if err != nil {
		return nil, domain.E(domain.CodeInvalidConfig, "app.catalog", "load endpoint catalog", err)
	}
	return cat, nil
}
