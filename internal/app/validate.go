package app

import (
	"context"

	"go.uber.org/zap"

	"nhlagent/internal/app/agent"
	"nhlagent/internal/infra/hashutil"
)

// ValidationSummary describes a configuration that loaded cleanly.
type ValidationSummary struct {
	ConfigPath string   `json:"config_path,omitempty"`
	AsOf       string   `json:"as_of,omitempty"`
	Provider   string   `json:"provider"`
	Endpoints  int      `json:"endpoints"`
	CatalogTag string   `json:"catalog_etag"`
	Categories []string `json:"categories"`
	Tools      []string `json:"tools"`
}

// Validate loads the configuration at path and the catalog it names, and
// resolves every tool schema without touching the network.
func Validate(ctx context.Context, path string, logger *zap.Logger) (*ValidationSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := LoadConfig(path, logger)
	if err != nil {
		return nil, err
	}
	cat, err := NewCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	application := NewApplication(ApplicationOptions{
		Config:    cfg,
		Logger:    logger,
		Catalog:   cat,
		Transport: NewNHLClient(cfg, nil, nil, logger),
	})
	bundle, err := application.NewBundle(cfg.AsOf)
	if err != nil {
		return nil, err
	}

	summary := &ValidationSummary{
		ConfigPath: path,
		AsOf:       cfg.AsOf.String(),
		Provider:   string(cfg.Provider.Kind),
		Endpoints:  cat.Len(),
		CatalogTag: hashutil.CatalogETag(logger, cat.List("")),
		Categories: cat.Categories(),
	}
	registry, err := agent.NewRegistry(bundle.Toolset.Specs())
	if err != nil {
		return nil, err
	}
	summary.Tools = registry.Names()
	logger.Info("configuration validated",
		zap.String("config", path),
		zap.Int("endpoints", summary.Endpoints),
		zap.String("catalog_etag", summary.CatalogTag),
		zap.Int("tools", len(summary.Tools)),
	)
	return summary, nil
}
