package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nhlagent/internal/app"
	"nhlagent/internal/infra/catalog"
)

func newCatalogCmd(root *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or regenerate the NHL endpoint allow-list",
	}
	cmd.AddCommand(
		newCatalogListCmd(root),
		newCatalogGenerateCmd(root),
	)
	return cmd
}

func newCatalogListCmd(root *cliOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog endpoints, optionally filtered by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(_ context.Context, application *app.Application) error {
				bundle, err := application.NewBundle(root.cfg.AsOf)
				if err != nil {
					return exitDomain(err)
				}
				return writeJSON(bundle.Gateway.ListEndpoints(category))
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	return cmd
}

type generateOptions struct {
	readme       string
	output       string
	overrides    string
	mergedOutput string
}

func newCatalogGenerateCmd(root *cliOptions) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a base endpoint table from the community NHL API README",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generateCatalog(cmd.Context(), opts, root.logger)
		},
	}
	cmd.Flags().StringVar(&opts.readme, "readme", "", "path to the NHL API README markdown")
	cmd.Flags().StringVar(&opts.output, "output", "", "where to write the generated table (.yaml or .json)")
	cmd.Flags().StringVar(&opts.overrides, "overrides", "", "overrides file to merge into the generated table")
	cmd.Flags().StringVar(&opts.mergedOutput, "merged-output", "", "where to write the merged table")
	_ = cmd.MarkFlagRequired("readme")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsRequiredTogether("overrides", "merged-output")
	return cmd
}

func generateCatalog(ctx context.Context, opts generateOptions, logger *zap.Logger) error {
	file, err := os.Open(opts.readme)
	if err != nil {
		return fmt.Errorf("open readme: %w", err)
	}
	defer file.Close()

	base, err := catalog.Generate(file)
	if err != nil {
		return err
	}
	if err := catalog.WriteTable(opts.output, base); err != nil {
		return err
	}
	logger.Info("catalog generated", zap.String("path", opts.output), zap.Int("endpoints", len(base)))

	if opts.overrides == "" {
		return writeJSON(map[string]any{"generated": opts.output, "endpoints": len(base)})
	}
	cat, err := catalog.NewLoader(logger).Load(ctx, opts.output, opts.overrides)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(opts.overrides)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	overrides, err := catalog.DecodeTable(data, "overrides")
	if err != nil {
		return err
	}
	merged := catalog.MergeOverrides(base, overrides)
	if err := catalog.WriteTable(opts.mergedOutput, merged); err != nil {
		return err
	}
	return writeJSON(map[string]any{
		"generated":  opts.output,
		"merged":     opts.mergedOutput,
		"endpoints":  cat.Len(),
		"categories": cat.Categories(),
	})
}
