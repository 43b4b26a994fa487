package main

import (
	"context"

	"github.com/spf13/cobra"

	"nhlagent/internal/app"
)

func newServeCmd(root *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the NHL tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, application *app.Application) error {
				if err := application.Serve(ctx, nil, versionString()); err != nil && ctx.Err() == nil {
					return exitDomain(err)
				}
				return nil
			})
		},
	}
}

func newValidateCmd(root *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and the endpoint catalog without network calls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := app.Validate(cmd.Context(), root.configPath, root.logger)
			if err != nil {
				return exitDomain(err)
			}
			return writeJSON(summary)
		},
	}
}
