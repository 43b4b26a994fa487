package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"nhlagent/internal/app"
	"nhlagent/internal/domain"
)

type askOptions struct {
	provider     string
	model        string
	prompt       string
	asOf         string
	maxSteps     int
	maxToolCalls int
	output       string
}

func newAskCmd(root *cliOptions) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run the agent on one question and print its final answer and trace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.AskRequest{
				Question:   strings.Join(args, " "),
				Provider:   opts.provider,
				Model:      opts.model,
				PromptPath: opts.prompt,
				AsOf:       opts.asOf,
				MaxSteps:   opts.maxSteps,
			}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if f.Name == "max-tool-calls" {
					req.MaxToolCalls = &opts.maxToolCalls
				}
			})

			return root.run(cmd, func(ctx context.Context, application *app.Application) error {
				resp, err := application.Ask(ctx, req)
				if err != nil {
					return exitDomain(err)
				}
				if err := writeOutput(opts.output, resp); err != nil {
					return err
				}
				if resp.Status != domain.StatusCompleted {
					return exitSilent(3)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "model provider (openai, anthropic, gemini)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "system prompt file")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "restrict data to on/before YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "maximum model turns")
	cmd.Flags().IntVar(&opts.maxToolCalls, "max-tool-calls", 0, "maximum tool calls (0 disables tools)")
	cmd.Flags().StringVar(&opts.output, "output", "", "write the response JSON to this path")

	return cmd
}
