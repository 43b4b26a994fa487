package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nhlagent/internal/app"
	"nhlagent/internal/app/evaluate"
	"nhlagent/internal/domain"
	"nhlagent/internal/infra/scoring"
)

type evaluateOptions struct {
	predictionFiles []string
	start           string
	end             string
	playerIDs       string
	playerIDsFile   string
	scoringJSON     string
	scoringFile     string
	topN            int
	minTimePlayed   float64
	asOf            string
	output          string
}

func newEvaluateCmd(root *cliOptions) *cobra.Command {
	opts := evaluateOptions{topN: evaluate.DefaultTopN}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score saved predictions against the actual fantasy results of a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := opts.requests()
			if err != nil {
				return exitDomain(err)
			}

			return root.run(cmd, func(ctx context.Context, application *app.Application) error {
				evaluator := application.Evaluator()
				if len(reqs) == 1 {
					report, err := evaluator.Evaluate(ctx, reqs[0])
					if err != nil {
						return exitDomain(err)
					}
					return writeOutput(opts.output, report)
				}
				reports, err := evaluator.Batch(ctx, reqs, root.cfg.Evaluate.Concurrency)
				if err != nil {
					return exitDomain(err)
				}
				return writeOutput(opts.output, reports)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.predictionFiles, "prediction-file", nil, "agent result JSON (repeatable)")
	cmd.Flags().StringVar(&opts.start, "start", "", "window start YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.end, "end", "", "window end YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.playerIDs, "player-ids", "", "comma-separated candidate player ids")
	cmd.Flags().StringVar(&opts.playerIDsFile, "player-ids-file", "", "JSON file with a list of candidate player ids")
	cmd.Flags().StringVar(&opts.scoringJSON, "scoring-json", "", "scoring weights as a JSON object")
	cmd.Flags().StringVar(&opts.scoringFile, "scoring-file", "", "scoring weights file (json, yaml or toml)")
	cmd.Flags().IntVar(&opts.topN, "top-n", opts.topN, "ground-truth rows to include")
	cmd.Flags().Float64Var(&opts.minTimePlayed, "min-time-played", 0, "minimum time on ice in minutes for the games fallback")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "restrict data to on/before YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.output, "output", "", "write the report JSON to this path")
	_ = cmd.MarkFlagRequired("prediction-file")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	cmd.MarkFlagsMutuallyExclusive("scoring-json", "scoring-file")
	cmd.MarkFlagsMutuallyExclusive("player-ids", "player-ids-file")

	return cmd
}

func (o evaluateOptions) requests() ([]evaluate.Request, error) {
	const op = "cli.evaluate"

	cutoff, err := domain.ParseCutoff(o.asOf)
	if err != nil {
		return nil, err
	}
	rules, err := o.rules()
	if err != nil {
		return nil, err
	}
	ids, err := o.candidateIDs()
	if err != nil {
		return nil, err
	}
	if o.minTimePlayed < 0 {
		return nil, domain.E(domain.CodeInvalidArgument, op, "--min-time-played must be >= 0", nil)
	}

	reqs := make([]evaluate.Request, 0, len(o.predictionFiles))
	for _, path := range o.predictionFiles {
		prediction, err := evaluate.LoadPrediction(path)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, evaluate.Request{
			PredictionFile: path,
			Prediction:     prediction,
			Start:          o.start,
			End:            o.end,
			PlayerIDs:      ids,
			Scoring:        rules,
			TopN:           o.topN,
			MinTimePlayed:  o.minTimePlayed,
			AsOf:           cutoff,
		})
	}
	return reqs, nil
}

func (o evaluateOptions) rules() (domain.ScoringRules, error) {
	switch {
	case o.scoringFile != "":
		return scoring.LoadRulesFile(o.scoringFile)
	case o.scoringJSON != "":
		var raw any
		if err := json.Unmarshal([]byte(o.scoringJSON), &raw); err != nil {
			return nil, domain.E(domain.CodeInvalidScoringRules, "cli.evaluate", "--scoring-json is not valid JSON", err)
		}
		return scoring.ParseRulesValue(raw)
	default:
		return scoring.DefaultRules(), nil
	}
}

func (o evaluateOptions) candidateIDs() ([]int, error) {
	if o.playerIDsFile != "" {
		return readPlayerIDsFile(o.playerIDsFile)
	}
	return parsePlayerIDs(o.playerIDs)
}

func parsePlayerIDs(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, domain.E(domain.CodeInvalidArgument, "cli.evaluate", fmt.Sprintf("invalid player id %q", part), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readPlayerIDsFile accepts a bare JSON list or an object holding the list
// under player_ids.
func readPlayerIDsFile(path string) ([]int, error) {
	const op = "cli.evaluate"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "read player ids file", err)
	}
	var ids []int
	if err := json.Unmarshal(data, &ids); err == nil {
		return validIDs(ids)
	}
	var wrapped struct {
		PlayerIDs []int `json:"player_ids"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "player ids file must hold a JSON list of integers", err)
	}
	return validIDs(wrapped.PlayerIDs)
}

func validIDs(ids []int) ([]int, error) {
	for _, id := range ids {
		if id <= 0 {
			return nil, domain.E(domain.CodeInvalidArgument, "cli.evaluate", fmt.Sprintf("invalid player id %d", id), nil)
		}
	}
	return ids, nil
}
