// Package evaluate scores an agent's prediction against ground truth derived
// by the scoring engine for the same window.
package evaluate

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nhlagent/internal/domain"
)

// DefaultTopN is how many ground-truth rows a report carries.
const DefaultTopN = 5

// Ground-truth sources.
const (
	SourceCandidates = "candidates"
	SourceGames      = "games"
)

// Ranker computes the ground-truth ranking.
type Ranker interface {
	RankPlayersWindow(ctx context.Context, playerIDs []int, start, end string, rules domain.ScoringRules, topN int) (*domain.Ranking, error)
	RankAllPlayersFromGames(ctx context.Context, start, end string, rules domain.ScoringRules, topN int, minTimePlayed float64) (*domain.Ranking, error)
}

// RankerFactory builds a ranker bound to one cutoff. Each request gets its
// own ranker.
type RankerFactory func(cutoff domain.Cutoff) (Ranker, error)

// Request is one prediction to evaluate.
type Request struct {
	// PredictionFile labels the report; it is not read by Evaluate.
	PredictionFile string
	Prediction     any
	Start          string
	End            string
	// PlayerIDs overrides the candidate pool named by the prediction.
	PlayerIDs     []int
	Scoring       domain.ScoringRules
	TopN          int
	MinTimePlayed float64
	AsOf          domain.Cutoff
}

// Report compares a prediction with ground truth.
type Report struct {
	PredictionFile string              `json:"prediction_file,omitempty"`
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	Scoring        domain.ScoringRules `json:"scoring,omitempty"`
	CandidateCount int                 `json:"candidate_count"`
	Prediction     Prediction          `json:"prediction"`
	GroundTruth    GroundTruth         `json:"ground_truth"`
	Evaluation     Evaluation          `json:"evaluation"`
	Window         domain.Window       `json:"window"`
	Source         string              `json:"source,omitempty"`
	Error          map[string]any      `json:"error,omitempty"`
}

// Prediction is what the agent picked and how it scored.
type Prediction struct {
	PlayerID      *int           `json:"player_id"`
	Decision      map[string]any `json:"decision"`
	FantasyPoints *float64       `json:"fantasy_points"`
	Rank          *int           `json:"rank"`
}

// GroundTruth is the best player and the leading rows of the ranking.
type GroundTruth struct {
	BestPlayerID      *int                      `json:"best_player_id"`
	BestFantasyPoints *float64                  `json:"best_fantasy_points"`
	TopN              []domain.PlayerWeekResult `json:"top_n"`
}

// Evaluation is the verdict.
type Evaluation struct {
	CorrectBest    bool `json:"correct_best"`
	PredictionRank *int `json:"prediction_rank"`
}

// Options tunes an Evaluator.
type Options struct {
	// Concurrency bounds Batch.
	Concurrency int
	Logger      *zap.Logger
}

// Evaluator builds reports.
type Evaluator struct {
	newRanker   RankerFactory
	concurrency int
	logger      *zap.Logger
}

func New(factory RankerFactory, opts Options) *Evaluator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultEvaluateConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		newRanker:   factory,
		concurrency: concurrency,
		logger:      logger.Named("evaluate"),
	}
}

// Evaluate derives ground truth for req and places the prediction in it.
// With a candidate pool the candidates are ranked; without one every
// player appearing in the window's games is ranked.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()
	ranker, err := e.newRanker(req.AsOf)
	if err != nil {
		return nil, err
	}

	decision := Decision(req.Prediction)
	predicted, hasPrediction := PredictedPlayer(decision)
	candidates := dedupe(req.PlayerIDs)
	if len(candidates) == 0 {
		candidates = CandidateIDs(decision)
	}
	topN := req.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	var (
		ranking *domain.Ranking
		source  string
	)
	if len(candidates) > 0 {
		source = SourceCandidates
		ranking, err = ranker.RankPlayersWindow(ctx, candidates, req.Start, req.End, req.Scoring, len(candidates))
	} else {
		source = SourceGames
		ranking, err = ranker.RankAllPlayersFromGames(ctx, req.Start, req.End, req.Scoring, math.MaxInt32, req.MinTimePlayed)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{
		PredictionFile: req.PredictionFile,
		StartDate:      req.Start,
		EndDate:        req.End,
		Scoring:        ranking.Scoring,
		CandidateCount: ranking.RankedCount,
		Prediction:     Prediction{Decision: decision},
		Window:         ranking.Window,
		Source:         source,
	}
	if report.CandidateCount == 0 {
		report.CandidateCount = len(candidates)
	}
	if hasPrediction {
		report.Prediction.PlayerID = &predicted
		for i, result := range ranking.Results {
			if result.PlayerID != predicted {
				continue
			}
			rank := i + 1
			points := result.FantasyPoints
			report.Prediction.Rank = &rank
			report.Prediction.FantasyPoints = &points
			report.Evaluation.PredictionRank = &rank
			break
		}
	}

	report.GroundTruth.TopN = ranking.Results[:min(topN, len(ranking.Results))]
	if len(ranking.Results) > 0 {
		best := ranking.Results[0]
		report.GroundTruth.BestPlayerID = &best.PlayerID
		report.GroundTruth.BestFantasyPoints = &best.FantasyPoints
		report.Evaluation.CorrectBest = hasPrediction && best.PlayerID == predicted
	}

	e.logger.Info("prediction evaluated",
		zap.String("prediction_file", req.PredictionFile),
		zap.String("source", source),
		zap.Int("candidates", report.CandidateCount),
		zap.Bool("correct_best", report.Evaluation.CorrectBest),
		zap.Duration("duration", time.Since(started)),
	)
	return report, nil
}

// Batch evaluates requests with bounded parallelism. limit <= 0 uses the
// evaluator's concurrency. A request that fails yields a report carrying the
// error; only cancellation fails the batch.
func (e *Evaluator) Batch(ctx context.Context, reqs []Request, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = e.concurrency
	}
	reports := make([]*Report, len(reqs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, req := range reqs {
		group.Go(func() error {
			report, err := e.Evaluate(groupCtx, req)
			if err == nil {
				reports[i] = report
				return nil
			}
			if ctxErr := groupCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.logger.Warn("prediction evaluation failed",
				zap.String("prediction_file", req.PredictionFile),
				zap.Error(err),
			)
			reports[i] = failedReport(req, err)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func failedReport(req Request, err error) *Report {
	payload := domain.Wrap(domain.CodeTransportFailure, "evaluate", err).ToolPayload()
	return &Report{
		PredictionFile: req.PredictionFile,
		StartDate:      req.Start,
		EndDate:        req.End,
		Prediction:     Prediction{Decision: Decision(req.Prediction)},
		Window:         domain.Window{Start: req.Start, End: req.End},
		Error:          payload,
	}
}
