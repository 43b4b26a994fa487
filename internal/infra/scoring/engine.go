package scoring

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/gateway"
	"nhlagent/internal/infra/normalize"
)

const scheduleStep = 7 * 24 * time.Hour

// Source is the gateway surface the engine reads through.
type Source interface {
	Call(ctx context.Context, base, pathTemplate string, pathParams, queryParams map[string]any) (*gateway.CallResult, error)
	Cutoff() domain.Cutoff
}

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	GameType string
	// Concurrency bounds parallel box-score reads.
	Concurrency int
	Logger      *zap.Logger
}

// Engine scores and ranks players. All data access goes through Source, so
// the catalog and the as-of cutoff apply to every read.
type Engine struct {
	source      Source
	gameType    string
	concurrency int
	logger      *zap.Logger
}

func NewEngine(source Source, opts Options) *Engine {
	gameType := opts.GameType
	if gameType == "" {
		gameType = domain.DefaultGameType
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultEvaluateConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source:      source,
		gameType:    gameType,
		concurrency: concurrency,
		logger:      logger.Named("scoring"),
	}
}

type window struct {
	start time.Time
	end   time.Time
	view  domain.Window
}

func (w window) contains(date time.Time) bool {
	return !date.Before(w.start) && !date.After(w.end)
}

func (e *Engine) validateWindow(op, rawStart, rawEnd string) (window, error) {
	start, err := domain.ParseDate(rawStart)
	if err != nil {
		return window{}, domain.E(domain.CodeInvalidDateRange, op, fmt.Sprintf("start %q is not a YYYY-MM-DD date", rawStart), err)
	}
	end, err := domain.ParseDate(rawEnd)
	if err != nil {
		return window{}, domain.E(domain.CodeInvalidDateRange, op, fmt.Sprintf("end %q is not a YYYY-MM-DD date", rawEnd), err)
	}
	if start.After(end) {
		return window{}, domain.E(domain.CodeInvalidDateRange, op,
			fmt.Sprintf("start %s is after end %s", start.Format(domain.DateLayout), end.Format(domain.DateLayout)), nil)
	}
	cutoff := e.source.Cutoff()
	if cutoff.After(end) {
		return window{}, domain.E(domain.CodeTemporalViolation, op,
			fmt.Sprintf("window end %s is after the as-of date %s", end.Format(domain.DateLayout), cutoff), nil).
			WithMeta("as_of", cutoff.String()).
			WithMeta("param", "end")
	}
	return window{
		start: start,
		end:   end,
		view:  domain.Window{Start: start.Format(domain.DateLayout), End: end.Format(domain.DateLayout)},
	}, nil
}

// ScorePlayerWindow totals one player's fantasy points for games played
// within [start, end].
func (e *Engine) ScorePlayerWindow(ctx context.Context, playerID int, start, end string, rules domain.ScoringRules) (*domain.PlayerWeekResult, error) {
	const op = "scoring.score_player_window"
	win, err := e.validateWindow(op, start, end)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return e.scorePlayer(ctx, playerID, win, rules)
}

func (e *Engine) scorePlayer(ctx context.Context, playerID int, win window, rules domain.ScoringRules) (*domain.PlayerWeekResult, error) {
	seasons := []string{normalize.SeasonID(win.end)}
	if first := normalize.SeasonID(win.start); first != seasons[0] {
		seasons = append([]string{first}, seasons...)
	}

	acc := newAccumulator(playerID)
	for _, season := range seasons {
		result, err := e.source.Call(ctx, string(domain.BasePrimary), domain.PathPlayerGameLog, map[string]any{
			"player":    playerID,
			"season":    season,
			"game_type": e.gameType,
		}, nil)
		if err != nil {
			return nil, err
		}
		for _, record := range gameLogRecords(result.Payload) {
			date, err := domain.ParseDate(normalize.DateOnly(stringField(record, "gameDate", "date")))
			if err != nil || !win.contains(date) {
				continue
			}
			acc.add(record, stringField(record, "teamAbbrev"))
		}
	}
	return acc.result(win.view, rules), nil
}

// RankPlayersWindow scores each player and returns the top max(1, topN) by
// fantasy points. Players whose scoring fails are reported in Failures.
func (e *Engine) RankPlayersWindow(ctx context.Context, playerIDs []int, start, end string, rules domain.ScoringRules, topN int) (*domain.Ranking, error) {
	const op = "scoring.rank_players_window"
	win, err := e.validateWindow(op, start, end)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = DefaultRules()
	}

	results := make([]domain.PlayerWeekResult, 0, len(playerIDs))
	var failures []domain.PlayerFailure
	for _, id := range playerIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := e.scorePlayer(ctx, id, win, rules)
		if err != nil {
			code, _ := domain.CodeFrom(err)
			failures = append(failures, domain.PlayerFailure{PlayerID: id, Error: code, Message: err.Error()})
			e.logger.Debug("player scoring failed", zap.Int("player_id", id), zap.Error(err))
			continue
		}
		results = append(results, *result)
	}
	ranking := rank(win.view, rules, results, topN)
	ranking.Failures = failures
	return ranking, nil
}

// RankAllPlayersFromGames discovers every game in the window from the
// schedule, aggregates box scores per player and ranks them. minTimePlayed
// is a per-game time-on-ice floor in minutes.
func (e *Engine) RankAllPlayersFromGames(ctx context.Context, start, end string, rules domain.ScoringRules, topN int, minTimePlayed float64) (*domain.Ranking, error) {
	const op = "scoring.rank_all_players_from_games"
	win, err := e.validateWindow(op, start, end)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = DefaultRules()
	}

	games, err := e.scheduledGames(ctx, win)
	if err != nil {
		return nil, err
	}
	boxes, err := e.boxScores(ctx, games)
	if err != nil {
		return nil, err
	}

	minSeconds := int(minTimePlayed * 60)
	players := make(map[int]*accumulator)
	var order []int
	for _, box := range boxes {
		for _, line := range boxScoreLines(box) {
			if minSeconds > 0 && normalize.ParseTOI(stringField(line.record, "toi")) < minSeconds {
				continue
			}
			acc, ok := players[line.playerID]
			if !ok {
				acc = newAccumulator(line.playerID)
				players[line.playerID] = acc
				order = append(order, line.playerID)
			}
			acc.add(line.record, line.team)
		}
	}

	results := make([]domain.PlayerWeekResult, 0, len(order))
	for _, id := range order {
		results = append(results, *players[id].result(win.view, rules))
	}
	ranking := rank(win.view, rules, results, topN)
	gameCount := len(games)
	playerCount := len(order)
	ranking.GameCount = &gameCount
	ranking.PlayerCount = &playerCount
	return ranking, nil
}

type scheduledGame struct {
	id   string
	date time.Time
}

func (e *Engine) scheduledGames(ctx context.Context, win window) ([]scheduledGame, error) {
	seen := make(map[string]struct{})
	var games []scheduledGame
	for day := win.start; !day.After(win.end); day = day.Add(scheduleStep) {
		result, err := e.source.Call(ctx, string(domain.BasePrimary), domain.PathScheduleDate,
			map[string]any{"date": day.Format(domain.DateLayout)}, nil)
		if err != nil {
			return nil, err
		}
		for _, game := range scheduleGames(result.Payload) {
			if !win.contains(game.date) {
				continue
			}
			if _, dup := seen[game.id]; dup {
				continue
			}
			if gameType, ok := normalize.Number(game.raw["gameType"]); ok && strconv.Itoa(int(gameType)) != e.gameType {
				continue
			}
			seen[game.id] = struct{}{}
			games = append(games, scheduledGame{id: game.id, date: game.date})
		}
	}
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].date.Equal(games[j].date) {
			return games[i].id < games[j].id
		}
		return games[i].date.Before(games[j].date)
	})
	return games, nil
}

func (e *Engine) boxScores(ctx context.Context, games []scheduledGame) ([]map[string]any, error) {
	boxes := make([]map[string]any, len(games))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, game := range games {
		group.Go(func() error {
			result, err := e.source.Call(groupCtx, string(domain.BasePrimary), domain.PathBoxScore,
				map[string]any{"game_id": game.id}, nil)
			if err != nil {
				return err
			}
			box, _ := result.Payload.(map[string]any)
			boxes[i] = box
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return boxes, nil
}

func rank(view domain.Window, rules domain.ScoringRules, results []domain.PlayerWeekResult, topN int) *domain.Ranking {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FantasyPoints > results[j].FantasyPoints
	})
	limit := max(1, topN)
	ranked := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return &domain.Ranking{
		Window:      view,
		Scoring:     rules.Clone(),
		TopN:        limit,
		RankedCount: ranked,
		Results:     results,
	}
}
