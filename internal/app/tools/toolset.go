// Package tools exposes the gateway and the scoring engine as model-callable
// tools bound to one as-of cutoff.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/gateway"
	"nhlagent/internal/infra/normalize"
	"nhlagent/internal/infra/scoring"
)

// Gateway is the data access surface the tools need.
type Gateway interface {
	scoring.Source
	ListEndpoints(category string) gateway.EndpointListing
}

// Options tunes a Toolset.
type Options struct {
	GameType    string
	DefaultTopN int
	Logger      *zap.Logger
}

// Toolset binds every tool to one gateway, and therefore to one cutoff.
type Toolset struct {
	gateway     Gateway
	engine      *scoring.Engine
	gameType    string
	defaultTopN int
	logger      *zap.Logger
}

func New(gw Gateway, engine *scoring.Engine, opts Options) *Toolset {
	gameType := opts.GameType
	if gameType == "" {
		gameType = domain.DefaultGameType
	}
	topN := opts.DefaultTopN
	if topN <= 0 {
		topN = domain.DefaultTopN
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolset{
		gateway:     gw,
		engine:      engine,
		gameType:    gameType,
		defaultTopN: topN,
		logger:      logger.Named("tools"),
	}
}

// Cutoff reports the as-of date the tools enforce.
func (t *Toolset) Cutoff() domain.Cutoff {
	return t.gateway.Cutoff()
}

// Specs lists the tool surface in a stable order.
func (t *Toolset) Specs() []domain.ToolSpec {
	return []domain.ToolSpec{
		{
			Name:        "list_endpoints",
			Description: "List the allow-listed NHL API endpoints, optionally for one category. Use this before call_endpoint.",
			Parameters:  listEndpointsSchema(),
			Handler:     t.listEndpoints,
		},
		{
			Name: "call_endpoint",
			Description: "Call one allow-listed NHL API endpoint by its path template. " +
				"Requests and responses are limited to data on or before the as-of date.",
			Parameters: callEndpointSchema(),
			Handler:    t.callEndpoint,
		},
		{
			Name:        "score_player_window",
			Description: "Compute one player's fantasy points for games between start and end, inclusive.",
			Parameters:  scorePlayerSchema(),
			Handler:     t.scorePlayerWindow,
		},
		{
			Name:        "rank_players_window",
			Description: "Score each candidate player over a window and return the top_n by fantasy points.",
			Parameters:  rankPlayersSchema(),
			Handler:     t.rankPlayersWindow,
		},
		{
			Name: "rank_all_players_from_games",
			Description: "Rank every player who appeared in a game between start and end by aggregating box scores. " +
				"Use when no candidate list is known.",
			Parameters: rankAllSchema(),
			Handler:    t.rankAllPlayersFromGames,
		},
		{
			Name:        "get_player_game_logs",
			Description: "Fetch a player's per-game stat lines for a date range.",
			Parameters:  gameLogsSchema(),
			Handler:     t.playerGameLogs,
		},
		{
			Name:        "get_team_schedule",
			Description: "Fetch a team's games for a date range with opponent and home/away.",
			Parameters:  teamScheduleSchema(),
			Handler:     t.teamSchedule,
		},
	}
}

func (t *Toolset) listEndpoints(_ context.Context, raw map[string]any) (any, error) {
	a := newArgs("list_endpoints", raw)
	category := a.OptionalString("category")
	if err := a.Err(); err != nil {
		return nil, err
	}
	return t.gateway.ListEndpoints(category), nil
}

func (t *Toolset) callEndpoint(ctx context.Context, raw map[string]any) (any, error) {
	a := newArgs("call_endpoint", raw)
	base := a.String("base")
	template := a.String("path_template")
	pathParams := a.OptionalObject("path_params")
	queryParams := a.OptionalObject("query_params")
	if err := a.Err(); err != nil {
		return nil, err
	}
	return t.gateway.Call(ctx, base, template, pathParams, queryParams)
}

func (t *Toolset) scorePlayerWindow(ctx context.Context, raw map[string]any) (any, error) {
	a := newArgs("score_player_window", raw)
	playerID := a.Int("player_id")
	start := a.String("start")
	end := a.String("end")
	if err := a.Err(); err != nil {
		return nil, err
	}
	rules, err := scoring.ParseRulesValue(raw["scoring"])
	if err != nil {
		return nil, err
	}
	return t.engine.ScorePlayerWindow(ctx, playerID, start, end, rules)
}

func (t *Toolset) rankPlayersWindow(ctx context.Context, raw map[string]any) (any, error) {
	a := newArgs("rank_players_window", raw)
	ids := a.IntList("player_ids")
	start := a.String("start")
	end := a.String("end")
	topN, _ := a.OptionalInt("top_n", t.defaultTopN)
	if err := a.Err(); err != nil {
		return nil, err
	}
	rules, err := scoring.ParseRulesValue(raw["scoring"])
	if err != nil {
		return nil, err
	}
	return t.engine.RankPlayersWindow(ctx, ids, start, end, rules, topN)
}

func (t *Toolset) rankAllPlayersFromGames(ctx context.Context, raw map[string]any) (any, error) {
	a := newArgs("rank_all_players_from_games", raw)
	start := a.String("start")
	end := a.String("end")
	topN, _ := a.OptionalInt("top_n", t.defaultTopN)
	minTOI := a.OptionalFloat("min_time_played", 0)
	if err := a.Err(); err != nil {
		return nil, err
	}
	if minTOI < 0 {
		return nil, domain.E(domain.CodeInvalidArgument, "tool.rank_all_players_from_games", "min_time_played must not be negative", nil)
	}
	rules, err := scoring.ParseRulesValue(raw["scoring"])
	if err != nil {
		return nil, err
	}
	return t.engine.RankAllPlayersFromGames(ctx, start, end, rules, topN, minTOI)
}

// GameLog is one row of get_player_game_logs.
type GameLog struct {
	Date    string  `json:"date"`
	GameID  int     `json:"game_id,omitempty"`
	Team    string  `json:"team,omitempty"`
	Goals   float64 `json:"goals"`
	Assists float64 `json:"assists"`
	Points  float64 `json:"points"`
	Shots   float64 `json:"shots"`
	TOI     string  `json:"toi,omitempty"`
}

// PlayerGameLogs is the get_player_game_logs result.
type PlayerGameLogs struct {
	PlayerID int       `json:"player_id"`
	Season   string    `json:"season"`
	Start    string    `json:"start_date"`
	End      string    `json:"end_date"`
	Games    []GameLog `json:"games"`
}

func (t *Toolset) playerGameLogs(ctx context.Context, raw map[string]any) (any, error) {
	const op = "tool.get_player_game_logs"
	a := newArgs("get_player_game_logs", raw)
	playerID := a.Int("player_id")
	rawStart := a.String("start_date")
	rawEnd := a.String("end_date")
	if err := a.Err(); err != nil {
		return nil, err
	}
	start, end, err := t.dateRange(op, rawStart, rawEnd, true)
	if err != nil {
		return nil, err
	}

	season := normalize.SeasonID(end)
	result, err := t.gateway.Call(ctx, string(domain.BasePrimary), domain.PathPlayerGameLog, map[string]any{
		"player":    playerID,
		"season":    season,
		"game_type": t.gameType,
	}, nil)
	if err != nil {
		return nil, err
	}

	out := &PlayerGameLogs{PlayerID: playerID, Season: season, Start: rawStart, End: rawEnd, Games: []GameLog{}}
	for _, row := range records(result.Payload, "gameLog", "games") {
		if stat, ok := row["stat"].(map[string]any); ok {
			row = merge(row, stat)
		}
		day := normalize.DateOnly(text(row, "gameDate", "date"))
		date, err := domain.ParseDate(day)
		if err != nil || date.Before(start) || date.After(end) {
			continue
		}
		line := normalize.StatLine(row)
		gameID, _ := firstInt(row, "gameId", "gamePk", "id")
		out.Games = append(out.Games, GameLog{
			Date:    day,
			GameID:  gameID,
			Team:    normalize.TeamAbbrev(text(row, "teamAbbrev")),
			Goals:   line[domain.StatGoals],
			Assists: line[domain.StatAssists],
			Points:  line[domain.StatPoints],
			Shots:   line[domain.StatShots],
			TOI:     text(row, "toi", "timeOnIce"),
		})
	}
	sort.SliceStable(out.Games, func(i, j int) bool { return out.Games[i].Date < out.Games[j].Date })
	return out, nil
}

// ScheduledGame is one row of get_team_schedule.
type ScheduledGame struct {
	Date     string `json:"date"`
	Opponent string `json:"opponent,omitempty"`
	HomeAway string `json:"home_away"`
	GameID   int    `json:"game_id,omitempty"`
}

// TeamSchedule is the get_team_schedule result.
type TeamSchedule struct {
	Team   string          `json:"team"`
	Season string          `json:"season"`
	Start  string          `json:"start_date"`
	End    string          `json:"end_date"`
	Games  []ScheduledGame `json:"games"`
}

func (t *Toolset) teamSchedule(ctx context.Context, raw map[string]any) (any, error) {
	const op = "tool.get_team_schedule"
	a := newArgs("get_team_schedule", raw)
	team := normalize.TeamAbbrev(a.String("team_abbrev"))
	rawStart := a.String("start_date")
	rawEnd := a.String("end_date")
	if err := a.Err(); err != nil {
		return nil, err
	}
	if team == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "team_abbrev is required", nil)
	}
	if id, err := strconv.Atoi(team); err == nil {
		abbrev, err := t.teamAbbrevForID(ctx, id)
		if err != nil {
			return nil, err
		}
		team = abbrev
	}
	start, end, err := t.dateRange(op, rawStart, rawEnd, false)
	if err != nil {
		return nil, err
	}

	season := normalize.SeasonID(start)
	result, err := t.gateway.Call(ctx, string(domain.BasePrimary), domain.PathClubSchedule, map[string]any{
		"team":   team,
		"season": season,
	}, nil)
	if err != nil {
		return nil, err
	}

	out := &TeamSchedule{Team: team, Season: season, Start: rawStart, End: rawEnd, Games: []ScheduledGame{}}
	for _, game := range records(result.Payload, "games") {
		day := normalize.DateOnly(text(game, "gameDate", "date"))
		date, err := domain.ParseDate(day)
		if err != nil || date.Before(start) || date.After(end) {
			continue
		}
		home := teamOf(game, "homeTeam")
		away := teamOf(game, "awayTeam")
		row := ScheduledGame{Date: day, HomeAway: "away", Opponent: home}
		if home == team {
			row.HomeAway = "home"
			row.Opponent = away
		}
		row.GameID, _ = firstInt(game, "id", "gameId", "gamePk")
		out.Games = append(out.Games, row)
	}
	sort.SliceStable(out.Games, func(i, j int) bool { return out.Games[i].Date < out.Games[j].Date })
	return out, nil
}

// teamAbbrevForID maps a numeric team id to its abbreviation using the
// stats team listing.
func (t *Toolset) teamAbbrevForID(ctx context.Context, id int) (string, error) {
	result, err := t.gateway.Call(ctx, string(domain.BaseStats), domain.PathStatsTeams, map[string]any{"lang": "en"}, nil)
	if err != nil {
		return "", err
	}
	for abbrev, teamID := range normalize.TeamIDMap(result.Payload) {
		if teamID == id {
			return abbrev, nil
		}
	}
	return "", domain.E(domain.CodeInvalidArgument, "tool.get_team_schedule", fmt.Sprintf("unknown team id %d", id), nil)
}

// dateRange validates a window. When bounded, the end may not pass the
// cutoff; schedules are exempt since fixtures are published in advance.
func (t *Toolset) dateRange(op, rawStart, rawEnd string, bounded bool) (time.Time, time.Time, error) {
	start, err := domain.ParseDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, domain.E(domain.CodeInvalidDateRange, op, fmt.Sprintf("start_date %q is not a YYYY-MM-DD date", rawStart), err)
	}
	end, err := domain.ParseDate(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, domain.E(domain.CodeInvalidDateRange, op, fmt.Sprintf("end_date %q is not a YYYY-MM-DD date", rawEnd), err)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, domain.E(domain.CodeInvalidDateRange, op, fmt.Sprintf("start_date %s is after end_date %s", rawStart, rawEnd), nil)
	}
	if cutoff := t.gateway.Cutoff(); bounded && cutoff.After(end) {
		return time.Time{}, time.Time{}, domain.E(domain.CodeTemporalViolation, op,
			fmt.Sprintf("end_date %s is after the as-of date %s", rawEnd, cutoff), nil).
			WithMeta("as_of", cutoff.String()).
			WithMeta("param", "end_date")
	}
	return start, end, nil
}

func records(payload any, keys ...string) []map[string]any {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range keys {
		rows, ok := root[key].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			if record, ok := row.(map[string]any); ok {
				out = append(out, record)
			}
		}
		return out
	}
	return nil
}

func merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range overlay {
		out[key] = value
	}
	return out
}

func text(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := normalize.LocalizedName(record[key]); value != "" {
			return value
		}
	}
	return ""
}

func firstInt(record map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if value, ok := integral(record[key]); ok && value != 0 {
			return value, true
		}
	}
	return 0, false
}

func teamOf(game map[string]any, side string) string {
	info, ok := game[side].(map[string]any)
	if !ok {
		return ""
	}
	return normalize.TeamAbbrev(text(info, "abbrev", "abbreviation", "triCode"))
}
