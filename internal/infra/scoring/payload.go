package scoring

import (
	"strconv"
	"time"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

type accumulator struct {
	playerID int
	name     string
	team     string
	games    int
	totals   map[string]float64
}

func newAccumulator(playerID int) *accumulator {
	return &accumulator{playerID: playerID, totals: make(map[string]float64)}
}

func (a *accumulator) add(record map[string]any, team string) {
	for stat, value := range normalize.StatLine(record) {
		a.totals[stat] += value
	}
	a.games++
	if team != "" {
		a.team = normalize.TeamAbbrev(team)
	}
	if name := normalize.PlayerName(record); name != "" {
		a.name = name
	}
}

func (a *accumulator) result(view domain.Window, rules domain.ScoringRules) *domain.PlayerWeekResult {
	totals := make(map[string]float64, len(rules))
	for stat := range rules {
		totals[stat] = round3(a.totals[stat])
	}
	return &domain.PlayerWeekResult{
		PlayerID:      a.playerID,
		Name:          a.name,
		Team:          a.team,
		Window:        view,
		GamesPlayed:   a.games,
		FantasyPoints: round3(Points(a.totals, rules)),
		StatTotals:    totals,
		ScoringUsed:   rules.Clone(),
	}
}

// gameLogRecords flattens game-log rows. Older payloads nest the stat line
// under "stat".
func gameLogRecords(payload any) []map[string]any {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := root["gameLog"].([]any)
	if !ok {
		rows, _ = root["games"].([]any)
	}
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		if stat, ok := record["stat"].(map[string]any); ok {
			merged := make(map[string]any, len(record)+len(stat))
			for key, value := range record {
				merged[key] = value
			}
			for key, value := range stat {
				merged[key] = value
			}
			record = merged
		}
		records = append(records, record)
	}
	return records
}

type scheduleEntry struct {
	id   string
	date time.Time
	raw  map[string]any
}

// scheduleGames reads games from schedule/{date} weeks or from a flat
// "games" list such as a club schedule.
func scheduleGames(payload any) []scheduleEntry {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	var out []scheduleEntry
	collect := func(games []any, dayDate string) {
		for _, item := range games {
			game, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, ok := gameID(game)
			if !ok {
				continue
			}
			raw := stringField(game, "gameDate", "date", "startTimeUTC")
			if raw == "" {
				raw = dayDate
			}
			date, err := domain.ParseDate(normalize.DateOnly(raw))
			if err != nil {
				continue
			}
			out = append(out, scheduleEntry{id: id, date: date, raw: game})
		}
	}
	if weeks, ok := root["gameWeek"].([]any); ok {
		for _, item := range weeks {
			day, ok := item.(map[string]any)
			if !ok {
				continue
			}
			games, _ := day["games"].([]any)
			collect(games, stringField(day, "date"))
		}
	}
	if games, ok := root["games"].([]any); ok {
		collect(games, "")
	}
	return out
}

func gameID(game map[string]any) (string, bool) {
	for _, key := range []string{"id", "gameId", "gamePk"} {
		if id, ok := normalize.Number(game[key]); ok && id > 0 {
			return strconv.FormatInt(int64(id), 10), true
		}
	}
	return "", false
}

type boxLine struct {
	playerID int
	team     string
	record   map[string]any
}

var boxGroups = []string{"forwards", "defense", "goalies"}

// boxScoreLines lists every skater and goalie line in a box score.
func boxScoreLines(box map[string]any) []boxLine {
	stats, ok := box["playerByGameStats"].(map[string]any)
	if !ok {
		return nil
	}
	var lines []boxLine
	for _, side := range []string{"awayTeam", "homeTeam"} {
		team := ""
		if info, ok := box[side].(map[string]any); ok {
			team = stringField(info, "abbrev", "triCode")
		}
		groups, ok := stats[side].(map[string]any)
		if !ok {
			continue
		}
		for _, group := range boxGroups {
			rows, _ := groups[group].([]any)
			for _, row := range rows {
				record, ok := row.(map[string]any)
				if !ok {
					continue
				}
				id, ok := normalize.Number(record["playerId"])
				if !ok {
					continue
				}
				lines = append(lines, boxLine{playerID: int(id), team: team, record: record})
			}
		}
	}
	return lines
}

func stringField(record map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := record[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if name := normalize.LocalizedName(v); name != "" {
				return name
			}
		}
	}
	return ""
}
