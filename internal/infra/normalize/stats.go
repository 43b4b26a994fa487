package normalize

import (
	"strconv"
	"strings"

	"nhlagent/internal/domain"
)

var statAliases = map[string]string{
	"g":                 domain.StatGoals,
	"a":                 domain.StatAssists,
	"p":                 domain.StatPoints,
	"pts":               domain.StatPoints,
	"sog":               domain.StatShots,
	"shotsongoal":       domain.StatShots,
	"shots_on_goal":     domain.StatShots,
	"+/-":               domain.StatPlusMinus,
	"plusminus":         domain.StatPlusMinus,
	"penaltyminutes":    domain.StatPIM,
	"penalty_minutes":   domain.StatPIM,
	"ppg":               domain.StatPowerPlayGoals,
	"powerplaygoals":    domain.StatPowerPlayGoals,
	"ppp":               domain.StatPowerPlayPoints,
	"powerplaypoints":   domain.StatPowerPlayPoints,
	"shp":               domain.StatShorthandedPoints,
	"shorthandedpoints": domain.StatShorthandedPoints,
	"gwg":               domain.StatGameWinningGoals,
	"gamewinninggoals":  domain.StatGameWinningGoals,
	"blk":               domain.StatBlockedShots,
	"blocks":            domain.StatBlockedShots,
	"blockedshots":      domain.StatBlockedShots,
	"w":                 domain.StatWins,
	"sv":                domain.StatSaves,
	"ga":                domain.StatGoalsAgainst,
	"goalsagainst":      domain.StatGoalsAgainst,
	"so":                domain.StatShutouts,
}

var canonicalSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(domain.CanonicalStats))
	for _, stat := range domain.CanonicalStats {
		set[stat] = struct{}{}
	}
	return set
}()

// CanonicalStat resolves a stat name or alias.
func CanonicalStat(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := canonicalSet[key]; ok {
		return key, true
	}
	if mapped, ok := statAliases[key]; ok {
		return mapped, true
	}
	return "", false
}

// rawStatFields maps NHL API record fields onto canonical stats.
var rawStatFields = map[string]string{
	"goals":             domain.StatGoals,
	"assists":           domain.StatAssists,
	"points":            domain.StatPoints,
	"shots":             domain.StatShots,
	"sog":               domain.StatShots,
	"plusMinus":         domain.StatPlusMinus,
	"pim":               domain.StatPIM,
	"powerPlayGoals":    domain.StatPowerPlayGoals,
	"powerPlayPoints":   domain.StatPowerPlayPoints,
	"shorthandedPoints": domain.StatShorthandedPoints,
	"gameWinningGoals":  domain.StatGameWinningGoals,
	"hits":              domain.StatHits,
	"blockedShots":      domain.StatBlockedShots,
	"saves":             domain.StatSaves,
	"goalsAgainst":      domain.StatGoalsAgainst,
	"shutouts":          domain.StatShutouts,
	"wins":              domain.StatWins,
}

// StatLine extracts a canonical stat line from a game-log or box-score
// record. Stats the record does not carry are absent from the result.
func StatLine(record map[string]any) map[string]float64 {
	line := make(map[string]float64)
	for field, stat := range rawStatFields {
		if value, ok := Number(record[field]); ok {
			line[stat] = value
		}
	}
	if _, ok := line[domain.StatPoints]; !ok {
		goals, hasGoals := line[domain.StatGoals]
		assists, hasAssists := line[domain.StatAssists]
		if hasGoals || hasAssists {
			line[domain.StatPoints] = goals + assists
		}
	}
	if _, ok := line[domain.StatShorthandedPoints]; !ok {
		goals, hasGoals := Number(record["shorthandedGoals"])
		assists, hasAssists := Number(record["shorthandedAssists"])
		if hasGoals || hasAssists {
			line[domain.StatShorthandedPoints] = goals + assists
		}
	}
	applyGoalieFields(record, line)
	return line
}

func applyGoalieFields(record map[string]any, line map[string]float64) {
	against, hasAgainst := Number(record["goalsAgainst"])
	shots, hasShots := Number(record["shotsAgainst"])
	saves, ratioShots, hasRatio := splitRatio(record["saveShotsAgainst"])
	if !hasShots && hasRatio {
		shots, hasShots = ratioShots, true
	}
	if _, ok := line[domain.StatSaves]; !ok {
		switch {
		case hasRatio:
			line[domain.StatSaves] = saves
		case hasShots:
			line[domain.StatSaves] = shots - against
		}
	}
	decision, _ := record["decision"].(string)
	if decision == "" {
		return
	}
	won := strings.EqualFold(decision, "W")
	if _, ok := line[domain.StatWins]; !ok {
		line[domain.StatWins] = boolStat(won)
	}
	if _, ok := line[domain.StatShutouts]; !ok {
		line[domain.StatShutouts] = boolStat(won && hasAgainst && hasShots && against == 0 && shots > 0)
	}
}

func boolStat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// splitRatio parses "25/27" style strings.
func splitRatio(value any) (float64, float64, bool) {
	raw, ok := value.(string)
	if !ok {
		return 0, 0, false
	}
	left, right, found := strings.Cut(raw, "/")
	if !found {
		return 0, 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return 0, 0, false
	}
	return num, den, true
}
