// Package normalize converts raw NHL API fields into canonical values.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nhlagent/internal/domain"
)

var teamAbbrevOverrides = map[string]string{
	"TB": "TBL",
	"LA": "LAK",
	"NJ": "NJD",
	"SJ": "SJS",
}

// TeamAbbrev returns the three-letter abbreviation the API expects.
func TeamAbbrev(raw string) string {
	abbrev := strings.ToUpper(strings.TrimSpace(raw))
	if mapped, ok := teamAbbrevOverrides[abbrev]; ok {
		return mapped
	}
	return abbrev
}

// TeamIDMap builds abbreviation -> team id from a stats "team" payload.
func TeamIDMap(payload any) map[string]int {
	out := make(map[string]int)
	root, ok := payload.(map[string]any)
	if !ok {
		return out
	}
	rows, _ := root["data"].([]any)
	for _, row := range rows {
		team, ok := row.(map[string]any)
		if !ok {
			continue
		}
		abbrev := firstString(team, "triCode", "abbrev", "teamAbbrev")
		id, ok := Number(team["id"])
		if abbrev == "" || !ok {
			continue
		}
		out[TeamAbbrev(abbrev)] = int(id)
	}
	return out
}

// SeasonID returns the eight-digit season containing date. Seasons roll
// over on July 1.
func SeasonID(date time.Time) string {
	start := date.Year()
	if date.Month() < time.July {
		start--
	}
	return fmt.Sprintf("%d%d", start, start+1)
}

// SeasonBounds returns July 1 of the start year and June 30 of the end year.
func SeasonBounds(seasonID string) (time.Time, time.Time, bool) {
	seasonID = strings.TrimSpace(seasonID)
	if len(seasonID) != 8 {
		return time.Time{}, time.Time{}, false
	}
	start, err := strconv.Atoi(seasonID[:4])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := strconv.Atoi(seasonID[4:])
	if err != nil || end != start+1 {
		return time.Time{}, time.Time{}, false
	}
	return time.Date(start, time.July, 1, 0, 0, 0, 0, time.UTC),
		time.Date(end, time.June, 30, 0, 0, 0, 0, time.UTC),
		true
}

// ParseTOI converts "mm:ss" or "hh:mm:ss" to seconds. Anything else is 0.
func ParseTOI(raw string) int {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}
	total := 0
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return 0
		}
		if i > 0 && value >= 60 {
			return 0
		}
		total = total*60 + value
	}
	return total
}

// DateOnly trims timestamps to their YYYY-MM-DD prefix.
func DateOnly(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(domain.DateLayout) {
		return raw[:len(domain.DateLayout)]
	}
	return raw
}

// Number coerces JSON numbers and numeric strings.
func Number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

// LocalizedName reads names shaped either as a string or {"default": "..."}.
func LocalizedName(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if name, ok := v["default"].(string); ok {
			return name
		}
	}
	return ""
}

// PlayerName joins first and last names or falls back to "name".
func PlayerName(record map[string]any) string {
	if name := LocalizedName(record["name"]); name != "" {
		return name
	}
	first := LocalizedName(record["firstName"])
	last := LocalizedName(record["lastName"])
	return strings.TrimSpace(first + " " + last)
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
