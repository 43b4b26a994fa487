// Package temporal keeps data from after the as-of cutoff out of requests
// and responses.
package temporal

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

// CandidateDateFields are tried in order when an endpoint declares none.
var CandidateDateFields = []string{"gameDate", "date", "startTimeUTC", "gameDateTime", "dateTime"}

var seasonFields = []string{"season", "seasonId"}

var (
	embeddedDate   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	embeddedSeason = regexp.MustCompile(`(?i)season(?:id)?\s*(?:=|<=|>=|<|>|==)\s*"?(\d{8})`)
	currentAliases = map[string]struct{}{"now": {}, "current": {}}
)

// GameDateResolver maps an opaque game identifier to the date it was played.
type GameDateResolver interface {
	ResolveGameDate(ctx context.Context, gameID string) (time.Time, error)
}

// Gate validates requests and filters responses against one cutoff.
type Gate struct {
	cutoff   domain.Cutoff
	resolver GameDateResolver
}

// NewGate builds a gate. A nil resolver makes every game-id request fail
// closed while a cutoff is set.
func NewGate(cutoff domain.Cutoff, resolver GameDateResolver) *Gate {
	return &Gate{cutoff: cutoff, resolver: resolver}
}

// Cutoff returns the gate's cutoff.
func (g *Gate) Cutoff() domain.Cutoff {
	return g.cutoff
}

// ValidateRequest rejects requests that would read data past the cutoff.
func (g *Gate) ValidateRequest(ctx context.Context, entry domain.EndpointEntry, pathParams, queryParams map[string]string) error {
	if !g.cutoff.IsSet() || entry.IsSchedule() {
		return nil
	}

	for _, segment := range strings.Split(entry.Path, "/") {
		if isCurrentAlias(segment) {
			return g.violation(entry, "path", segment, fmt.Sprintf("%q reads live data and is not allowed with an as-of date", segment))
		}
	}

	params := orderedParams(pathParams, queryParams)
	for _, p := range params {
		if isCurrentAlias(p.value) {
			return g.violation(entry, p.name, p.value, fmt.Sprintf("parameter %s=%q reads live data and is not allowed with an as-of date", p.name, p.value))
		}
		for _, date := range datesIn(p.value) {
			if g.cutoff.After(date) {
				return g.violation(entry, p.name, p.value, fmt.Sprintf("parameter %s date %s is after the as-of date %s", p.name, date.Format(domain.DateLayout), g.cutoff))
			}
		}
		for _, season := range seasonsIn(p.name, entry.ParamSchema.Kind(p.name), p.value) {
			start, _, ok := normalize.SeasonBounds(season)
			if ok && g.cutoff.After(start) {
				return g.violation(entry, p.name, p.value, fmt.Sprintf("season %s starts after the as-of date %s", season, g.cutoff))
			}
		}
	}

	for _, p := range params {
		if !isGameIDParam(p.name, entry.ParamSchema.Kind(p.name)) {
			continue
		}
		if g.resolver == nil {
			return g.violation(entry, p.name, p.value, "game date cannot be resolved")
		}
		date, err := g.resolver.ResolveGameDate(ctx, p.value)
		if err != nil {
			return g.violation(entry, p.name, p.value, fmt.Sprintf("game %s date could not be resolved: %v", p.value, err))
		}
		if g.cutoff.After(date) {
			return g.violation(entry, p.name, p.value, fmt.Sprintf("game %s was played on %s, after the as-of date %s", p.value, date.Format(domain.DateLayout), g.cutoff))
		}
	}
	return nil
}

// FilterResponse returns a copy of payload without records dated after the
// cutoff, plus the number of records removed. It never fails and never
// modifies payload.
func (g *Gate) FilterResponse(payload any, entry domain.EndpointEntry) (any, int) {
	if !g.cutoff.IsSet() || entry.IsSchedule() {
		return payload, 0
	}
	fields := CandidateDateFields
	if len(entry.DateFields) > 0 {
		fields = append(append([]string(nil), entry.DateFields...), CandidateDateFields...)
	}
	w := &walker{
		cutoff: g.cutoff,
		fields: fields,
		strict: entry.EffectiveDatePolicy() == domain.DatePolicyStrict,
	}
	return w.walk(payload, false), w.dropped
}

func (g *Gate) violation(entry domain.EndpointEntry, param, value, msg string) error {
	return domain.E(domain.CodeTemporalViolation, "temporal.validate", msg, nil).
		WithMeta("path_template", entry.Path).
		WithMeta("param", param).
		WithMeta("value", value).
		WithMeta("as_of", g.cutoff.String())
}

type walker struct {
	cutoff  domain.Cutoff
	fields  []string
	strict  bool
	dropped int
}

// walk copies value. dated reports whether an enclosing record carried a
// date on or before the cutoff. The root itself is never dropped.
func (w *walker) walk(value any, dated bool) any {
	switch v := value.(type) {
	case map[string]any:
		if date, ok := recordDate(v, w.fields); ok && !w.cutoff.After(date) {
			dated = true
		}
		out := make(map[string]any, len(v))
		for key, child := range v {
			if record, ok := child.(map[string]any); ok && !w.keep(record, dated, isLabel(record)) {
				w.dropped++
				continue
			}
			out[key] = w.walk(child, dated)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				out = append(out, w.walk(item, dated))
				continue
			}
			if !w.keep(record, dated, false) {
				w.dropped++
				continue
			}
			out = append(out, w.walk(record, dated))
		}
		return out
	default:
		return value
	}
}

// keep decides whether a nested record survives. Records dated past the
// cutoff never do. Under the strict policy an undated record needs a dated
// ancestor unless it is a label.
func (w *walker) keep(record map[string]any, dated, label bool) bool {
	date, hasDate := recordDate(record, w.fields)
	if hasDate {
		return !w.cutoff.After(date)
	}
	return dated || label || !w.strict
}

// isLabel reports whether an object holds only text, like the localized
// {"default": "..."} names. Labels carry no stats.
func isLabel(record map[string]any) bool {
	for _, value := range record {
		if _, ok := value.(string); !ok {
			return false
		}
	}
	return true
}

// recordDate infers a record date from the given fields, then from season
// identifiers, which date a record by the last day of that season.
func recordDate(record map[string]any, fields []string) (time.Time, bool) {
	for _, field := range fields {
		raw, ok := record[field].(string)
		if !ok || raw == "" {
			continue
		}
		if date, err := domain.ParseDate(raw); err == nil {
			return date, true
		}
		if date, err := domain.ParseDate(normalize.DateOnly(raw)); err == nil {
			return date, true
		}
	}
	for _, field := range seasonFields {
		season := seasonString(record[field])
		if season == "" {
			continue
		}
		if _, end, ok := normalize.SeasonBounds(season); ok {
			return end, true
		}
	}
	return time.Time{}, false
}

func seasonString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		if n, ok := normalize.Number(v); ok && n > 0 {
			return fmt.Sprintf("%.0f", n)
		}
	}
	return ""
}

type param struct {
	name  string
	value string
}

// orderedParams flattens path then query params in name order so errors are
// deterministic.
func orderedParams(pathParams, queryParams map[string]string) []param {
	out := make([]param, 0, len(pathParams)+len(queryParams))
	for _, source := range []map[string]string{pathParams, queryParams} {
		names := make([]string, 0, len(source))
		for name := range source {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, param{name: name, value: source[name]})
		}
	}
	return out
}

func isCurrentAlias(value string) bool {
	_, ok := currentAliases[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func datesIn(value string) []time.Time {
	if date, err := domain.ParseDate(value); err == nil {
		return []time.Time{date}
	}
	var out []time.Time
	for _, match := range embeddedDate.FindAllString(value, -1) {
		if date, err := domain.ParseDate(match); err == nil {
			out = append(out, date)
		}
	}
	return out
}

func seasonsIn(name, kind, value string) []string {
	value = strings.TrimSpace(value)
	if kind == domain.ParamKindSeason || isSeasonName(name) {
		if _, _, ok := normalize.SeasonBounds(value); ok {
			return []string{value}
		}
	}
	var out []string
	for _, match := range embeddedSeason.FindAllStringSubmatch(value, -1) {
		out = append(out, match[1])
	}
	return out
}

func isSeasonName(name string) bool {
	switch strings.ToLower(name) {
	case "season", "seasonid", "season_id":
		return true
	}
	return false
}

func isGameIDParam(name, kind string) bool {
	if kind == domain.ParamKindGameID {
		return true
	}
	switch strings.ToLower(name) {
	case "game_id", "gameid":
		return true
	}
	return false
}
