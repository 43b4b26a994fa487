// Package scoring turns per-game stat lines into fantasy points and ranks
// players over a date window.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

var defaultWeights = map[string]float64{
	domain.StatGoals:             2,
	domain.StatAssists:           1,
	domain.StatPoints:            0,
	domain.StatShots:             0.1,
	domain.StatPlusMinus:         0.5,
	domain.StatPIM:               0,
	domain.StatPowerPlayGoals:    0,
	domain.StatPowerPlayPoints:   0.5,
	domain.StatShorthandedPoints: 1,
	domain.StatGameWinningGoals:  1,
	domain.StatHits:              0.1,
	domain.StatBlockedShots:      0.5,
	domain.StatWins:              4,
	domain.StatSaves:             0.2,
	domain.StatGoalsAgainst:      -1,
	domain.StatShutouts:          3,
}

// DefaultRules returns a fresh copy of the default weight table.
func DefaultRules() domain.ScoringRules {
	return domain.ScoringRules(defaultWeights).Clone()
}

// ZeroRules returns a table with every canonical stat weighted 0.
func ZeroRules() domain.ScoringRules {
	rules := make(domain.ScoringRules, len(domain.CanonicalStats))
	for _, stat := range domain.CanonicalStats {
		rules[stat] = 0
	}
	return rules
}

// ParseRules resolves caller-supplied weights. Nil or empty input selects
// the defaults. Otherwise unspecified stats weigh 0, and any unknown key or
// non-numeric weight rejects the whole table.
func ParseRules(raw map[string]any) (domain.ScoringRules, error) {
	const op = "scoring.parse_rules"
	if len(raw) == 0 {
		return DefaultRules(), nil
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rules := ZeroRules()
	seen := make(map[string]string, len(raw))
	var problems []string
	for _, key := range keys {
		stat, ok := normalize.CanonicalStat(key)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown stat %q", key))
			continue
		}
		weight, ok := weightValue(raw[key])
		if !ok {
			problems = append(problems, fmt.Sprintf("weight for %q must be a finite number, got %v", key, raw[key]))
			continue
		}
		if prev, dup := seen[stat]; dup && rules[stat] != weight {
			problems = append(problems, fmt.Sprintf("%q and %q both set %s", prev, key, stat))
			continue
		}
		seen[stat] = key
		rules[stat] = weight
	}
	if len(problems) > 0 {
		return nil, domain.E(domain.CodeInvalidScoringRules, op, strings.Join(problems, "; "), nil)
	}
	return rules, nil
}

// ParseRulesValue accepts a decoded tool argument.
func ParseRulesValue(value any) (domain.ScoringRules, error) {
	switch v := value.(type) {
	case nil:
		return DefaultRules(), nil
	case map[string]any:
		return ParseRules(v)
	case domain.ScoringRules:
		out := make(map[string]any, len(v))
		for key, weight := range v {
			out[key] = weight
		}
		return ParseRules(out)
	default:
		return nil, domain.E(domain.CodeInvalidScoringRules, "scoring.parse_rules",
			fmt.Sprintf("scoring must be an object of stat weights, got %T", value), nil)
	}
}

// LoadRulesFile reads a weight table from JSON, YAML or TOML.
func LoadRulesFile(path string) (domain.ScoringRules, error) {
	const op = "scoring.load_rules"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidScoringRules, op, fmt.Sprintf("read %s", path), err)
	}
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, domain.E(domain.CodeInvalidScoringRules, op, fmt.Sprintf("decode %s", path), err)
	}
	return ParseRules(raw)
}

// Points applies rules to one stat line. Stats missing from the line count
// as zero.
func Points(line map[string]float64, rules domain.ScoringRules) float64 {
	total := 0.0
	for _, stat := range domain.CanonicalStats {
		total += line[stat] * rules[stat]
	}
	return total
}

func weightValue(value any) (float64, bool) {
	if _, isString := value.(string); isString {
		return 0, false
	}
	weight, ok := normalize.Number(value)
	if !ok || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return 0, false
	}
	return weight, true
}

func round3(value float64) float64 {
	scale := math.Pow(10, domain.ScoreDecimals)
	return math.Round(value*scale) / scale
}
