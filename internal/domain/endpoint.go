package domain

import "strings"

// Base identifies one of the NHL data backends.
type Base string

const (
	// BasePrimary is the api-web backend.
	BasePrimary Base = "primary"
	// BaseStats is the stats REST backend.
	BaseStats Base = "stats"
)

// ParseBase normalizes a base name. "web" is accepted for the primary backend.
func ParseBase(raw string) (Base, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "primary", "web":
		return BasePrimary, true
	case "stats":
		return BaseStats, true
	default:
		return "", false
	}
}

// DatePolicy controls how the temporal gate treats undated records.
type DatePolicy string

const (
	// DatePolicyStrict drops list records with no inferable date.
	DatePolicyStrict DatePolicy = "strict"
	// DatePolicyLenient keeps list records with no inferable date.
	DatePolicyLenient DatePolicy = "lenient"
)

// CategorySchedule is exempt from temporal filtering.
const CategorySchedule = "schedule"

// Parameter kinds recognized in an endpoint's param schema.
const (
	ParamKindString   = "string"
	ParamKindDate     = "date"
	ParamKindSeason   = "season"
	ParamKindGameID   = "game_id"
	ParamKindTeam     = "team"
	ParamKindPlayerID = "player_id"
	ParamKindInteger  = "integer"
)

// ParamSchema maps parameter names to kinds, split by location.
type ParamSchema struct {
	Path  map[string]string `json:"path" mapstructure:"path"`
	Query map[string]string `json:"query" mapstructure:"query"`
}

// Kind returns the declared kind of a parameter, searching path then query.
func (p ParamSchema) Kind(name string) string {
	if kind, ok := p.Path[name]; ok {
		return kind
	}
	return p.Query[name]
}

// EndpointEntry is one allow-listed data endpoint.
type EndpointEntry struct {
	Name        string      `json:"name"`
	Base        Base        `json:"base"`
	Path        string      `json:"path"`
	Category    string      `json:"category"`
	Cost        int         `json:"cost"`
	ParamSchema ParamSchema `json:"params_schema"`
	Description string      `json:"description,omitempty"`
	DateFields  []string    `json:"date_fields,omitempty"`
	DatePolicy  DatePolicy  `json:"date_policy,omitempty"`
}

// IsSchedule reports whether the entry serves public fixtures.
func (e EndpointEntry) IsSchedule() bool {
	return strings.EqualFold(e.Category, CategorySchedule)
}

// EffectiveDatePolicy returns the entry policy, defaulting to strict.
func (e EndpointEntry) EffectiveDatePolicy() DatePolicy {
	if e.DatePolicy == DatePolicyLenient {
		return DatePolicyLenient
	}
	return DatePolicyStrict
}

// Well-known templates used outside the model-facing tool surface.
const (
	PathPlayerGameLog = "player/{player}/game-log/{season}/{game_type}"
	PathScheduleDate  = "schedule/{date}"
	PathBoxScore      = "gamecenter/{game_id}/boxscore"
	PathGameLanding   = "gamecenter/{game_id}/landing"
	PathClubSchedule  = "club-schedule-season/{team}/{season}"
	PathStatsTeams    = "{lang}/team"
)
