package domain

// Canonical stat names used by scoring rules and stat lines.
const (
	StatGoals             = "goals"
	StatAssists           = "assists"
	StatPoints            = "points"
	StatShots             = "shots"
	StatPlusMinus         = "plus_minus"
	StatPIM               = "pim"
	StatPowerPlayGoals    = "power_play_goals"
	StatPowerPlayPoints   = "power_play_points"
	StatShorthandedPoints = "shorthanded_points"
	StatGameWinningGoals  = "game_winning_goals"
	StatHits              = "hits"
	StatBlockedShots      = "blocked_shots"
	StatWins              = "wins"
	StatSaves             = "saves"
	StatGoalsAgainst      = "goals_against"
	StatShutouts          = "shutouts"
)

// CanonicalStats lists every stat in report order.
var CanonicalStats = []string{
	StatGoals,
	StatAssists,
	StatPoints,
	StatShots,
	StatPlusMinus,
	StatPIM,
	StatPowerPlayGoals,
	StatPowerPlayPoints,
	StatShorthandedPoints,
	StatGameWinningGoals,
	StatHits,
	StatBlockedShots,
	StatWins,
	StatSaves,
	StatGoalsAgainst,
	StatShutouts,
}

// ScoringRules maps every canonical stat to a weight.
type ScoringRules map[string]float64

// Clone copies the rules.
func (r ScoringRules) Clone() ScoringRules {
	out := make(ScoringRules, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// PlayerWeekResult is a player's scored window.
type PlayerWeekResult struct {
	PlayerID      int                `json:"player_id"`
	Name          string             `json:"name,omitempty"`
	Team          string             `json:"team,omitempty"`
	Window        Window             `json:"window"`
	GamesPlayed   int                `json:"games_played"`
	FantasyPoints float64            `json:"fantasy_points"`
	StatTotals    map[string]float64 `json:"stat_totals"`
	ScoringUsed   ScoringRules       `json:"scoring_used"`
}

// PlayerFailure records a player dropped from a ranking.
type PlayerFailure struct {
	PlayerID int       `json:"player_id"`
	Error    ErrorCode `json:"error"`
	Message  string    `json:"message"`
}

// Ranking is a sorted, truncated set of scored players.
type Ranking struct {
	Window      Window             `json:"window"`
	Scoring     ScoringRules       `json:"scoring"`
	TopN        int                `json:"top_n"`
	RankedCount int                `json:"ranked_count"`
	Results     []PlayerWeekResult `json:"results"`
	Failures    []PlayerFailure    `json:"failures,omitempty"`
	GameCount   *int               `json:"game_count,omitempty"`
	PlayerCount *int               `json:"player_count,omitempty"`
}
