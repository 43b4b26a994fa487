package domain

const (
	DefaultPrimaryBaseURL             = "https://api-web.nhle.com/v1"
	DefaultStatsBaseURL               = "https://api.nhle.com/stats/rest"
	DefaultHTTPTimeoutSeconds         = 30
	DefaultGameType                   = "2"
	DefaultMaxSteps                   = 20
	DefaultMaxToolCalls               = 20
	DefaultTopN                       = 10
	DefaultProvider                   = "openai"
	DefaultModelTimeoutSeconds        = 120
	DefaultAnthropicMaxTokens         = 1024
	DefaultCacheBackend               = "disk"
	DefaultCacheDir                   = ".cache/nhl_api"
	DefaultBoltCachePath              = ".cache/nhl_api.db"
	DefaultPromptPath                 = "prompts/system_prompt_v0.md"
	DefaultEvaluateConcurrency        = 4
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
	ScoreDecimals                     = 3
)

// Final statuses synthesized by the agent loop.
const (
	StatusToolBudgetExceeded = "tool_budget_exceeded"
	StatusTurnBudgetExceeded = "turn_budget_exceeded"
	StatusCompleted          = "completed"
)
