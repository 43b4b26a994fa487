package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/cache"
	"nhlagent/internal/infra/envutil"
	"nhlagent/internal/infra/llm"
)

const envPrefix = "NHLAGENT"

// Config is the normalized process configuration.
type Config struct {
	AsOf          domain.Cutoff
	Agent         AgentConfig
	Provider      ProviderConfig
	NHL           NHLConfig
	Cache         CacheConfig
	Catalog       CatalogConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
	Evaluate      EvaluateConfig
}

type AgentConfig struct {
	MaxSteps     int
	MaxToolCalls int
	PromptPath   string
}

type ProviderConfig struct {
	Kind      llm.Kind
	Model     string
	APIKeyEnv string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

type NHLConfig struct {
	PrimaryBaseURL string
	StatsBaseURL   string
	Timeout        time.Duration
	GameType       string
	// MaxRetries is the number of transport retries; 0 disables them.
	MaxRetries int
}

type CacheConfig struct {
	Backend  string
	Dir      string
	BoltPath string
}

type CatalogConfig struct {
	BasePath      string
	OverridesPath string
}

type ObservabilityConfig struct {
	ListenAddress string
	// MetricsEnabled starts the /metrics listener during serve.
	MetricsEnabled bool
	// MetricsOut receives a text dump of the registry when a command exits.
	MetricsOut string
}

type LoggingConfig struct {
	Level       string
	Development bool
}

type EvaluateConfig struct {
	Concurrency int
}

type rawConfig struct {
	AsOf          string            `mapstructure:"asOf"`
	Agent         rawAgentConfig    `mapstructure:"agent"`
	Provider      rawProviderConfig `mapstructure:"provider"`
	NHL           rawNHLConfig      `mapstructure:"nhl"`
	Cache         rawCacheConfig    `mapstructure:"cache"`
	Catalog       rawCatalogConfig  `mapstructure:"catalog"`
	Observability rawObservability  `mapstructure:"observability"`
	Logging       rawLoggingConfig  `mapstructure:"logging"`
	Evaluate      rawEvaluateConfig `mapstructure:"evaluate"`
}

type rawAgentConfig struct {
	MaxSteps     int    `mapstructure:"maxSteps"`
	MaxToolCalls int    `mapstructure:"maxToolCalls"`
	PromptPath   string `mapstructure:"promptPath"`
}

type rawProviderConfig struct {
	Name           string `mapstructure:"name"`
	Model          string `mapstructure:"model"`
	APIKeyEnv      string `mapstructure:"apiKeyEnv"`
	BaseURL        string `mapstructure:"baseURL"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	MaxTokens      int    `mapstructure:"maxTokens"`
}

type rawNHLConfig struct {
	PrimaryBaseURL string `mapstructure:"primaryBaseURL"`
	StatsBaseURL   string `mapstructure:"statsBaseURL"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	GameType       string `mapstructure:"gameType"`
	MaxRetries     int    `mapstructure:"maxRetries"`
}

type rawCacheConfig struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	BoltPath string `mapstructure:"boltPath"`
}

type rawCatalogConfig struct {
	BasePath      string `mapstructure:"basePath"`
	OverridesPath string `mapstructure:"overridesPath"`
}

type rawObservability struct {
	ListenAddress  string `mapstructure:"listenAddress"`
	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsOut     string `mapstructure:"metricsOut"`
}

type rawLoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type rawEvaluateConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)
	return v
}

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("asOf", "")
	v.SetDefault("agent.maxSteps", domain.DefaultMaxSteps)
	v.SetDefault("agent.maxToolCalls", domain.DefaultMaxToolCalls)
	v.SetDefault("agent.promptPath", domain.DefaultPromptPath)
	v.SetDefault("provider.name", domain.DefaultProvider)
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.apiKeyEnv", "")
	v.SetDefault("provider.baseURL", "")
	v.SetDefault("provider.timeoutSeconds", domain.DefaultModelTimeoutSeconds)
	v.SetDefault("provider.maxTokens", domain.DefaultAnthropicMaxTokens)
	v.SetDefault("nhl.primaryBaseURL", domain.DefaultPrimaryBaseURL)
	v.SetDefault("nhl.statsBaseURL", domain.DefaultStatsBaseURL)
	v.SetDefault("nhl.timeoutSeconds", domain.DefaultHTTPTimeoutSeconds)
	v.SetDefault("nhl.gameType", domain.DefaultGameType)
	v.SetDefault("nhl.maxRetries", 0)
	v.SetDefault("cache.backend", domain.DefaultCacheBackend)
	v.SetDefault("cache.dir", domain.DefaultCacheDir)
	v.SetDefault("cache.boltPath", domain.DefaultBoltCachePath)
	v.SetDefault("catalog.basePath", "")
	v.SetDefault("catalog.overridesPath", "")
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metricsEnabled", false)
	v.SetDefault("observability.metricsOut", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("evaluate.concurrency", domain.DefaultEvaluateConcurrency)
}

// LoadConfig reads path (YAML, JSON or TOML) over the defaults and the
// NHLAGENT_* environment. An empty path uses defaults and environment only.
func LoadConfig(path string, logger *zap.Logger) (Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := newConfigViper()
	if strings.TrimSpace(path) != "" {
		if err := readConfigFile(v, path, logger); err != nil {
			return Config{}, domain.E(domain.CodeInvalidConfig, "config.load", err.Error(), err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, domain.E(domain.CodeInvalidConfig, "config.load", "decode config", err)
	}
	cfg, errs := normalizeConfig(raw)
	if len(errs) > 0 {
		return Config{}, domain.E(domain.CodeInvalidConfig, "config.load", strings.Join(errs, "; "), nil)
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	case ".toml":
		v.SetConfigType("toml")
	case ".yaml", ".yml", "":
		v.SetConfigType("yaml")
		expanded, missing, err := envutil.ExpandYAML(data)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
		}
		data = []byte(expanded)
	default:
		return errors.New("config file must be .yaml, .yml, .json or .toml")
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func normalizeConfig(raw rawConfig) (Config, []string) {
	var errs []string

	asOf, err := domain.ParseCutoff(raw.AsOf)
	if err != nil {
		errs = append(errs, fmt.Sprintf("asOf: %q is not a YYYY-MM-DD date", raw.AsOf))
	}

	if raw.Agent.MaxSteps < 1 {
		errs = append(errs, "agent.maxSteps must be >= 1")
	}
	if raw.Agent.MaxToolCalls < 0 {
		errs = append(errs, "agent.maxToolCalls must be >= 0")
	}

	kind, err := llm.ParseKind(raw.Provider.Name)
	if err != nil {
		errs = append(errs, fmt.Sprintf("provider.name: %q is not one of openai, anthropic, gemini", raw.Provider.Name))
	}
	if raw.Provider.TimeoutSeconds <= 0 {
		errs = append(errs, "provider.timeoutSeconds must be > 0")
	}
	if raw.Provider.MaxTokens <= 0 {
		errs = append(errs, "provider.maxTokens must be > 0")
	}

	if raw.NHL.TimeoutSeconds <= 0 {
		errs = append(errs, "nhl.timeoutSeconds must be > 0")
	}
	if raw.NHL.MaxRetries < 0 {
		errs = append(errs, "nhl.maxRetries must be >= 0")
	}
	gameType := strings.TrimSpace(raw.NHL.GameType)
	if gameType == "" {
		gameType = domain.DefaultGameType
	}

	backend := strings.ToLower(strings.TrimSpace(raw.Cache.Backend))
	switch backend {
	case cache.BackendDisk, cache.BackendBolt, cache.BackendNone:
	case "":
		backend = domain.DefaultCacheBackend
	default:
		errs = append(errs, fmt.Sprintf("cache.backend: %q is not one of disk, bolt, none", raw.Cache.Backend))
	}

	if raw.Evaluate.Concurrency < 1 {
		errs = append(errs, "evaluate.concurrency must be >= 1")
	}

	level := strings.TrimSpace(raw.Logging.Level)
	if level != "" {
		if _, err := zapcore.ParseLevel(level); err != nil {
			errs = append(errs, fmt.Sprintf("logging.level: %q is not a log level", level))
		}
	}

	return Config{
		AsOf: asOf,
		Agent: AgentConfig{
			MaxSteps:     raw.Agent.MaxSteps,
			MaxToolCalls: raw.Agent.MaxToolCalls,
			PromptPath:   strings.TrimSpace(raw.Agent.PromptPath),
		},
		Provider: ProviderConfig{
			Kind:      kind,
			Model:     strings.TrimSpace(raw.Provider.Model),
			APIKeyEnv: strings.TrimSpace(raw.Provider.APIKeyEnv),
			BaseURL:   strings.TrimSpace(raw.Provider.BaseURL),
			Timeout:   time.Duration(raw.Provider.TimeoutSeconds) * time.Second,
			MaxTokens: raw.Provider.MaxTokens,
		},
		NHL: NHLConfig{
			PrimaryBaseURL: strings.TrimSpace(raw.NHL.PrimaryBaseURL),
			StatsBaseURL:   strings.TrimSpace(raw.NHL.StatsBaseURL),
			Timeout:        time.Duration(raw.NHL.TimeoutSeconds) * time.Second,
			GameType:       gameType,
			MaxRetries:     raw.NHL.MaxRetries,
		},
		Cache: CacheConfig{
			Backend:  backend,
			Dir:      strings.TrimSpace(raw.Cache.Dir),
			BoltPath: strings.TrimSpace(raw.Cache.BoltPath),
		},
		Catalog: CatalogConfig{
			BasePath:      strings.TrimSpace(raw.Catalog.BasePath),
			OverridesPath: strings.TrimSpace(raw.Catalog.OverridesPath),
		},
		Observability: ObservabilityConfig{
			ListenAddress:  strings.TrimSpace(raw.Observability.ListenAddress),
			MetricsEnabled: raw.Observability.MetricsEnabled,
			MetricsOut:     strings.TrimSpace(raw.Observability.MetricsOut),
		},
		Logging: LoggingConfig{
			Level:       level,
			Development: raw.Logging.Development,
		},
		Evaluate: EvaluateConfig{
			Concurrency: raw.Evaluate.Concurrency,
		},
	}, errs
}
