// Package llm adapts chat-completion backends to the agent's canonical turn
// shape. Every adapter returns exactly one tool call or one decoded final
// object per Generate.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"nhlagent/internal/domain"
)

// Provider is a model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error)
}

// Kind selects a backend.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
)

// Kinds lists the supported backends.
var Kinds = []Kind{KindOpenAI, KindAnthropic, KindGemini}

// ParseKind validates a provider name.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if kind == "" {
		return KindOpenAI, nil
	}
	for _, known := range Kinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", domain.E(domain.CodeInvalidConfig, "llm.parse_kind", fmt.Sprintf("unsupported provider %q", raw), nil)
}

// Config configures a Provider.
type Config struct {
	Kind  Kind
	Model string
	// APIKey takes precedence over APIKeyEnv.
	APIKey    string
	APIKeyEnv string
	BaseURL   string
	Timeout   time.Duration
	// MaxTokens bounds the response length where the backend requires it.
	MaxTokens  int
	HTTPClient *http.Client
	Metrics    domain.Metrics
	Logger     *zap.Logger
}

var defaultAPIKeyEnv = map[Kind]string{
	KindOpenAI:    "OPENAI_API_KEY",
	KindAnthropic: "ANTHROPIC_API_KEY",
	KindGemini:    "GEMINI_API_KEY",
}

var defaultModels = map[Kind]string{
	KindOpenAI:    "gpt-4o-mini",
	KindAnthropic: "claude-3-5-sonnet-latest",
	KindGemini:    "gemini-2.0-flash",
}

// New builds the configured backend wrapped with latency and token metrics.
func New(ctx context.Context, cfg Config) (Provider, error) {
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	cfg.Kind = kind
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModels[kind]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Duration(domain.DefaultModelTimeoutSeconds) * time.Second
	}
	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	var provider Provider
	switch kind {
	case KindOpenAI:
		provider, err = newOpenAI(ctx, cfg, apiKey)
	case KindAnthropic:
		provider = newAnthropic(cfg, apiKey)
	case KindGemini:
		provider, err = newGemini(ctx, cfg, apiKey)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(provider, cfg.Model, cfg.Metrics, cfg.Logger), nil
}

func resolveAPIKey(cfg Config) (string, error) {
	const op = "llm.api_key"
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}
	envVar := strings.TrimSpace(cfg.APIKeyEnv)
	if envVar == "" {
		envVar = defaultAPIKeyEnv[cfg.Kind]
	}
	key := strings.TrimSpace(os.Getenv(envVar))
	if key == "" {
		return "", domain.E(domain.CodeInvalidConfig, op, fmt.Sprintf("API key not found in env var %s", envVar), nil)
	}
	return key, nil
}

type instrumented struct {
	inner   Provider
	model   string
	metrics domain.Metrics
	logger  *zap.Logger
}

// Instrument records latency and token usage for every Generate call.
func Instrument(provider Provider, model string, metrics domain.Metrics, logger *zap.Logger) Provider {
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{inner: provider, model: model, metrics: metrics, logger: logger.Named("llm")}
}

func (p *instrumented) Name() string {
	return p.inner.Name()
}

func (p *instrumented) Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error) {
	started := time.Now()
	turn, err := p.inner.Generate(ctx, history, tools)
	elapsed := time.Since(started)
	p.metrics.ObserveModelLatency(p.inner.Name(), p.model, elapsed)
	if err != nil {
		p.logger.Warn("model turn failed",
			zap.String("provider", p.inner.Name()),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return turn, err
	}
	p.metrics.ObserveModelTokens(p.inner.Name(), p.model, turn.Usage.TotalTokens)
	p.logger.Debug("model turn",
		zap.String("provider", p.inner.Name()),
		zap.String("kind", string(turn.Kind)),
		zap.Int("total_tokens", turn.Usage.TotalTokens),
		zap.Duration("latency", elapsed),
	)
	return turn, nil
}

func multipleToolCalls(op string, names []string) error {
	return domain.E(domain.CodeProtocolViolation, op,
		fmt.Sprintf("model requested %d tool calls in one turn; only one is allowed (first: %s)", len(names), names[0]), domain.ErrMultipleToolCalls).
		WithMeta("chosen", names[0]).
		WithMeta("requested", strings.Join(names, ","))
}

func toolCallTurn(id, name string, args map[string]any, usage domain.Usage) domain.ModelTurn {
	if args == nil {
		args = map[string]any{}
	}
	if id == "" {
		id = newCallID()
	}
	return domain.ModelTurn{
		Kind:     domain.TurnToolCall,
		ToolCall: &domain.ToolCall{ID: id, Name: name, Arguments: args},
		Usage:    usage,
	}
}

func finalTurn(op, content string, usage domain.Usage) (domain.ModelTurn, error) {
	final, err := DecodeFinal(content)
	if err != nil {
		return domain.ModelTurn{}, domain.Wrap(domain.CodeProtocolViolation, op, err)
	}
	return domain.ModelTurn{Kind: domain.TurnFinal, Final: final, Usage: usage}, nil
}
