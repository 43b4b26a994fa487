package app

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nhlagent/internal/app/agent"
	"nhlagent/internal/app/evaluate"
	"nhlagent/internal/app/tools"
	"nhlagent/internal/domain"
	"nhlagent/internal/infra/catalog"
	"nhlagent/internal/infra/gateway"
	"nhlagent/internal/infra/llm"
	"nhlagent/internal/infra/mcpserver"
	"nhlagent/internal/infra/scoring"
	"nhlagent/internal/infra/telemetry"
)

// Application holds the process-wide dependencies. Cutoff-bound pieces
// (gateway, engine, toolset) are built per request from them.
type Application struct {
	cfg       Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   domain.Metrics
	catalog   *catalog.Catalog
	transport gateway.Transport
	now       func() time.Time
}

// ApplicationOptions captures dependencies for Application.
type ApplicationOptions struct {
	Config    Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   domain.Metrics
	Catalog   *catalog.Catalog
	Transport gateway.Transport
}

func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &Application{
		cfg:       opts.Config,
		logger:    logger,
		registry:  opts.Registry,
		metrics:   metrics,
		catalog:   opts.Catalog,
		transport: opts.Transport,
		now:       time.Now,
	}
}

// Config returns the normalized configuration.
func (a *Application) Config() Config {
	return a.cfg
}

// Catalog returns the shared endpoint allow-list.
func (a *Application) Catalog() *catalog.Catalog {
	return a.catalog
}

// Bundle is one cutoff's data stack.
type Bundle struct {
	Gateway *gateway.Gateway
	Engine  *scoring.Engine
	Toolset *tools.Toolset
}

// NewBundle builds a gateway, engine and toolset bound to cutoff.
func (a *Application) NewBundle(cutoff domain.Cutoff) (*Bundle, error) {
	gw, err := gateway.New(gateway.Options{
		Catalog:    a.catalog,
		Transport:  a.transport,
		Cutoff:     cutoff,
		Metrics:    a.metrics,
		Logger:     a.logger,
		MaxRetries: a.cfg.NHL.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	engine := scoring.NewEngine(gw, scoring.Options{
		GameType:    a.cfg.NHL.GameType,
		Concurrency: a.cfg.Evaluate.Concurrency,
		Logger:      a.logger,
	})
	toolset := tools.New(gw, engine, tools.Options{
		GameType: a.cfg.NHL.GameType,
		Logger:   a.logger,
	})
	return &Bundle{Gateway: gw, Engine: engine, Toolset: toolset}, nil
}

// AskRequest overrides configuration for one agent run. Zero values keep the
// configured setting.
type AskRequest struct {
	Question     string
	Provider     string
	Model        string
	PromptPath   string
	AsOf         string
	MaxSteps     int
	MaxToolCalls *int
}

// Ask runs the agent on one question.
func (a *Application) Ask(ctx context.Context, req AskRequest) (*domain.AgentResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.E(domain.CodeInvalidArgument, "app.ask", "question is required", nil)
	}
	cutoff := a.cfg.AsOf
	if strings.TrimSpace(req.AsOf) != "" {
		parsed, err := domain.ParseCutoff(req.AsOf)
		if err != nil {
			return nil, err
		}
		cutoff = parsed
	}
	cutoff = a.liveCutoff(cutoff)

	promptPath := a.cfg.Agent.PromptPath
	if req.PromptPath != "" {
		promptPath = req.PromptPath
	}
	prompt, err := LoadPrompt(promptPath)
	if err != nil {
		return nil, err
	}
	prompt += "\n\nAs-of date: " + cutoff.String() + ". Data after this date is unavailable."

	providerCfg := a.cfg.Provider
	if req.Provider != "" {
		kind, err := llm.ParseKind(req.Provider)
		if err != nil {
			return nil, err
		}
		if kind != providerCfg.Kind {
			providerCfg.Model = ""
			providerCfg.APIKeyEnv = ""
			providerCfg.BaseURL = ""
		}
		providerCfg.Kind = kind
	}
	if req.Model != "" {
		providerCfg.Model = req.Model
	}
	model, err := llm.New(ctx, llm.Config{
		Kind:      providerCfg.Kind,
		Model:     providerCfg.Model,
		APIKeyEnv: providerCfg.APIKeyEnv,
		BaseURL:   providerCfg.BaseURL,
		Timeout:   providerCfg.Timeout,
		MaxTokens: providerCfg.MaxTokens,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}

	bundle, err := a.NewBundle(cutoff)
	if err != nil {
		return nil, err
	}
	maxSteps := a.cfg.Agent.MaxSteps
	if req.MaxSteps > 0 {
		maxSteps = req.MaxSteps
	}
	maxToolCalls := a.cfg.Agent.MaxToolCalls
	if req.MaxToolCalls != nil {
		maxToolCalls = *req.MaxToolCalls
	}
	if maxToolCalls == 0 {
		// The loop reads 0 as "default"; a negative budget means none.
		maxToolCalls = -1
	}
	loop, err := agent.NewLoop(model, bundle.Toolset.Specs(), agent.Options{
		MaxSteps:     maxSteps,
		MaxToolCalls: maxToolCalls,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("agent run requested",
		telemetry.AsOfField(cutoff.String()),
		zap.String("provider", model.Name()),
		zap.Int("max_steps", maxSteps),
	)
	return loop.Run(ctx, prompt, req.Question)
}

// Evaluator builds an evaluator whose requests each get their own engine.
func (a *Application) Evaluator() *evaluate.Evaluator {
	return evaluate.New(func(cutoff domain.Cutoff) (evaluate.Ranker, error) {
		bundle, err := a.NewBundle(cutoff)
		if err != nil {
			return nil, err
		}
		return bundle.Engine, nil
	}, evaluate.Options{
		Concurrency: a.cfg.Evaluate.Concurrency,
		Logger:      a.logger,
	})
}

// Serve exposes the configured cutoff's tools over MCP until ctx is done.
// A nil transport serves stdio.
func (a *Application) Serve(ctx context.Context, transport mcp.Transport, version string) error {
	cutoff := a.liveCutoff(a.cfg.AsOf)
	bundle, err := a.NewBundle(cutoff)
	if err != nil {
		return err
	}
	server, err := mcpserver.New(bundle.Toolset.Specs(), mcpserver.Options{
		Version: version,
		Metrics: a.metrics,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.startObservability(ctx)

	a.logger.Info("serving tools over mcp", telemetry.AsOfField(cutoff.String()))
	if transport == nil {
		return server.RunStdio(ctx)
	}
	return server.Run(ctx, transport)
}

// liveCutoff pins an unset cutoff to today (UTC). Only the offline evaluator
// runs without one.
func (a *Application) liveCutoff(cutoff domain.Cutoff) domain.Cutoff {
	if cutoff.IsSet() {
		return cutoff
	}
	today := domain.CutoffAt(a.now())
	a.logger.Debug("no as-of date configured; using today", telemetry.AsOfField(today.String()))
	return today
}
