// Package agent drives the tool-calling conversation between a model backend
// and the tool surface.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/telemetry"
)

// Model is the backend the loop talks to.
type Model interface {
	Name() string
	Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error)
}

// Options bounds a run. Zero values select defaults.
type Options struct {
	MaxSteps     int
	MaxToolCalls int
	Metrics      domain.Metrics
	Logger       *zap.Logger
}

// Loop runs one conversation at a time. It holds no per-run state, so one
// Loop may serve sequential runs.
type Loop struct {
	model        Model
	registry     *Registry
	maxSteps     int
	maxToolCalls int
	metrics      domain.Metrics
	logger       *zap.Logger
	tracer       trace.Tracer
}

func NewLoop(model Model, specs []domain.ToolSpec, opts Options) (*Loop, error) {
	if model == nil {
		return nil, domain.E(domain.CodeInvalidConfig, "agent.new", "model is required", nil)
	}
	registry, err := NewRegistry(specs)
	if err != nil {
		return nil, err
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = domain.DefaultMaxSteps
	}
	maxToolCalls := opts.MaxToolCalls
	if maxToolCalls < 0 {
		maxToolCalls = 0
	} else if maxToolCalls == 0 {
		maxToolCalls = domain.DefaultMaxToolCalls
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		model:        model,
		registry:     registry,
		maxSteps:     maxSteps,
		maxToolCalls: maxToolCalls,
		metrics:      metrics,
		logger:       logger.Named("agent"),
		tracer:       otel.Tracer("nhlagent/agent"),
	}, nil
}

// Registry exposes the loop's tool index.
func (l *Loop) Registry() *Registry {
	return l.registry
}

// Run drives the conversation until the model answers or a budget runs out.
// Budget exhaustion yields a synthesized final; protocol violations abort
// the run with an error.
func (l *Loop) Run(ctx context.Context, systemPrompt, userMessage string) (*domain.AgentResponse, error) {
	ctx, meta := telemetry.EnsureRunMeta(ctx, "")
	ctx, span := l.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", meta.RunID),
		attribute.String("agent.provider", l.model.Name()),
	))
	defer span.End()
	logger := telemetry.LoggerWithRun(ctx, l.logger)
	logger.Info("agent run started",
		telemetry.EventField(telemetry.EventRunStart),
		zap.String("provider", l.model.Name()),
		zap.Int("max_steps", l.maxSteps),
		zap.Int("max_tool_calls", l.maxToolCalls),
	)

	run := &runState{
		trace: domain.NewAgentTrace(meta.RunID),
		history: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: userMessage},
		},
	}
	resp, err := l.drive(ctx, run, logger)

	status := "error"
	if err == nil {
		status = resp.Status
		span.SetAttributes(attribute.String("agent.status", status), attribute.Int("agent.turns", resp.Turns))
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	l.metrics.ObserveRun(status, run.turns)
	logger.Info("agent run finished",
		telemetry.EventField(telemetry.EventRunFinish),
		zap.String("status", status),
		zap.Int("turns", run.turns),
		zap.Int("tool_calls", run.toolCalls),
		zap.Error(err),
	)
	return resp, err
}

type runState struct {
	trace     *domain.AgentTrace
	history   []domain.Message
	turns     int
	toolCalls int
}

func (r *runState) respond(status string, final map[string]any) *domain.AgentResponse {
	return &domain.AgentResponse{
		Status: status,
		Final:  final,
		Trace:  r.trace.Snapshot(),
		Turns:  r.turns,
	}
}

func (l *Loop) drive(ctx context.Context, run *runState, logger *zap.Logger) (*domain.AgentResponse, error) {
	const op = "agent.run"
	definitions := l.registry.Definitions()

	for run.turns < l.maxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		turn, err := l.model.Generate(ctx, run.history, definitions)
		run.turns++
		if err != nil {
			return nil, err
		}
		logger.Debug("model turn",
			telemetry.EventField(telemetry.EventModelTurn),
			zap.Int("turn", run.turns),
			zap.String("kind", string(turn.Kind)),
		)

		switch turn.Kind {
		case domain.TurnFinal:
			return run.respond(domain.StatusCompleted, turn.Final), nil
		case domain.TurnToolCall:
			if turn.ToolCall == nil || turn.ToolCall.Name == "" {
				return nil, domain.E(domain.CodeProtocolViolation, op, "tool-call turn carries no tool call", nil)
			}
		default:
			return nil, domain.E(domain.CodeProtocolViolation, op, fmt.Sprintf("unsupported turn kind %q", turn.Kind), nil)
		}

		if run.toolCalls >= l.maxToolCalls {
			logger.Warn("tool budget exhausted", zap.Int("tool_calls_used", run.toolCalls))
			return run.respond(domain.StatusToolBudgetExceeded, map[string]any{
				"status":          domain.StatusToolBudgetExceeded,
				"tool_calls_used": run.toolCalls,
			}), nil
		}

		call := *turn.ToolCall
		tool, ok := l.registry.lookup(call.Name)
		if !ok {
			return nil, domain.E(domain.CodeProtocolViolation, op, fmt.Sprintf("unknown tool %q", call.Name), domain.ErrUnknownTool).
				WithMeta("tool", call.Name)
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", run.toolCalls)
		}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		run.trace.RecordCall(call)
		run.toolCalls++

		result, err := l.dispatch(ctx, tool, call, logger)
		if err != nil {
			return nil, err
		}
		run.trace.RecordResult(result)

		run.history = append(run.history,
			domain.Message{Role: domain.RoleAssistant, ToolCall: &call},
			domain.Message{Role: domain.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: encodeContent(result.Content), IsError: result.IsError},
		)
	}

	logger.Warn("turn budget exhausted", zap.Int("turns_used", run.turns))
	return run.respond(domain.StatusTurnBudgetExceeded, map[string]any{
		"status":          domain.StatusTurnBudgetExceeded,
		"turns_used":      run.turns,
		"tool_calls_used": run.toolCalls,
	}), nil
}

// dispatch runs one tool. Validation and handler failures become error
// results for the model; only fatal codes and cancellation abort the run.
func (l *Loop) dispatch(ctx context.Context, tool registeredTool, call domain.ToolCall, logger *zap.Logger) (domain.ToolResult, error) {
	ctx, span := l.tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	started := time.Now()
	result := domain.ToolResult{CallID: call.ID, Name: call.Name}

	content, err := l.invoke(ctx, tool, call)
	result.Duration = time.Since(started)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		domainErr := toolError(call.Name, err)
		if domainErr.Code.Fatal() {
			span.RecordError(domainErr)
			span.SetStatus(codes.Error, domainErr.Error())
			return result, domainErr
		}
		result.IsError = true
		result.Content = domainErr.ToolPayload()
		span.SetAttributes(attribute.String("tool.error", string(domainErr.Code)))
		logger.Info("tool returned error",
			telemetry.EventField(telemetry.EventToolError),
			telemetry.ToolField(call.Name),
			zap.String("code", string(domainErr.Code)),
			zap.String("message", domainErr.Message),
		)
	} else {
		result.Content = content
		logger.Info("tool call",
			telemetry.EventField(telemetry.EventToolCall),
			telemetry.ToolField(call.Name),
			telemetry.DurationField(result.Duration),
		)
	}
	l.metrics.ObserveToolCall(domain.ToolCallMetric{Tool: call.Name, IsError: result.IsError, Duration: result.Duration})
	return result, nil
}

func (l *Loop) invoke(ctx context.Context, tool registeredTool, call domain.ToolCall) (any, error) {
	if err := tool.validate(call.Arguments); err != nil {
		return nil, err
	}
	return tool.spec.Handler(ctx, call.Arguments)
}

func toolError(name string, err error) *domain.Error {
	if domainErr, ok := domain.AsError(err); ok {
		return domainErr
	}
	return domain.E(domain.CodeTransportFailure, "tool."+name, "", err)
}

func encodeContent(content any) string {
	data, err := json.Marshal(content)
	if err != nil {
		data, _ = json.Marshal(domain.E(domain.CodeProtocolViolation, "agent.encode", "tool result is not JSON-encodable", err).ToolPayload())
	}
	return string(data)
}
