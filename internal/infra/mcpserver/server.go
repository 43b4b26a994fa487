// Package mcpserver exposes the tool surface to MCP clients.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/telemetry"
)

const defaultName = "nhlagent"

// Options tunes a Server.
type Options struct {
	Name    string
	Version string
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// Server serves a fixed set of tools.
type Server struct {
	server  *mcp.Server
	metrics domain.Metrics
	logger  *zap.Logger
}

type boundTool struct {
	spec     domain.ToolSpec
	resolved *jsonschema.Resolved
}

// New registers every spec. A spec whose schema does not resolve is an
// INVALID_CONFIG error.
func New(specs []domain.ToolSpec, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	name := opts.Name
	if name == "" {
		name = defaultName
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: version,
		}, &mcp.ServerOptions{HasTools: true}),
		metrics: metrics,
		logger:  logger.Named("mcpserver"),
	}
	for _, spec := range specs {
		bound := boundTool{spec: spec}
		schema := spec.Parameters
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, domain.E(domain.CodeInvalidConfig, "mcpserver.new", fmt.Sprintf("tool %s schema", spec.Name), err)
		}
		bound.resolved = resolved
		s.server.AddTool(&mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		}, s.handler(bound))
	}
	return s, nil
}

// Run serves on transport until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting")
	return s.server.Run(ctx, transport)
}

// RunStdio serves on stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches one session, for callers that manage transports.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) handler(tool boundTool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, _ = telemetry.EnsureRunMeta(ctx, "")
		started := time.Now()
		result, isError := s.call(ctx, tool, req)
		s.metrics.ObserveToolCall(domain.ToolCallMetric{
			Tool:     tool.spec.Name,
			IsError:  isError,
			Duration: time.Since(started),
		})
		return result, nil
	}
}

func (s *Server) call(ctx context.Context, tool boundTool, req *mcp.CallToolRequest) (*mcp.CallToolResult, bool) {
	op := "tool." + tool.spec.Name
	args := map[string]any{}
	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(domain.E(domain.CodeInvalidArgument, op, "arguments must be a JSON object", err)), true
		}
		if args == nil {
			args = map[string]any{}
		}
	}
	if err := tool.resolved.Validate(args); err != nil {
		return errorResult(domain.E(domain.CodeInvalidArgument, op, err.Error(), err)), true
	}

	out, err := tool.spec.Handler(ctx, args)
	if err != nil {
		telemetry.LoggerWithRun(ctx, s.logger).Info("tool call failed",
			telemetry.EventField(telemetry.EventToolError),
			telemetry.ToolField(tool.spec.Name),
			zap.Error(err),
		)
		return errorResult(domain.Wrap(domain.CodeTransportFailure, op, err)), true
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return errorResult(domain.E(domain.CodeTransportFailure, op, "encode result", err)), true
	}
	result := &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}}}
	var structured map[string]any
	if json.Unmarshal(raw, &structured) == nil && structured != nil {
		result.StructuredContent = structured
	}
	return result, false
}

func errorResult(err *domain.Error) *mcp.CallToolResult {
	payload := err.ToolPayload()
	text, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: payload,
	}
}
