package domain

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role labels a canonical conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one model request to invoke a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome handed back to the model for a ToolCall.
type ToolResult struct {
	CallID   string        `json:"call_id"`
	Name     string        `json:"name"`
	Content  any           `json:"content"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Message is a backend-neutral conversation turn.
// Assistant turns that request a tool carry ToolCall; tool turns carry
// ToolCallID, Name and the JSON-encoded result in Content.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content,omitempty"`
	ToolCall   *ToolCall `json:"tool_call,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	// IsError marks a tool message that carries an error payload.
	IsError bool `json:"is_error,omitempty"`
}

// TurnKind is the shape of a model turn.
type TurnKind string

const (
	TurnToolCall TurnKind = "tool_call"
	TurnFinal    TurnKind = "final"
)

// Usage reports token accounting when a backend provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelTurn is the single canonical shape every provider adapter returns.
type ModelTurn struct {
	Kind     TurnKind
	ToolCall *ToolCall
	Final    map[string]any
	Usage    Usage
}

// ToolDefinition is the model-facing description of a tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ToolHandler executes a tool with decoded arguments.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// ToolSpec binds a definition to its handler.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Handler     ToolHandler
}

// Definition strips the handler.
func (s ToolSpec) Definition() ToolDefinition {
	return ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
}

// AgentTrace is an append-only audit log of one run.
type AgentTrace struct {
	RunID   string
	calls   []ToolCall
	results []ToolResult
}

// NewAgentTrace starts an empty trace.
func NewAgentTrace(runID string) *AgentTrace {
	return &AgentTrace{RunID: runID}
}

// RecordCall appends a tool call.
func (t *AgentTrace) RecordCall(call ToolCall) {
	t.calls = append(t.calls, call)
}

// RecordResult appends a tool result.
func (t *AgentTrace) RecordResult(result ToolResult) {
	t.results = append(t.results, result)
}

// Calls returns a copy of the recorded calls.
func (t *AgentTrace) Calls() []ToolCall {
	return append([]ToolCall(nil), t.calls...)
}

// Results returns a copy of the recorded results.
func (t *AgentTrace) Results() []ToolResult {
	return append([]ToolResult(nil), t.results...)
}

// Snapshot renders the trace for JSON output.
func (t *AgentTrace) Snapshot() TraceSnapshot {
	return TraceSnapshot{RunID: t.RunID, ToolCalls: t.Calls(), ToolResults: t.Results()}
}

// TraceSnapshot is the serializable form of AgentTrace.
type TraceSnapshot struct {
	RunID       string       `json:"run_id"`
	ToolCalls   []ToolCall   `json:"tool_calls"`
	ToolResults []ToolResult `json:"tool_results"`
}

// AgentResponse is the terminal value of a run.
type AgentResponse struct {
	Status string         `json:"status"`
	Final  map[string]any `json:"final"`
	Trace  TraceSnapshot  `json:"trace"`
	Turns  int            `json:"turns"`
}
