package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newAnthropic(Config{
		Kind:    KindAnthropic,
		Model:   "claude-test",
		BaseURL: server.URL + "/",
		Timeout: 5 * time.Second,
	}, "secret")
}

func TestAnthropicRequestShape(t *testing.T) {
	var captured anthropicRequest
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"player_id\": 8478402}"}],"usage":{"input_tokens":7,"output_tokens":3}}`))
	})

	turn, err := provider.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "be precise"},
		{Role: domain.RoleUser, Content: "who?"},
		{Role: domain.RoleAssistant, ToolCall: &domain.ToolCall{ID: "toolu_1", Name: "list_endpoints", Arguments: nil}},
		{Role: domain.RoleTool, ToolCallID: "toolu_1", Name: "list_endpoints", Content: `{"count":2}`},
	}, []domain.ToolDefinition{scoreTool})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnFinal, turn.Kind)
	assert.Equal(t, 8478402.0, turn.Final["player_id"])
	assert.Equal(t, 10, turn.Usage.TotalTokens)

	assert.Equal(t, "claude-test", captured.Model)
	assert.Equal(t, domain.DefaultAnthropicMaxTokens, captured.MaxTokens)
	assert.Equal(t, "be precise", captured.System)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "tool_use", captured.Messages[1].Content[0].Type)
	assert.JSONEq(t, `{}`, string(captured.Messages[1].Content[0].Input))
	assert.Equal(t, "user", captured.Messages[2].Role)
	assert.Equal(t, "tool_result", captured.Messages[2].Content[0].Type)
	assert.Equal(t, "toolu_1", captured.Messages[2].Content[0].ToolUseID)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "score_player_window", captured.Tools[0].Name)
	assert.Contains(t, string(captured.Tools[0].InputSchema), `"player_id"`)
}

func TestAnthropicFlagsFailedToolResults(t *testing.T) {
	var raw map[string]any
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &raw))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{}"}]}`))
	})

	_, err := provider.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "who?"},
		{Role: domain.RoleAssistant, ToolCall: &domain.ToolCall{ID: "toolu_1", Name: "score_player_window", Arguments: map[string]any{"player_id": "x"}}},
		{Role: domain.RoleTool, ToolCallID: "toolu_1", Name: "score_player_window", Content: `{"error":"INVALID_ARGUMENT"}`, IsError: true},
		{Role: domain.RoleAssistant, ToolCall: &domain.ToolCall{ID: "toolu_2", Name: "list_endpoints", Arguments: nil}},
		{Role: domain.RoleTool, ToolCallID: "toolu_2", Name: "list_endpoints", Content: `{"count":2}`},
	}, []domain.ToolDefinition{scoreTool})
	require.NoError(t, err)

	messages := raw["messages"].([]any)
	require.Len(t, messages, 5)
	failed := messages[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", failed["type"])
	assert.Equal(t, true, failed["is_error"])
	ok := messages[4].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", ok["type"])
	assert.NotContains(t, ok, "is_error")
}

func TestAnthropicToolUseTurn(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[
			{"type":"text","text":"Let me look."},
			{"type":"tool_use","id":"toolu_9","name":"list_endpoints","input":{"category":"schedule"}}
		],"stop_reason":"tool_use"}`))
	})
	turn, err := provider.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	require.Equal(t, domain.TurnToolCall, turn.Kind)
	assert.Equal(t, "toolu_9", turn.ToolCall.ID)
	assert.Equal(t, map[string]any{"category": "schedule"}, turn.ToolCall.Arguments)
}

func TestAnthropicMultipleToolUses(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[
			{"type":"tool_use","id":"a","name":"score_player_window","input":{}},
			{"type":"tool_use","id":"b","name":"list_endpoints","input":{}}
		]}`))
	})
	_, err := provider.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMultipleToolCalls)
	assert.Contains(t, err.Error(), "score_player_window")
}

func TestAnthropicStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusBadRequest, retryable: false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			provider := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})
			_, err := provider.Generate(context.Background(), nil, nil)
			require.Error(t, err)
			domainErr, ok := domain.AsError(err)
			require.True(t, ok)
			assert.Equal(t, domain.CodeTransportFailure, domainErr.Code)
			assert.Equal(t, tt.retryable, domainErr.Retryable)
		})
	}
}

func TestAnthropicEmptyTextIsProtocolViolation(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	})
	_, err := provider.Generate(context.Background(), nil, nil)
	assert.True(t, domain.IsCode(err, domain.CodeProtocolViolation))
	assert.ErrorIs(t, err, domain.ErrEmptyModelResponse)
}
