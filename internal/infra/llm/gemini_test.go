package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"nhlagent/internal/domain"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func candidate(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: &genai.Content{Role: string(genai.RoleModel), Parts: parts}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}
}

func TestGeminiRequestAndFunctionCall(t *testing.T) {
	fake := &fakeGenerator{resp: candidate(&genai.Part{FunctionCall: &genai.FunctionCall{
		Name: "list_endpoints",
		Args: map[string]any{"category": "stats"},
	}})}
	provider := &GeminiProvider{models: fake, model: "gemini-test", maxTokens: 256}

	turn, err := provider.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "system prompt"},
		{Role: domain.RoleUser, Content: "q"},
		{Role: domain.RoleAssistant, ToolCall: &domain.ToolCall{ID: "c1", Name: "call_endpoint", Arguments: map[string]any{"base": "primary"}}},
		{Role: domain.RoleTool, ToolCallID: "c1", Name: "call_endpoint", Content: `[1,2]`},
	}, []domain.ToolDefinition{scoreTool})
	require.NoError(t, err)
	require.Equal(t, domain.TurnToolCall, turn.Kind)
	assert.Equal(t, "list_endpoints", turn.ToolCall.Name)
	assert.NotEmpty(t, turn.ToolCall.ID, "missing ids are generated")
	assert.Equal(t, 6, turn.Usage.TotalTokens)

	assert.Equal(t, "gemini-test", fake.model)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "system prompt", fake.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(256), fake.config.MaxOutputTokens)
	require.Len(t, fake.config.Tools, 1)
	assert.Equal(t, "score_player_window", fake.config.Tools[0].FunctionDeclarations[0].Name)

	require.Len(t, fake.contents, 3)
	assert.Equal(t, "user", fake.contents[0].Role)
	assert.Equal(t, "model", fake.contents[1].Role)
	assert.Equal(t, "call_endpoint", fake.contents[1].Parts[0].FunctionCall.Name)
	response := fake.contents[2].Parts[0].FunctionResponse
	require.NotNil(t, response)
	assert.Equal(t, map[string]any{"output": []any{1.0, 2.0}}, response.Response)
}

func TestGeminiFinalAndErrors(t *testing.T) {
	fake := &fakeGenerator{resp: candidate(
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{Text: `{"player_id": 3}`},
	)}
	provider := &GeminiProvider{models: fake, model: "m"}
	turn, err := provider.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnFinal, turn.Kind)
	assert.Equal(t, 3.0, turn.Final["player_id"])
	assert.Nil(t, fake.config.Tools)

	fake.resp = candidate(
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "a"}},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "b"}},
	)
	_, err = provider.Generate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrMultipleToolCalls)

	fake.resp = &genai.GenerateContentResponse{}
	_, err = provider.Generate(context.Background(), nil, nil)
	assert.True(t, domain.IsCode(err, domain.CodeProtocolViolation))

	fake.err = errors.New("unavailable")
	_, err = provider.Generate(context.Background(), nil, nil)
	domainErr, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, domainErr.Retryable)
}

func TestFunctionResponseShapes(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1.0}, functionResponse(`{"a":1}`))
	assert.Equal(t, map[string]any{"output": "plain"}, functionResponse("plain"))
}
