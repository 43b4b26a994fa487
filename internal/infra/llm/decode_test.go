package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
)

func TestDecodeFinal(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]any
		wantErr bool
	}{
		{name: "plain object", content: `{"player_id": 8478402}`, want: map[string]any{"player_id": 8478402.0}},
		{name: "json fence", content: "```json\n{\"decision\": \"start\"}\n```", want: map[string]any{"decision": "start"}},
		{name: "bare fence", content: "```\n{\"a\": 1}\n```", want: map[string]any{"a": 1.0}},
		{name: "prose around object", content: "Here you go: {\"a\": true} thanks", want: map[string]any{"a": true}},
		{name: "empty", content: "   ", wantErr: true},
		{name: "array", content: `[1, 2]`, wantErr: true},
		{name: "null", content: `null`, wantErr: true},
		{name: "garbage", content: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFinal(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsCode(err, domain.CodeProtocolViolation))
				domainErr, ok := domain.AsError(err)
				require.True(t, ok)
				assert.Equal(t, "decode", domainErr.Op)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeFinal("")
	assert.True(t, errors.Is(err, domain.ErrEmptyModelResponse))
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", preview("short"))

	text := "a" + strings.Repeat("é", 100)
	got := preview(text)
	require.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "a"+strings.Repeat("é", 59)+"...", got)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, kind)

	kind, err = ParseKind(" Anthropic ")
	require.NoError(t, err)
	assert.Equal(t, KindAnthropic, kind)

	_, err = ParseKind("mistral")
	assert.True(t, domain.IsCode(err, domain.CodeInvalidConfig))
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("NHLAGENT_TEST_KEY", "from-env")

	key, err := resolveAPIKey(Config{Kind: KindOpenAI, APIKey: "inline", APIKeyEnv: "NHLAGENT_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "inline", key)

	key, err = resolveAPIKey(Config{Kind: KindOpenAI, APIKeyEnv: "NHLAGENT_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("GEMINI_API_KEY", "")
	_, err = resolveAPIKey(Config{Kind: KindGemini})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidConfig))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

type stubProvider struct {
	turn domain.ModelTurn
	err  error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Generate(context.Context, []domain.Message, []domain.ToolDefinition) (domain.ModelTurn, error) {
	return s.turn, s.err
}

type modelMetrics struct {
	domain.NoopMetrics
	latencies int
	tokens    []int
}

func (m *modelMetrics) ObserveModelLatency(string, string, time.Duration) { m.latencies++ }
func (m *modelMetrics) ObserveModelTokens(_ string, _ string, tokens int) {
	m.tokens = append(m.tokens, tokens)
}

func TestInstrumentObservesLatencyAndTokens(t *testing.T) {
	metrics := &modelMetrics{}
	provider := Instrument(stubProvider{turn: domain.ModelTurn{Kind: domain.TurnFinal, Usage: domain.Usage{TotalTokens: 42}}}, "m", metrics, nil)
	assert.Equal(t, "stub", provider.Name())

	_, err := provider.Generate(context.Background(), nil, nil)
	require.NoError(t, err)

	failing := Instrument(stubProvider{err: errors.New("boom")}, "m", metrics, nil)
	_, err = failing.Generate(context.Background(), nil, nil)
	require.Error(t, err)

	assert.Equal(t, 2, metrics.latencies)
	assert.Equal(t, []int{42}, metrics.tokens)
}
