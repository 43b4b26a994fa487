package mcpserver

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
)

type toolMetrics struct {
	domain.NoopMetrics
	calls []domain.ToolCallMetric
}

func (m *toolMetrics) ObserveToolCall(metric domain.ToolCallMetric) {
	m.calls = append(m.calls, metric)
}

func testSpecs() []domain.ToolSpec {
	return []domain.ToolSpec{
		{
			Name:        "score_player_window",
			Description: "score",
			Parameters: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"player_id"},
				Properties: map[string]*jsonschema.Schema{
					"player_id": {Type: "integer"},
				},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				if args["player_id"] == 1.0 {
					return nil, domain.E(domain.CodeTemporalViolation, "scoring", "after cutoff", nil).WithMeta("as_of", "2024-01-15")
				}
				return map[string]any{"player_id": args["player_id"], "fantasy_points": 5.0}, nil
			},
		},
		{
			Name:    "list_endpoints",
			Handler: func(context.Context, map[string]any) (any, error) { return map[string]any{"count": 0}, nil },
		},
	}
}

func connect(t *testing.T, ctx context.Context, server *Server) *mcp.ClientSession {
	t.Helper()
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServerListsEveryTool(t *testing.T) {
	ctx := context.Background()
	server, err := New(testSpecs(), Options{})
	require.NoError(t, err)
	session := connect(t, ctx, server)

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"score_player_window", "list_endpoints"}, names)
}

func TestServerCallTool(t *testing.T) {
	ctx := context.Background()
	metrics := &toolMetrics{}
	server, err := New(testSpecs(), Options{Metrics: metrics})
	require.NoError(t, err)
	session := connect(t, ctx, server)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "score_player_window",
		Arguments: map[string]any{"player_id": 8479318},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	structured, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5.0, structured["fantasy_points"])
	require.Len(t, metrics.calls, 1)
	assert.False(t, metrics.calls[0].IsError)
}

func TestServerToolErrorsAreResults(t *testing.T) {
	ctx := context.Background()
	server, err := New(testSpecs(), Options{})
	require.NoError(t, err)
	session := connect(t, ctx, server)

	cases := []struct {
		name string
		args map[string]any
		code string
	}{
		{name: "schema violation", args: map[string]any{"player_id": "x"}, code: "INVALID_ARGUMENT"},
		{name: "missing required", args: map[string]any{}, code: "INVALID_ARGUMENT"},
		{name: "handler error", args: map[string]any{"player_id": 1}, code: "TEMPORAL_VIOLATION"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "score_player_window", Arguments: tc.args})
			require.NoError(t, err)
			assert.True(t, res.IsError)
			structured, ok := res.StructuredContent.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.code, structured["error"])
		})
	}
}

func TestNewRejectsUnresolvableSchema(t *testing.T) {
	specs := []domain.ToolSpec{{
		Name:       "broken",
		Parameters: &jsonschema.Schema{Type: "object", Ref: "#/$defs/missing"},
		Handler:    func(context.Context, map[string]any) (any, error) { return nil, nil },
	}}
	_, err := New(specs, Options{})
	assert.True(t, domain.IsCode(err, domain.CodeInvalidConfig))
}
