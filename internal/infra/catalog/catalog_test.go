package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
)

func baseTable() []map[string]any {
	return []map[string]any{
		{
			"name":     "x_id",
			"base":     "primary",
			"path":     "x/{id}",
			"category": "misc",
			"cost":     1,
			"params_schema": map[string]any{
				"path":  map[string]any{"id": "string"},
				"query": map[string]any{},
			},
			"description": "X endpoint",
		},
		{
			"name":     "schedule_date",
			"base":     "web",
			"path":     "schedule/{date}",
			"category": "schedule",
			"cost":     2,
		},
	}
}

func TestMergeOverrideReplacesScalarOnly(t *testing.T) {
	merged := MergeOverrides(baseTable(), []any{
		map[string]any{"path": "x/{id}", "cost": 3},
	})

	want := baseTable()
	want[0]["cost"] = 3
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged table mismatch (-want +got):\n%s", diff)
	}

	cat, err := Load(baseTable(), []any{map[string]any{"path": "x/{id}", "cost": 3}})
	require.NoError(t, err)
	entry, ok := cat.Lookup("x/{id}")
	require.True(t, ok)
	require.Equal(t, 3, entry.Cost)
	require.Equal(t, "x_id", entry.Name)
	require.Equal(t, "misc", entry.Category)
	require.Equal(t, "X endpoint", entry.Description)
	require.Equal(t, domain.BasePrimary, entry.Base)
}

func TestMergeMatchesByNameAndAppends(t *testing.T) {
	merged := MergeOverrides(baseTable(), []any{
		map[string]any{"name": "schedule_date", "description": "fixtures"},
		map[string]any{"name": "new_one", "path": "new/{thing}", "base": "stats"},
		"not a mapping",
		42,
	})

	require.Len(t, merged, 3)
	require.Equal(t, "fixtures", merged[1]["description"])
	require.Equal(t, "schedule/{date}", merged[1]["path"])
	require.Equal(t, "new/{thing}", merged[2]["path"])
}

func TestMergeDeepMergesParamSchema(t *testing.T) {
	merged := MergeOverrides(baseTable(), []any{
		map[string]any{
			"path": "x/{id}",
			"params_schema": map[string]any{
				"path":  map[string]any{"id": "game_id"},
				"query": map[string]any{"limit": "integer"},
			},
		},
	})

	want := map[string]any{
		"path":  map[string]any{"id": "game_id"},
		"query": map[string]any{"limit": "integer"},
	}
	if diff := cmp.Diff(want, merged[0]["params_schema"]); diff != "" {
		t.Fatalf("params schema mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	overrides := []any{
		map[string]any{"path": "x/{id}", "cost": 3, "params_schema": map[string]any{"query": map[string]any{"q": "string"}}},
		map[string]any{"name": "added", "path": "added/{a}"},
		map[string]any{"name": "schedule_date", "date_policy": "lenient"},
	}
	once := MergeOverrides(baseTable(), overrides)
	twice := MergeOverrides(once, overrides)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := baseTable()
	override := map[string]any{
		"path":          "x/{id}",
		"params_schema": map[string]any{"path": map[string]any{"id": "game_id"}},
	}
	merged := MergeOverrides(base, []any{override})
	merged[0]["params_schema"].(map[string]any)["path"].(map[string]any)["id"] = "mutated"

	if diff := cmp.Diff(baseTable(), base); diff != "" {
		t.Fatalf("base mutated (-want +got):\n%s", diff)
	}
	require.Equal(t, "game_id", override["params_schema"].(map[string]any)["path"].(map[string]any)["id"])
}

func TestLoadValidation(t *testing.T) {
	_, err := Load([]map[string]any{
		{"path": "", "name": "empty"},
		{"path": "a", "base": "ftp"},
		{"path": "b", "cost": 0},
		{"path": "c", "method": "POST"},
		{"path": "d", "date_policy": "sometimes"},
	}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidConfig))
	for _, want := range []string{"path is required", "base must be primary or stats", "cost must be >= 1", "method must be GET", "date_policy"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = Load([]map[string]any{{"path": "a"}, {"path": "a", "name": "other"}}, nil)
	require.ErrorContains(t, err, "duplicate path")

	_, err = Load(nil, nil)
	require.Error(t, err)
}

func TestLoadDefaultsMissingFields(t *testing.T) {
	cat, err := Load([]map[string]any{
		{"path": "/gamecenter/{game_id}/boxscore"},
		{"path": "{lang}/skater/summary", "base": "stats", "params_schema": map[string]any{"cayenneExp": "string"}},
	}, nil)
	require.NoError(t, err)

	box, ok := cat.Lookup("gamecenter/{game_id}/boxscore")
	require.True(t, ok)
	assert.Equal(t, "gamecenter_game_id_boxscore", box.Name)
	assert.Equal(t, "gamecenter", box.Category)
	assert.Equal(t, 3, box.Cost)
	assert.Equal(t, domain.DatePolicyStrict, box.DatePolicy)
	assert.Equal(t, map[string]string{"game_id": "string"}, box.ParamSchema.Path)

	stats, ok := cat.Lookup("{lang}/skater/summary")
	require.True(t, ok)
	assert.Equal(t, "skater", stats.Category)
	assert.Equal(t, 3, stats.Cost)
	assert.Equal(t, map[string]string{"lang": "string"}, stats.ParamSchema.Path)
	assert.Equal(t, map[string]string{"cayenneExp": "string"}, stats.ParamSchema.Query)
}

func TestListFiltersByCategoryAndCopies(t *testing.T) {
	cat, err := Load(baseTable(), nil)
	require.NoError(t, err)

	require.Len(t, cat.List(""), 2)
	schedule := cat.List("SCHEDULE")
	require.Len(t, schedule, 1)
	require.Equal(t, "schedule/{date}", schedule[0].Path)
	require.Empty(t, cat.List("nope"))
	require.Equal(t, []string{"misc", "schedule"}, cat.Categories())

	entries := cat.List("misc")
	entries[0].ParamSchema.Path["id"] = "mutated"
	again, _ := cat.Lookup("x/{id}")
	require.Equal(t, "string", again.ParamSchema.Path["id"])

	_, ok := cat.Lookup("not/{listed}")
	require.False(t, ok)
}

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := NewLoader(zap.NewNop()).Default(context.Background())
	require.NoError(t, err)

	gameLog, ok := cat.Lookup(domain.PathPlayerGameLog)
	require.True(t, ok)
	assert.Equal(t, domain.ParamKindSeason, gameLog.ParamSchema.Path["season"])
	assert.Equal(t, domain.ParamKindPlayerID, gameLog.ParamSchema.Path["player"])
	assert.Equal(t, []string{"gameDate"}, gameLog.DateFields)

	box, ok := cat.Lookup(domain.PathBoxScore)
	require.True(t, ok)
	assert.Equal(t, domain.ParamKindGameID, box.ParamSchema.Path["game_id"])

	schedule, ok := cat.Lookup(domain.PathScheduleDate)
	require.True(t, ok)
	assert.True(t, schedule.IsSchedule())

	for _, path := range []string{domain.PathGameLanding, domain.PathClubSchedule} {
		_, ok := cat.Lookup(path)
		assert.True(t, ok, path)
	}
}

func TestLoaderReadsFilesWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NHLAGENT_TEST_COST", "5")
	basePath := writeFile(t, dir, "base.json", `[{"name":"x_id","base":"primary","path":"x/{id}","category":"misc","cost":1}]`)
	overridesPath := writeFile(t, dir, "overrides.yaml", "overrides:\n  - path: x/{id}\n    cost: ${NHLAGENT_TEST_COST}\n  - just a string\n")

	cat, err := NewLoader(nil).Load(context.Background(), basePath, overridesPath)
	require.NoError(t, err)
	entry, ok := cat.Lookup("x/{id}")
	require.True(t, ok)
	require.Equal(t, 5, entry.Cost)
}

func TestGenerateFromReadme(t *testing.T) {
	readme := strings.Join([]string{
		"# NHL Web API Documentation",
		"## Players",
		"### Player Information",
		"#### Get Game Log",
		"- **Endpoint**: `/v1/player/{player}/game-log/{season}/{game-type}`",
		"```",
		"Endpoint: /v1/ignored/in/code",
		"```",
		"### Game Information",
		"- **Endpoint**: `https://api-web.nhle.com/v1/gamecenter/{game-id}/boxscore`",
		"- **Endpoint**: `/v1/gamecenter/{game-id}/boxscore`",
		"# NHL Stats API Documentation",
		"## Skaters",
		"- **Endpoint**: `/{lang}/skater/summary`",
		"### Edge",
		"- **Endpoint**: `https://api-web.nhle.com/v1/edge/skater-detail/{player}/{season}/{game-type}`",
	}, "\n")

	table, err := Generate(strings.NewReader(readme))
	require.NoError(t, err)
	require.Len(t, table, 5)

	assert.Equal(t, "player/{player}/game-log/{season}/{game_type}", table[0]["path"])
	assert.Equal(t, "player_information", table[0]["category"])
	assert.Equal(t, "Get Game Log endpoint", table[0]["description"])
	assert.Equal(t, 1, table[0]["cost"])
	assert.Equal(t, map[string]any{
		"path":  map[string]any{"player": "string", "season": "string", "game_type": "string"},
		"query": map[string]any{},
	}, table[0]["params_schema"])

	assert.Equal(t, "gamecenter_game_id_boxscore", table[1]["name"])
	assert.Equal(t, "gamecenter_game_id_boxscore_2", table[2]["name"])
	assert.Equal(t, 3, table[1]["cost"])

	assert.Equal(t, "stats", table[3]["base"])
	assert.Equal(t, "{lang}/skater/summary", table[3]["path"])
	assert.Equal(t, 3, table[3]["cost"])

	assert.Equal(t, "primary", table[4]["base"])
	assert.Equal(t, 4, table[4]["cost"])

	// Generated tables load once duplicates are merged away by path.
	_, err = Load(table[:2], nil)
	require.NoError(t, err)
}

func TestWriteTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "catalog.json")
	require.NoError(t, WriteTable(path, baseTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	items, err := DecodeTable(data, "endpoints")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
