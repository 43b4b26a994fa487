package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/catalog"
)

type request struct {
	Base  domain.Base
	Path  string
	Query map[string]string
}

type stubTransport struct {
	mu       sync.Mutex
	calls    []request
	payloads map[string]any
	errs     []error
}

func (s *stubTransport) Get(_ context.Context, base domain.Base, path string, query map[string]string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, request{Base: base, Path: path, Query: query})
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if payload, ok := s.payloads[path]; ok {
		return payload, nil
	}
	return map[string]any{}, nil
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingMetrics struct {
	domain.NoopMetrics
	calls []domain.GatewayCallMetric
}

func (r *recordingMetrics) ObserveGatewayCall(metric domain.GatewayCallMetric) {
	r.calls = append(r.calls, metric)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load([]map[string]any{
		{"name": "standings_date", "base": "primary", "path": "standings/{date}", "category": "standings",
			"params_schema": map[string]any{"path": map[string]any{"date": "date"}}},
		{"name": "schedule_date", "base": "primary", "path": "schedule/{date}", "category": "schedule",
			"params_schema": map[string]any{"path": map[string]any{"date": "date"}}},
		{"name": "boxscore", "base": "primary", "path": "gamecenter/{game_id}/boxscore", "category": "game_information",
			"params_schema": map[string]any{"path": map[string]any{"game_id": "game_id"}}},
		{"name": "landing", "base": "primary", "path": "gamecenter/{game_id}/landing", "category": "game_information",
			"params_schema": map[string]any{"path": map[string]any{"game_id": "game_id"}}},
		{"name": "game_log", "base": "primary", "path": "player/{player}/game-log/{season}/{game_type}", "category": "players",
			"params_schema": map[string]any{"path": map[string]any{"player": "player_id", "season": "season", "game_type": "integer"}}},
		{"name": "skater_summary", "base": "stats", "path": "{lang}/skater/summary", "category": "players"},
	}, nil)
	require.NoError(t, err)
	return cat
}

func newGateway(t *testing.T, transport Transport, asOf string, opts ...func(*Options)) *Gateway {
	t.Helper()
	cutoff, err := domain.ParseCutoff(asOf)
	require.NoError(t, err)
	options := Options{Catalog: testCatalog(t), Transport: transport, Cutoff: cutoff, RetryBase: time.Millisecond}
	for _, opt := range opts {
		opt(&options)
	}
	gw, err := New(options)
	require.NoError(t, err)
	return gw
}

func TestCallRejectsFutureDateWithoutIO(t *testing.T) {
	transport := &stubTransport{}
	metrics := &recordingMetrics{}
	gw := newGateway(t, transport, "2024-01-15", func(o *Options) { o.Metrics = metrics })

	_, err := gw.Call(context.Background(), "primary", "standings/{date}", map[string]any{"date": "2024-01-20"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeTemporalViolation))
	assert.Zero(t, transport.count())
	require.Len(t, metrics.calls, 1)
	assert.Equal(t, domain.CallOutcomeTemporal, metrics.calls[0].Outcome)
	assert.Equal(t, "standings", metrics.calls[0].Category)
}

func TestCallRejectsUnknownTemplateBeforeGameLookup(t *testing.T) {
	transport := &stubTransport{}
	gw := newGateway(t, transport, "2024-01-15")

	_, err := gw.Call(context.Background(), "primary", "gamecenter/{game_id}/play-by-play", map[string]any{"game_id": 2023020600}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeCatalogViolation))
	assert.Zero(t, transport.count())
}

func TestCallRejectsBaseMismatch(t *testing.T) {
	transport := &stubTransport{}
	gw := newGateway(t, transport, "")

	_, err := gw.Call(context.Background(), "stats", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	require.True(t, domain.IsCode(err, domain.CodeCatalogViolation))

	_, err = gw.Call(context.Background(), "web", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.count())
}

func TestCallSubstitutesAndFilters(t *testing.T) {
	transport := &stubTransport{payloads: map[string]any{
		"player/8478402/game-log/20232024/2": map[string]any{
			"gameLog": []any{
				map[string]any{"gameId": float64(1), "gameDate": "2024-01-14", "goals": float64(1)},
				map[string]any{"gameId": float64(2), "gameDate": "2024-01-18", "goals": float64(2)},
			},
		},
	}}
	gw := newGateway(t, transport, "2024-01-15")

	result, err := gw.Call(context.Background(), "primary", "/player/{player}/game-log/{season}/{game_type}",
		map[string]any{"player": float64(8478402), "season": 20232024, "game_type": "2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "player/8478402/game-log/20232024/2", result.Path)
	assert.Equal(t, "player/{player}/game-log/{season}/{game_type}", result.PathTemplate)
	assert.Equal(t, 1, result.Filtered)
	want := map[string]any{"gameLog": []any{
		map[string]any{"gameId": float64(1), "gameDate": "2024-01-14", "goals": float64(1)},
	}}
	if diff := cmp.Diff(want, result.Payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCallLeavesUnmatchedTokens(t *testing.T) {
	transport := &stubTransport{}
	gw := newGateway(t, transport, "")

	result, err := gw.Call(context.Background(), "stats", "{lang}/skater/summary", nil, map[string]any{"limit": 5, "isAggregate": false})
	require.NoError(t, err)
	assert.Equal(t, "{lang}/skater/summary", result.Path)
	assert.Equal(t, map[string]string{"limit": "5", "isAggregate": "false"}, transport.calls[0].Query)
}

func TestCallRejectsNestedParams(t *testing.T) {
	transport := &stubTransport{}
	gw := newGateway(t, transport, "")

	_, err := gw.Call(context.Background(), "stats", "{lang}/skater/summary", map[string]any{"lang": []any{"en"}}, nil)
	require.True(t, domain.IsCode(err, domain.CodeInvalidArgument))
	assert.Zero(t, transport.count())
}

func TestCallResolvesGameDatesFromSchedule(t *testing.T) {
	transport := &stubTransport{payloads: map[string]any{
		"schedule/2024-01-08": map[string]any{"gameWeek": []any{
			map[string]any{"date": "2024-01-10", "games": []any{map[string]any{"id": float64(2023020600)}}},
			map[string]any{"date": "2024-01-17", "games": []any{map[string]any{"id": float64(2023020700)}}},
		}},
	}}
	gw := newGateway(t, transport, "2024-01-15")
	ctx := context.Background()

	_, err := gw.Call(ctx, "primary", "schedule/{date}", map[string]any{"date": "2024-01-08"}, nil)
	require.NoError(t, err)

	_, err = gw.Call(ctx, "primary", "gamecenter/{game_id}/boxscore", map[string]any{"game_id": 2023020600}, nil)
	require.NoError(t, err)

	_, err = gw.Call(ctx, "primary", "gamecenter/{game_id}/boxscore", map[string]any{"game_id": 2023020700}, nil)
	require.True(t, domain.IsCode(err, domain.CodeTemporalViolation))

	// Schedule plus one box score; the learned dates needed no landing lookups.
	assert.Equal(t, 2, transport.count())
}

func TestCallRetriesRetryableFailures(t *testing.T) {
	transport := &stubTransport{errs: []error{
		domain.Retryable(domain.CodeTransportFailure, "nhlapi.fetch", "unexpected status 502", nil),
		nil,
	}}
	gw := newGateway(t, transport, "", func(o *Options) { o.MaxRetries = 2 })

	_, err := gw.Call(context.Background(), "primary", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.count())
}

func TestCallDoesNotRetryPermanentFailures(t *testing.T) {
	transport := &stubTransport{errs: []error{
		domain.E(domain.CodeTransportFailure, "nhlapi.fetch", "unexpected status 404", nil),
	}}
	gw := newGateway(t, transport, "", func(o *Options) { o.MaxRetries = 3 })

	_, err := gw.Call(context.Background(), "primary", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	require.True(t, domain.IsCode(err, domain.CodeTransportFailure))
	assert.Equal(t, 1, transport.count())

	plain := &stubTransport{errs: []error{errors.New("boom")}}
	gw = newGateway(t, plain, "")
	_, err = gw.Call(context.Background(), "primary", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	domainErr, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, domainErr.Retryable)
}

func TestListEndpoints(t *testing.T) {
	gw := newGateway(t, &stubTransport{}, "")

	all := gw.ListEndpoints("")
	assert.Equal(t, 6, all.Count)
	assert.Contains(t, all.Categories, "schedule")

	players := gw.ListEndpoints("Players")
	require.Equal(t, 2, players.Count)
	for _, entry := range players.Endpoints {
		assert.Equal(t, "players", entry.Category)
	}
}

func TestCallNeverReturnsFutureRecords(t *testing.T) {
	records := make([]any, 0, 30)
	for day := 1; day <= 30; day++ {
		records = append(records, map[string]any{
			"gameDate": fmt.Sprintf("2024-01-%02d", day),
			"boxes":    []any{map[string]any{"date": fmt.Sprintf("2024-02-%02d", day%28+1)}},
		})
	}
	transport := &stubTransport{payloads: map[string]any{
		"standings/2024-01-10": map[string]any{"standings": records},
	}}
	gw := newGateway(t, transport, "2024-01-15")

	result, err := gw.Call(context.Background(), "primary", "standings/{date}", map[string]any{"date": "2024-01-10"}, nil)
	require.NoError(t, err)
	kept := result.Payload.(map[string]any)["standings"].([]any)
	require.Len(t, kept, 15)
	for _, item := range kept {
		record := item.(map[string]any)
		date, err := domain.ParseDate(record["gameDate"].(string))
		require.NoError(t, err)
		assert.False(t, gw.Cutoff().After(date))
		assert.Empty(t, record["boxes"])
	}
}

func embeddedGateway(t *testing.T, transport Transport, asOf string) *Gateway {
	t.Helper()
	cat, err := catalog.NewLoader(nil).Default(context.Background())
	require.NoError(t, err)
	cutoff, err := domain.ParseCutoff(asOf)
	require.NoError(t, err)
	gw, err := New(Options{Catalog: cat, Transport: transport, Cutoff: cutoff, RetryBase: time.Millisecond})
	require.NoError(t, err)
	return gw
}

func TestCallWithholdsSeasonAggregatesMidSeason(t *testing.T) {
	transport := &stubTransport{payloads: map[string]any{
		"club-stats/TOR/20232024/2": map[string]any{
			"season":   "20232024",
			"gameType": float64(2),
			"skaters": []any{
				map[string]any{"playerId": float64(8479318), "gamesPlayed": float64(82), "goals": float64(69)},
			},
			"goalies": []any{
				map[string]any{"playerId": float64(8480045), "gamesPlayed": float64(49), "wins": float64(25)},
			},
		},
		"player/8479318/landing": map[string]any{
			"playerId":  float64(8479318),
			"firstName": map[string]any{"default": "Auston"},
			"featuredStats": map[string]any{
				"season": float64(20232024),
				"regularSeason": map[string]any{
					"subSeason": map[string]any{"gamesPlayed": float64(81), "goals": float64(69)},
				},
			},
		},
	}}
	gw := embeddedGateway(t, transport, "2024-01-15")

	stats, err := gw.Call(context.Background(), "primary", "club-stats/{team}/{season}/{game_type}",
		map[string]any{"team": "TOR", "season": "20232024", "game_type": 2}, nil)
	require.NoError(t, err)
	payload := stats.Payload.(map[string]any)
	assert.Empty(t, payload["skaters"])
	assert.Empty(t, payload["goalies"])
	assert.Equal(t, 2, stats.Filtered)

	landing, err := gw.Call(context.Background(), "primary", "player/{player}/landing",
		map[string]any{"player": 8479318}, nil)
	require.NoError(t, err)
	assert.NotContains(t, landing.Payload.(map[string]any), "featuredStats")
	assert.Equal(t, map[string]any{"default": "Auston"}, landing.Payload.(map[string]any)["firstName"])
	assert.Equal(t, 1, landing.Filtered)
}

func TestEmbeddedCatalogLenientOnlyForReferenceData(t *testing.T) {
	gw := embeddedGateway(t, &stubTransport{}, "2024-01-15")
	for _, path := range []string{
		"club-stats/{team}/{season}/{game_type}",
		"roster/{team}/{season}",
		"roster-season/{team}",
		"prospects/{team}",
		"player/{player}/landing",
	} {
		entry, ok := gw.catalog.Lookup(path)
		require.True(t, ok, path)
		assert.Equal(t, domain.DatePolicyStrict, entry.EffectiveDatePolicy(), path)
	}
}
