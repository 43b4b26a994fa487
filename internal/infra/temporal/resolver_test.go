package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
)

type fakeFetcher struct {
	payloads map[string]any
	calls    []string
}

func (f *fakeFetcher) Get(_ context.Context, _ domain.Base, path string, _ map[string]string) (any, error) {
	f.calls = append(f.calls, path)
	payload, ok := f.payloads[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return payload, nil
}

func TestLookupResolverFetchesAndMemoizes(t *testing.T) {
	fetcher := &fakeFetcher{payloads: map[string]any{
		"gamecenter/2023020600/landing": map[string]any{"id": float64(2023020600), "gameDate": "2024-01-10"},
		"gamecenter/2023020601/landing": map[string]any{"id": float64(2023020601)},
	}}
	resolver := NewLookupResolver(fetcher)
	ctx := context.Background()

	date, err := resolver.ResolveGameDate(ctx, "2023020600")
	require.NoError(t, err)
	require.Equal(t, "2024-01-10", date.Format(domain.DateLayout))

	_, err = resolver.ResolveGameDate(ctx, "2023020600")
	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)

	_, err = resolver.ResolveGameDate(ctx, "2023020601")
	require.ErrorContains(t, err, "no game date")

	_, err = resolver.ResolveGameDate(ctx, "404")
	require.Error(t, err)

	_, err = resolver.ResolveGameDate(ctx, " ")
	require.Error(t, err)
}

func TestLookupResolverLearnsFromSchedule(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver := NewLookupResolver(fetcher)
	learned := resolver.Learn(map[string]any{
		"gameWeek": []any{
			map[string]any{
				"date": "2024-01-15",
				"games": []any{
					map[string]any{
						"id":       float64(2023020700),
						"awayTeam": map[string]any{"id": float64(10), "abbrev": "TOR"},
					},
				},
			},
		},
		"games": []any{
			map[string]any{"id": float64(2023020701), "gameDate": "2024-01-16"},
		},
	})
	require.Equal(t, 2, learned)

	date, err := resolver.ResolveGameDate(context.Background(), "2023020700")
	require.NoError(t, err)
	require.Equal(t, "2024-01-15", date.Format(domain.DateLayout))

	date, err = resolver.ResolveGameDate(context.Background(), "2023020701")
	require.NoError(t, err)
	require.Equal(t, "2024-01-16", date.Format(domain.DateLayout))
	require.Empty(t, fetcher.calls)

	_, err = resolver.ResolveGameDate(context.Background(), "10")
	require.Error(t, err)
}
