package nhlapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/cache"
)

func TestCacheKeySortsQuery(t *testing.T) {
	key := CacheKey("https://api.nhle.com/stats/rest/en/skater/summary", map[string]string{
		"limit":      "5",
		"cayenneExp": "seasonId=20232024",
	})
	require.Equal(t, "https://api.nhle.com/stats/rest/en/skater/summary?cayenneExp=seasonId%3D20232024&limit=5", key)
	require.Equal(t, "https://x/y", CacheKey("https://x/y", nil))
}

func TestGetDecodesAndCaches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/schedule/2024-01-15", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gameWeek":[]}`))
	}))
	defer server.Close()

	store, err := cache.NewDiskStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	client := NewClient(Options{PrimaryBaseURL: server.URL + "/v1/", Cache: store})

	for i := 0; i < 2; i++ {
		payload, err := client.Get(context.Background(), domain.BasePrimary, "schedule/2024-01-15", nil)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"gameWeek": []any{}}, payload)
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestGetRoutesStatsBaseWithQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats/rest/en/team", r.URL.Path)
		assert.Equal(t, "triCode", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`{"data":[{"id":10,"triCode":"TOR"}]}`))
	}))
	defer server.Close()

	client := NewClient(Options{StatsBaseURL: server.URL + "/stats/rest"})
	payload, err := client.Get(context.Background(), domain.BaseStats, "/en/team", map[string]string{"sort": "triCode"})
	require.NoError(t, err)
	require.Len(t, payload.(map[string]any)["data"], 1)
}

func TestGetStatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusNotFound, retryable: false},
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusTooManyRequests, retryable: true},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(Options{PrimaryBaseURL: server.URL})
		_, err := client.Get(context.Background(), domain.BasePrimary, "x", nil)
		server.Close()

		require.Error(t, err)
		domainErr, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeTransportFailure, domainErr.Code)
		assert.Equal(t, tc.retryable, domainErr.Retryable, tc.status)
	}
}

func TestGetTimeoutIsRetryableTransportFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Options{PrimaryBaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Get(context.Background(), domain.BasePrimary, "slow", nil)
	require.Error(t, err)
	domainErr, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeTransportFailure, domainErr.Code)
	assert.True(t, domainErr.Retryable)
	assert.Equal(t, "true", domainErr.Meta["timeout"])
}

func TestGetRejectsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client := NewClient(Options{PrimaryBaseURL: server.URL})
	_, err := client.Get(context.Background(), domain.BasePrimary, "x", nil)
	require.True(t, domain.IsCode(err, domain.CodeTransportFailure))

	_, err = client.Get(context.Background(), domain.Base("ftp"), "x", nil)
	require.True(t, domain.IsCode(err, domain.CodeTransportFailure))
}
