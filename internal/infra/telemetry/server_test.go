package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartHTTPServerServesMetrics(t *testing.T) {
	addr := freeAddr(t)
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.ObserveCacheLookup(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableMetrics: true,
			Registry:      registry,
		}, zap.NewNop())
	}()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(raw)
		return true
	}, 2*time.Second, 25*time.Millisecond)
	assert.Contains(t, body, "nhlagent_cache_lookups_total")

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServerHealthz(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go func() {
		_ = StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableHealthz: true,
			Health: func() HealthReport {
				select {
				case <-ready:
					return HealthReport{Status: "ok", Checks: map[string]any{"catalog_entries": 50}}
				default:
					return HealthReport{Status: "starting"}
				}
			},
		}, zap.NewNop())
	}()

	url := fmt.Sprintf("http://%s/healthz", addr)
	waitForStatus(t, url, http.StatusServiceUnavailable)
	close(ready)
	waitForStatus(t, url, http.StatusOK)
}

func TestStartHTTPServerDisabledIsNoop(t *testing.T) {
	require.NoError(t, StartHTTPServer(context.Background(), HTTPServerOptions{}, nil))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func waitForStatus(t *testing.T, url string, status int) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var report HealthReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return false
		}
		return resp.StatusCode == status
	}, 2*time.Second, 25*time.Millisecond)
}
