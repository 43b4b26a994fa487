// Package nhlapi performs GET requests against the NHL web and stats APIs.
package nhlapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/cache"
)

const maxBodyBytes = 32 << 20

// Options configures a Client. Zero values select defaults.
type Options struct {
	PrimaryBaseURL string
	StatsBaseURL   string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Cache          cache.Store
	Logger         *zap.Logger
	Metrics        domain.Metrics
}

// Client is the raw transport behind the gateway. It applies no allow-list
// or temporal rules of its own.
type Client struct {
	bases   map[domain.Base]string
	http    *http.Client
	cache   cache.Store
	timeout time.Duration
	logger  *zap.Logger
	metrics domain.Metrics
}

func NewClient(opts Options) *Client {
	primary := strings.TrimRight(opts.PrimaryBaseURL, "/")
	if primary == "" {
		primary = domain.DefaultPrimaryBaseURL
	}
	stats := strings.TrimRight(opts.StatsBaseURL, "/")
	if stats == "" {
		stats = domain.DefaultStatsBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultHTTPTimeoutSeconds * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	store := opts.Cache
	if store == nil {
		store = cache.NopStore{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &Client{
		bases:   map[domain.Base]string{domain.BasePrimary: primary, domain.BaseStats: stats},
		http:    httpClient,
		cache:   store,
		timeout: timeout,
		logger:  logger.Named("nhlapi"),
		metrics: metrics,
	}
}

// URL joins a base and path.
func (c *Client) URL(base domain.Base, path string) (string, error) {
	root, ok := c.bases[base]
	if !ok {
		return "", fmt.Errorf("unknown base %q", base)
	}
	return root + "/" + strings.TrimPrefix(path, "/"), nil
}

// CacheKey is the full URL with query parameters sorted by name.
func CacheKey(rawURL string, query map[string]string) string {
	if len(query) == 0 {
		return rawURL
	}
	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	return rawURL + "?" + values.Encode()
}

// Get fetches and decodes one JSON document.
func (c *Client) Get(ctx context.Context, base domain.Base, path string, query map[string]string) (any, error) {
	const op = "nhlapi.get"
	target, err := c.URL(base, path)
	if err != nil {
		return nil, domain.E(domain.CodeTransportFailure, op, err.Error(), err)
	}
	key := CacheKey(target, query)

	if body, ok, err := c.cache.Get(key); err != nil {
		c.logger.Warn("cache read failed", zap.String("url", key), zap.Error(err))
	} else if ok {
		var payload any
		if err := json.Unmarshal(body, &payload); err == nil {
			c.metrics.ObserveCacheLookup(true)
			return payload, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("url", key))
	}
	c.metrics.ObserveCacheLookup(false)

	body, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.E(domain.CodeTransportFailure, op, "response is not valid JSON", err).WithMeta("url", key)
	}
	if err := c.cache.Put(key, body); err != nil {
		c.logger.Warn("cache write failed", zap.String("url", key), zap.Error(err))
	}
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	const op = "nhlapi.fetch"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.E(domain.CodeTransportFailure, op, "build request", err).WithMeta("url", target)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		failure := domain.Retryable(domain.CodeTransportFailure, op, "request failed", err).WithMeta("url", target)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			failure.Message = fmt.Sprintf("request timed out after %s", c.timeout)
			failure.WithMeta("timeout", "true")
		}
		return nil, failure
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Retryable(domain.CodeTransportFailure, op, "read body", err).WithMeta("url", target)
	}
	c.logger.Debug("nhl api response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := domain.E(domain.CodeTransportFailure, op, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).
			WithMeta("url", target).
			WithMeta("status", strconv.Itoa(resp.StatusCode))
		failure.Retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, failure
	}
	return body, nil
}
