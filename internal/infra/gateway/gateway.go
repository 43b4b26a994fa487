// Package gateway is the single chokepoint between tools and the NHL APIs.
// Every call is checked against the endpoint catalog and the temporal gate
// before any network I/O.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/catalog"
	"nhlagent/internal/infra/telemetry"
	"nhlagent/internal/infra/temporal"
)

// Transport performs an unchecked GET against one backend.
type Transport interface {
	Get(ctx context.Context, base domain.Base, path string, query map[string]string) (any, error)
}

// Options configures a Gateway.
type Options struct {
	Catalog   *catalog.Catalog
	Transport Transport
	Cutoff    domain.Cutoff
	// Resolver defaults to a LookupResolver over Transport.
	Resolver   *temporal.LookupResolver
	Metrics    domain.Metrics
	Logger     *zap.Logger
	MaxRetries int
	RetryBase  time.Duration
}

// CallResult is a successful, filtered gateway response.
type CallResult struct {
	Base         domain.Base       `json:"base"`
	Path         string            `json:"path"`
	PathTemplate string            `json:"path_template"`
	PathParams   map[string]string `json:"path_params"`
	QueryParams  map[string]string `json:"query_params"`
	Payload      any               `json:"payload"`
	// Filtered counts records removed by the as-of filter.
	Filtered int `json:"filtered_records,omitempty"`
}

// EndpointListing is the model-facing view of the catalog.
type EndpointListing struct {
	Category   string                 `json:"category,omitempty"`
	Count      int                    `json:"count"`
	Categories []string               `json:"categories"`
	Endpoints  []domain.EndpointEntry `json:"endpoints"`
}

type Gateway struct {
	catalog    *catalog.Catalog
	transport  Transport
	gate       *temporal.Gate
	resolver   *temporal.LookupResolver
	metrics    domain.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	maxRetries int
	retryBase  time.Duration
}

func New(opts Options) (*Gateway, error) {
	if opts.Catalog == nil {
		return nil, errors.New("gateway: catalog is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("gateway: transport is required")
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = temporal.NewLookupResolver(opts.Transport)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		catalog:    opts.Catalog,
		transport:  opts.Transport,
		gate:       temporal.NewGate(opts.Cutoff, resolver),
		resolver:   resolver,
		metrics:    metrics,
		logger:     logger.Named("gateway"),
		tracer:     otel.Tracer("nhlagent/gateway"),
		maxRetries: max(0, opts.MaxRetries),
		retryBase:  opts.RetryBase,
	}, nil
}

// Cutoff returns the as-of date enforced by this gateway.
func (g *Gateway) Cutoff() domain.Cutoff {
	return g.gate.Cutoff()
}

// Catalog returns the allow-list.
func (g *Gateway) Catalog() *catalog.Catalog {
	return g.catalog
}

// ListEndpoints describes allow-listed endpoints, optionally for one category.
func (g *Gateway) ListEndpoints(category string) EndpointListing {
	entries := g.catalog.List(category)
	return EndpointListing{
		Category:   category,
		Count:      len(entries),
		Categories: g.catalog.Categories(),
		Endpoints:  entries,
	}
}

// Call validates, dispatches and filters one request.
func (g *Gateway) Call(ctx context.Context, base, pathTemplate string, pathParams, queryParams map[string]any) (*CallResult, error) {
	const op = "gateway.call"
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("nhl.base", base),
		attribute.String("nhl.path_template", pathTemplate),
	))
	defer span.End()
	started := time.Now()

	result, entry, err := g.call(ctx, op, base, pathTemplate, pathParams, queryParams)
	metric := domain.GatewayCallMetric{
		Base:     entry.Base,
		Category: entry.Category,
		Outcome:  outcomeOf(err),
		Duration: time.Since(started),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(codeOf(err)))
		g.metrics.ObserveGatewayCall(metric)
		telemetry.LoggerWithRun(ctx, g.logger).Info("gateway call rejected",
			telemetry.EventField(telemetry.EventGatewayReject),
			telemetry.PathField(pathTemplate),
			zap.String("code", string(codeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	metric.Filtered = result.Filtered
	g.metrics.ObserveGatewayCall(metric)
	span.SetAttributes(
		attribute.String("nhl.path", result.Path),
		attribute.Int("nhl.filtered_records", result.Filtered),
	)
	return result, nil
}

func (g *Gateway) call(ctx context.Context, op, rawBase, pathTemplate string, rawPath, rawQuery map[string]any) (*CallResult, domain.EndpointEntry, error) {
	entry, ok := g.catalog.Lookup(pathTemplate)
	if !ok {
		return nil, domain.EndpointEntry{}, domain.E(domain.CodeCatalogViolation, op,
			fmt.Sprintf("path template %q is not in the endpoint allow-list; use list_endpoints to discover endpoints", pathTemplate), nil).
			WithMeta("path_template", pathTemplate)
	}
	base, ok := domain.ParseBase(rawBase)
	if !ok || base != entry.Base {
		return nil, entry, domain.E(domain.CodeCatalogViolation, op,
			fmt.Sprintf("path template %q is served by base %q, not %q", entry.Path, entry.Base, rawBase), nil).
			WithMeta("path_template", entry.Path).
			WithMeta("base", rawBase)
	}

	pathParams, err := stringifyParams(op, "path", rawPath)
	if err != nil {
		return nil, entry, err
	}
	queryParams, err := stringifyParams(op, "query", rawQuery)
	if err != nil {
		return nil, entry, err
	}

	if err := g.gate.ValidateRequest(ctx, entry, pathParams, queryParams); err != nil {
		return nil, entry, err
	}

	path := substitute(entry.Path, pathParams)
	payload, err := g.fetch(ctx, entry.Base, path, queryParams)
	if err != nil {
		return nil, entry, err
	}
	if entry.IsSchedule() {
		g.resolver.Learn(payload)
	}
	filtered, dropped := g.gate.FilterResponse(payload, entry)

	return &CallResult{
		Base:         entry.Base,
		Path:         path,
		PathTemplate: entry.Path,
		PathParams:   pathParams,
		QueryParams:  queryParams,
		Payload:      filtered,
		Filtered:     dropped,
	}, entry, nil
}

func (g *Gateway) fetch(ctx context.Context, base domain.Base, path string, query map[string]string) (any, error) {
	delay := newRetryDelay(g.retryBase, maxRetryDelay)
	for attempt := 0; ; attempt++ {
		payload, err := g.transport.Get(ctx, base, path, query)
		if err == nil {
			return payload, nil
		}
		domainErr, ok := domain.AsError(err)
		if !ok {
			domainErr = domain.Retryable(domain.CodeTransportFailure, "gateway.fetch", "", err)
			err = domainErr
		}
		if !domainErr.Retryable || attempt >= g.maxRetries {
			return nil, err
		}
		g.logger.Debug("retrying transport failure",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !delay.Wait(ctx) {
			return nil, err
		}
	}
}

func codeOf(err error) domain.ErrorCode {
	code, _ := domain.CodeFrom(err)
	return code
}

func outcomeOf(err error) domain.CallOutcome {
	if err == nil {
		return domain.CallOutcomeSuccess
	}
	switch codeOf(err) {
	case domain.CodeTemporalViolation:
		return domain.CallOutcomeTemporal
	case domain.CodeCatalogViolation, domain.CodeInvalidArgument:
		return domain.CallOutcomeCatalog
	default:
		return domain.CallOutcomeTransport
	}
}
