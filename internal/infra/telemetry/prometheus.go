package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nhlagent/internal/domain"
)

type PrometheusMetrics struct {
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	filteredRecords *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	modelLatency    *prometheus.HistogramVec
	modelTokens     *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runTurns        prometheus.Histogram
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		gatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_gateway_calls_total",
				Help: "Total number of gateway calls by outcome",
			},
			[]string{"base", "category", "outcome"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nhlagent_gateway_call_duration_seconds",
				Help:    "Duration of gateway calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"base", "outcome"},
		),
		filteredRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_gateway_filtered_records_total",
				Help: "Total number of response records removed by the as-of filter",
			},
			[]string{"category"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_cache_lookups_total",
				Help: "Total number of response cache lookups",
			},
			[]string{"result"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_tool_calls_total",
				Help: "Total number of agent tool dispatches",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nhlagent_tool_call_duration_seconds",
				Help:    "Duration of agent tool dispatches in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		modelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nhlagent_model_latency_seconds",
				Help:    "Latency of model provider calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		modelTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_model_tokens_total",
				Help: "Total number of tokens reported by model providers",
			},
			[]string{"provider", "model"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nhlagent_runs_total",
				Help: "Total number of agent runs by terminal status",
			},
			[]string{"status"},
		),
		runTurns: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nhlagent_run_turns",
				Help:    "Model turns taken per agent run",
				Buckets: []float64{1, 2, 3, 5, 8, 12, 20, 30},
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveGatewayCall(metric domain.GatewayCallMetric) {
	base := string(metric.Base)
	outcome := string(metric.Outcome)
	p.gatewayCalls.WithLabelValues(base, metric.Category, outcome).Inc()
	p.gatewayDuration.WithLabelValues(base, outcome).Observe(metric.Duration.Seconds())
	if metric.Filtered > 0 {
		p.filteredRecords.WithLabelValues(metric.Category).Add(float64(metric.Filtered))
	}
}

func (p *PrometheusMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *PrometheusMetrics) ObserveToolCall(metric domain.ToolCallMetric) {
	status := "success"
	if metric.IsError {
		status = "error"
	}
	p.toolCalls.WithLabelValues(metric.Tool, status).Inc()
	p.toolDuration.WithLabelValues(metric.Tool).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveModelLatency(provider string, model string, duration time.Duration) {
	p.modelLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveModelTokens(provider string, model string, tokens int) {
	if tokens <= 0 {
		return
	}
	p.modelTokens.WithLabelValues(provider, model).Add(float64(tokens))
}

func (p *PrometheusMetrics) ObserveRun(status string, turns int) {
	p.runs.WithLabelValues(status).Inc()
	p.runTurns.Observe(float64(turns))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
