package domain

import "time"

// CallOutcome labels the result of a gateway call.
type CallOutcome string

const (
	// CallOutcomeSuccess indicates the payload was returned.
	CallOutcomeSuccess CallOutcome = "success"
	// CallOutcomeCatalog indicates a catalog rejection.
	CallOutcomeCatalog CallOutcome = "catalog_violation"
	// CallOutcomeTemporal indicates a temporal rejection.
	CallOutcomeTemporal CallOutcome = "temporal_violation"
	// CallOutcomeTransport indicates the backend call failed.
	CallOutcomeTransport CallOutcome = "transport_failure"
)

// GatewayCallMetric captures one gateway call.
type GatewayCallMetric struct {
	Base     Base
	Category string
	Outcome  CallOutcome
	Duration time.Duration
	// Filtered counts records removed by response filtering.
	Filtered int
}

// ToolCallMetric captures one tool dispatch inside the agent loop.
type ToolCallMetric struct {
	Tool     string
	IsError  bool
	Duration time.Duration
}

// Metrics records operational metrics for the agent and data layer.
type Metrics interface {
	ObserveGatewayCall(metric GatewayCallMetric)
	ObserveCacheLookup(hit bool)
	ObserveToolCall(metric ToolCallMetric)
	ObserveModelLatency(provider string, model string, duration time.Duration)
	ObserveModelTokens(provider string, model string, tokens int)
	ObserveRun(status string, turns int)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveGatewayCall(GatewayCallMetric)              {}
func (NoopMetrics) ObserveCacheLookup(bool)                           {}
func (NoopMetrics) ObserveToolCall(ToolCallMetric)                    {}
func (NoopMetrics) ObserveModelLatency(string, string, time.Duration) {}
func (NoopMetrics) ObserveModelTokens(string, string, int)            {}
func (NoopMetrics) ObserveRun(string, int)                            {}
