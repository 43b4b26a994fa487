package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldRunID      = "run_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
	FieldTool       = "tool"
	FieldPath       = "path"
	FieldAsOf       = "as_of"
	FieldDurationMs = "duration_ms"
)

const (
	EventRunStart      = "run_start"
	EventRunFinish     = "run_finish"
	EventToolCall      = "tool_call"
	EventToolError     = "tool_error"
	EventGatewayReject = "gateway_reject"
	EventModelTurn     = "model_turn"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func RunIDField(runID string) zap.Field {
	return zap.String(FieldRunID, runID)
}

func ToolField(name string) zap.Field {
	return zap.String(FieldTool, name)
}

func PathField(path string) zap.Field {
	return zap.String(FieldPath, path)
}

func AsOfField(asOf string) zap.Field {
	return zap.String(FieldAsOf, asOf)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
