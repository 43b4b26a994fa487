package app

import (
	"go.uber.org/zap"

	"nhlagent/internal/infra/telemetry"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	return telemetry.NewLogger(telemetry.LoggerOptions{
		Level:       cfg.Level,
		Development: cfg.Development,
	})
}
