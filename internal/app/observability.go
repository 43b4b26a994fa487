package app

import (
	"context"

	"go.uber.org/zap"

	"nhlagent/internal/infra/telemetry"
)

func (a *Application) startObservability(ctx context.Context) {
	if !a.cfg.Observability.MetricsEnabled || a.registry == nil {
		return
	}
	go func() {
		err := telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
			Addr:          a.cfg.Observability.ListenAddress,
			EnableMetrics: true,
			EnableHealthz: true,
			Registry:      a.registry,
		}, a.logger)
		if err != nil {
			a.logger.Warn("observability server failed", zap.Error(err))
		}
	}()
}

// DumpMetrics writes the registry to observability.metricsOut, if set.
func (a *Application) DumpMetrics() error {
	path := a.cfg.Observability.MetricsOut
	if path == "" || a.registry == nil {
		return nil
	}
	if err := telemetry.WriteTextFile(a.registry, path); err != nil {
		return err
	}
	totals, err := telemetry.CounterTotals(a.registry)
	if err != nil {
		return err
	}
	fields := make([]zap.Field, 0, len(totals)+1)
	fields = append(fields, zap.String("path", path))
	for _, name := range telemetry.SortedNames(totals) {
		fields = append(fields, zap.Float64(name, totals[name]))
	}
	a.logger.Info("metrics written", fields...)
	return nil
}
