//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"nhlagent/internal/infra/gateway"
	"nhlagent/internal/infra/nhlapi"
)

var TelemetrySet = wire.NewSet(
	NewMetricsRegistry,
	NewMetrics,
)

var DataSet = wire.NewSet(
	NewCacheStore,
	NewNHLClient,
	NewCatalog,
	wire.Bind(new(gateway.Transport), new(*nhlapi.Client)),
)

var AppSet = wire.NewSet(
	TelemetrySet,
	DataSet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
