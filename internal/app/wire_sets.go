//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/config"
	"travelmcp/internal/infra/probe"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewLogBroadcaster,
	NewConfig,
	NewRuntimeConfig,
	NewMetricsRegistry,
	NewMetrics,
	wire.Bind(new(domain.Config), new(*config.Config)),
)

var RegistrySet = wire.NewSet(
	NewScanner,
	NewProcessStore,
	NewSupervisor,
	NewProviderRegistry,
	NewToolIndex,
	NewServiceRegistry,
)

var GatewaySet = wire.NewSet(
	NewKeyProbe,
	wire.Bind(new(domain.KeyVerifier), new(*probe.SerpAPIProbe)),
	NewGateway,
	NewGatewayServer,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	RegistrySet,
	GatewaySet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
