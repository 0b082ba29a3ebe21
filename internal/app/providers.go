package app

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/aggregator"
	"travelmcp/internal/infra/config"
	"travelmcp/internal/infra/discovery"
	"travelmcp/internal/infra/gateway"
	"travelmcp/internal/infra/pidstore"
	"travelmcp/internal/infra/probe"
	"travelmcp/internal/infra/provider"
	"travelmcp/internal/infra/supervisor"
	"travelmcp/internal/infra/telemetry"
)

// ServeConfig selects configuration sources for one invocation.
type ServeConfig struct {
	ConfigPath string
	EnvFile    string
	Root       string
	BaseDir    string
}

func NewConfig(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (*config.Config, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		baseDir = wd
	}
	return config.NewLoader(logger).Load(ctx, config.Options{
		ConfigPath: cfg.ConfigPath,
		EnvFile:    cfg.EnvFile,
		BaseDir:    baseDir,
		ServersDir: cfg.Root,
	})
}

func NewRuntimeConfig(cfg *config.Config) domain.RuntimeConfig {
	return cfg.Runtime()
}

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewScanner(runtime domain.RuntimeConfig, logger *zap.Logger) *discovery.Scanner {
	return discovery.NewScanner(discovery.Options{
		Root:       runtime.ServersDir,
		Entrypoint: runtime.Entrypoint,
		Exclude:    runtime.Exclude,
		Logger:     logger,
	})
}

func NewProcessStore(runtime domain.RuntimeConfig, logger *zap.Logger) (*pidstore.Store, func(), error) {
	store, err := pidstore.OpenStore(runtime.PIDStore)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("pid store close failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func NewSupervisor(
	scanner *discovery.Scanner,
	store *pidstore.Store,
	cfg domain.Config,
	runtime domain.RuntimeConfig,
	metrics domain.Metrics,
	logger *zap.Logger,
) *supervisor.Supervisor {
	return supervisor.New(supervisor.Options{
		Locator: scanner,
		Store:   store,
		Config:  cfg,
		Runtime: runtime,
		Metrics: metrics,
		Logger:  logger,
	})
}

// NewProviderRegistry connects every discovered server over MCP, by spawning
// its entrypoint with the configured launcher or, when servers.<name>.url is
// set, over streamable HTTP.
func NewProviderRegistry(runtime domain.RuntimeConfig, cfg domain.Config, logger *zap.Logger) *provider.Registry {
	transports := provider.CommandTransports(provider.CommandOptions{
		Launcher:   runtime.Launcher,
		Entrypoint: runtime.Entrypoint,
		Env: func(name string) map[string]string {
			env := make(map[string]string)
			for key, value := range runtime.Launch(name).Env {
				env[key] = value
			}
			if key, ok := cfg.GetAPIKey(domain.CredentialSerpAPIKey); ok {
				env[domain.CredentialSerpAPIKey] = key
			}
			return env
		},
		Args: func(name string) []string {
			return runtime.Launch(name).Args
		},
		Stderr:            os.Stderr,
		TerminateDuration: runtime.StopTimeout,
	})
	clientOpts := provider.ClientOptions{
		Transport:      transports,
		ConnectTimeout: runtime.StartTimeout,
		Version:        Version,
		Logger:         logger,
	}
	registry := provider.NewRegistry(provider.NewClientConstructor(clientOpts))
	provider.RegisterEndpoints(registry, runtime.Servers, clientOpts)
	return registry
}

func NewToolIndex(runtime domain.RuntimeConfig, metrics domain.Metrics, logger *zap.Logger) *aggregator.ToolIndex {
	return aggregator.NewToolIndex(aggregator.ToolIndexOptions{
		Timeout: runtime.StartTimeout,
		Metrics: metrics,
		Logger:  logger,
	})
}

func NewServiceRegistry(
	scanner *discovery.Scanner,
	providers *provider.Registry,
	index *aggregator.ToolIndex,
	logger *zap.Logger,
) (*aggregator.ServiceRegistry, func()) {
	registry := aggregator.NewServiceRegistry(aggregator.ServiceRegistryOptions{
		Locator: scanner,
		Builder: providers,
		Index:   index,
		Logger:  logger,
	})
	cleanup := func() {
		if err := registry.Close(); err != nil {
			logger.Warn("service registry close failed", zap.Error(err))
		}
	}
	return registry, cleanup
}

func NewKeyProbe(runtime domain.RuntimeConfig, logger *zap.Logger) *probe.SerpAPIProbe {
	return probe.NewSerpAPIProbe(runtime.SerpAPIEndpoint, logger)
}

func NewGateway(
	sup *supervisor.Supervisor,
	scanner *discovery.Scanner,
	index *aggregator.ToolIndex,
	verifier domain.KeyVerifier,
	cfg domain.Config,
	runtime domain.RuntimeConfig,
	metrics domain.Metrics,
	logger *zap.Logger,
) *gateway.Gateway {
	return gateway.New(gateway.Options{
		Supervisor: sup,
		Locator:    scanner,
		Tools:      index,
		Verifier:   verifier,
		Config:     cfg,
		Runtime:    runtime,
		Metrics:    metrics,
		Logger:     logger,
	})
}

func NewGatewayServer(
	g *gateway.Gateway,
	index *aggregator.ToolIndex,
	logs *telemetry.LogBroadcaster,
	runtime domain.RuntimeConfig,
	logger *zap.Logger,
) *gateway.Server {
	return gateway.NewServer(g, gateway.ServerOptions{
		Name:    runtime.ServerName,
		Version: Version,
		Updates: index,
		Logs:    logs,
		Logger:  logger,
	})
}

