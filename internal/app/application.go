package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/aggregator"
	"travelmcp/internal/infra/config"
	"travelmcp/internal/infra/discovery"
	"travelmcp/internal/infra/gateway"
	"travelmcp/internal/infra/supervisor"
	"travelmcp/internal/infra/telemetry"
)

// Application wires the registries, the supervisor and the MCP surface.
type Application struct {
	logger     *zap.Logger
	config     *config.Config
	runtime    domain.RuntimeConfig
	registry   *prometheus.Registry
	scanner    *discovery.Scanner
	supervisor *supervisor.Supervisor
	services   *aggregator.ServiceRegistry
	gateway    *gateway.Gateway
	server     *gateway.Server
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Logger     *zap.Logger
	Config     *config.Config
	Runtime    domain.RuntimeConfig
	Registry   *prometheus.Registry
	Scanner    *discovery.Scanner
	Supervisor *supervisor.Supervisor
	Services   *aggregator.ServiceRegistry
	Gateway    *gateway.Gateway
	Server     *gateway.Server
}

// NewApplication constructs the application runtime.
func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		logger:     logger,
		config:     opts.Config,
		runtime:    opts.Runtime,
		registry:   opts.Registry,
		scanner:    opts.Scanner,
		supervisor: opts.Supervisor,
		services:   opts.Services,
		gateway:    opts.Gateway,
		server:     opts.Server,
	}
}

func (a *Application) Config() *config.Config { return a.config }

func (a *Application) Runtime() domain.RuntimeConfig { return a.runtime }

func (a *Application) Supervisor() *supervisor.Supervisor { return a.supervisor }

func (a *Application) Gateway() *gateway.Gateway { return a.gateway }

// Tools loads every discovered server and returns the unified tool list.
func (a *Application) Tools(ctx context.Context) ([]domain.ToolSpec, error) {
	if err := a.services.Initialize(ctx); err != nil {
		return nil, err
	}
	return a.gateway.Tools(), nil
}

// Call routes one tool call. Delegated tools need the registries loaded
// first; administrative tools do not.
func (a *Application) Call(ctx context.Context, name string, args map[string]any) (domain.Result, error) {
	if !a.gateway.IsAdmin(name) {
		if err := a.services.Initialize(ctx); err != nil {
			return domain.Result{}, err
		}
	}
	return a.gateway.Call(ctx, name, args), nil
}

// Serve runs the MCP stdio surface until ctx is done or the client hangs up.
// The reconciler, the discovery watcher and the metrics listener run beside
// it and stop with it.
func (a *Application) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("configuration loaded",
		zap.String("config", a.config.ConfigFile()),
		zap.String("servers_dir", a.runtime.ServersDir),
	)

	if err := a.services.Initialize(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	a.background(ctx, &wg, "reconciler", func(ctx context.Context) error {
		return a.supervisor.RunReconciler(ctx, a.runtime.ReconcileSchedule)
	})
	if a.runtime.MetricsAddress != "" {
		a.background(ctx, &wg, "metrics server", func(ctx context.Context) error {
			return telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
				Addr:     a.runtime.MetricsAddress,
				Registry: a.registry,
				Health:   a.health,
			}, a.logger)
		})
	}
	if a.runtime.Watch {
		watcher := discovery.NewWatcher(a.scanner, a.reload, a.logger)
		a.background(ctx, &wg, "discovery watcher", watcher.Run)
	}

	err := a.server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

func (a *Application) background(ctx context.Context, wg *sync.WaitGroup, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn(name+" stopped", zap.Error(err))
		}
	}()
}

func (a *Application) reload(ctx context.Context) {
	if err := a.services.Initialize(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn("service registry reload failed", zap.Error(err))
	}
}

func (a *Application) health() map[string]any {
	running, err := a.supervisor.Running()
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	return map[string]any{
		"status":   status,
		"services": len(a.services.Names()),
		"tools":    a.services.Index().Len(),
		"running":  len(running),
	}
}
