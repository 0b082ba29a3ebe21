package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/telemetry"
)

// Locator lists the servers the registry should load.
type Locator interface {
	Discover() []domain.ServerDescriptor
}

// Builder constructs a provider for one descriptor.
type Builder interface {
	Build(ctx context.Context, desc domain.ServerDescriptor) (domain.ToolProvider, error)
}

type ServiceRegistryOptions struct {
	Locator Locator
	Builder Builder
	Index   *ToolIndex
	Logger  *zap.Logger
}

// ServiceRegistry owns the loaded providers and keeps the tool index in
// step with them.
type ServiceRegistry struct {
	locator Locator
	builder Builder
	index   *ToolIndex
	logger  *zap.Logger
	gate    reloadGate

	mu       sync.RWMutex
	services map[string]loadedService
	order    []string
}

type loadedService struct {
	desc     domain.ServerDescriptor
	provider domain.ToolProvider
}

func NewServiceRegistry(opts ServiceRegistryOptions) *ServiceRegistry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	index := opts.Index
	if index == nil {
		index = NewToolIndex(ToolIndexOptions{Logger: logger})
	}
	return &ServiceRegistry{
		locator:  opts.Locator,
		builder:  opts.Builder,
		index:    index,
		logger:   logger.Named("service_registry"),
		gate:     newReloadGate(),
		services: make(map[string]loadedService),
	}
}

func (r *ServiceRegistry) Index() *ToolIndex {
	return r.index
}

// Initialize discovers servers, loads a provider for each, and rebuilds the
// tool index. Providers already loaded for an unchanged server are reused,
// so repeated calls converge on the same state. A server that fails to load,
// including one whose tool listing fails, is logged, closed and left out.
func (r *ServiceRegistry) Initialize(ctx context.Context) error {
	if r.locator == nil || r.builder == nil {
		return errors.New("service registry requires a locator and a builder")
	}
	if err := r.gate.acquire(ctx); err != nil {
		return err
	}
	defer r.gate.release()

	descs := r.locator.Discover()
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	r.mu.RLock()
	previous := make(map[string]loadedService, len(r.services))
	for name, svc := range r.services {
		previous[name] = svc
	}
	r.mu.RUnlock()

	next := make(map[string]loadedService, len(descs))
	reused := make(map[string]bool, len(previous))
	candidates := make([]Service, 0, len(descs))
	for _, desc := range descs {
		if svc, ok := previous[desc.Name]; ok && svc.desc == desc {
			next[desc.Name] = svc
			reused[desc.Name] = true
			candidates = append(candidates, Service{Name: desc.Name, Provider: svc.provider})
			continue
		}
		p, err := r.build(ctx, desc)
		if err != nil {
			r.logger.Warn("service load failed", telemetry.ServerField(desc.Name), zap.Error(err))
			continue
		}
		next[desc.Name] = loadedService{desc: desc, provider: p}
		candidates = append(candidates, Service{Name: desc.Name, Provider: p})
	}

	_, failed := r.index.rebuild(ctx, candidates)

	var stale []Service
	order := make([]string, 0, len(candidates))
	for _, svc := range candidates {
		if err, ok := failed[svc.Name]; ok {
			r.logger.Warn("service load failed", telemetry.ServerField(svc.Name), zap.Error(err))
			stale = append(stale, svc)
			delete(next, svc.Name)
			continue
		}
		order = append(order, svc.Name)
	}

	r.mu.Lock()
	r.services = next
	r.order = order
	r.mu.Unlock()

	// Reused providers are either still loaded or already queued as failed.
	for name, svc := range previous {
		if reused[name] {
			continue
		}
		stale = append(stale, Service{Name: name, Provider: svc.provider})
	}
	for _, svc := range stale {
		if err := svc.Provider.Close(); err != nil {
			r.logger.Debug("close provider failed", telemetry.ServerField(svc.Name), zap.Error(err))
		}
	}
	return nil
}

func (r *ServiceRegistry) build(ctx context.Context, desc domain.ServerDescriptor) (p domain.ToolProvider, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("provider constructor panic: %v", rec)
		}
	}()
	p, err = r.builder.Build(ctx, desc)
	if err == nil && p == nil {
		err = fmt.Errorf("no provider for %s", desc.Name)
	}
	return p, err
}

func (r *ServiceRegistry) GetService(name string) (domain.ToolProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc.provider, ok
}

// AllServices returns the loaded providers keyed by server name.
func (r *ServiceRegistry) AllServices() map[string]domain.ToolProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.ToolProvider, len(r.services))
	for name, svc := range r.services {
		out[name] = svc.provider
	}
	return out
}

func (r *ServiceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Close releases every loaded provider.
func (r *ServiceRegistry) Close() error {
	r.mu.Lock()
	services := r.services
	r.services = make(map[string]loadedService)
	r.order = nil
	r.mu.Unlock()

	var errs []error
	for name, svc := range services {
		if err := svc.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
