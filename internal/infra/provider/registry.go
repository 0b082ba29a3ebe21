package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"travelmcp/internal/domain"
)

// Registry maps server names to provider constructors. Servers without an
// explicit constructor use the fallback.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]domain.ProviderConstructor
	fallback     domain.ProviderConstructor
}

func NewRegistry(fallback domain.ProviderConstructor) *Registry {
	return &Registry{
		constructors: make(map[string]domain.ProviderConstructor),
		fallback:     fallback,
	}
}

func (r *Registry) Register(name string, constructor domain.ProviderConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if constructor == nil {
		delete(r.constructors, name)
		return
	}
	r.constructors[name] = constructor
}

// Names lists the explicitly registered servers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Constructor(name string) (domain.ProviderConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if constructor, ok := r.constructors[name]; ok {
		return constructor, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Build constructs the provider for desc.
func (r *Registry) Build(ctx context.Context, desc domain.ServerDescriptor) (domain.ToolProvider, error) {
	constructor, ok := r.Constructor(desc.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no provider for %s", domain.ErrServerNotFound, desc.Name)
	}
	provider, err := constructor(ctx, desc)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("provider constructor for %s returned nil", desc.Name)
	}
	return provider, nil
}
