package provider

import (
	"context"
	"fmt"

	"travelmcp/internal/domain"
)

// NativeTool is an in-process tool backed by a Go call target.
type NativeTool struct {
	Spec   domain.ToolSpec
	Target any
}

// Native serves tools implemented inside the gateway process.
type Native struct {
	tools  []NativeTool
	byName map[string]any
}

func NewNative(tools ...NativeTool) *Native {
	byName := make(map[string]any, len(tools))
	for _, tool := range tools {
		byName[tool.Spec.Name] = tool.Target
	}
	return &Native{tools: tools, byName: byName}
}

// Constructor returns a ProviderConstructor that always yields n.
func (n *Native) Constructor() domain.ProviderConstructor {
	return func(context.Context, domain.ServerDescriptor) (domain.ToolProvider, error) {
		return n, nil
	}
}

func (n *Native) ListTools(context.Context) ([]domain.ToolSpec, error) {
	specs := make([]domain.ToolSpec, 0, len(n.tools))
	for _, tool := range n.tools {
		specs = append(specs, tool.Spec)
	}
	return specs, nil
}

func (n *Native) ToolTarget(name string) (any, bool) {
	target, ok := n.byName[name]
	return target, ok
}

func (n *Native) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	target, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	invocable, ok := Adapt(target)
	if !ok {
		return nil, fmt.Errorf("tool %s has no callable target", name)
	}
	return invocable.Invoke(ctx, args)
}

func (n *Native) Close() error {
	return nil
}
