package domain

import "context"

// ToolProvider is the capability pair every sibling server exposes.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
	Close() error
}

// ProviderConstructor builds the provider for one discovered server.
type ProviderConstructor func(ctx context.Context, desc ServerDescriptor) (ToolProvider, error)

// Invocable is the single call shape the gateway relies on.
type Invocable interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvokeFunc adapts a plain function to Invocable.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

func (f InvokeFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// ToolRunner is implemented by tool wrappers that carry their own entry point.
type ToolRunner interface {
	Run(ctx context.Context, args map[string]any) (any, error)
}

// InvocableTools is implemented by providers that expose per-tool call
// targets directly instead of routing every call through CallTool.
type InvocableTools interface {
	ToolTarget(name string) (any, bool)
}
