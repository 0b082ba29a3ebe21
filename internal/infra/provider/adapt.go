package provider

import (
	"context"

	"travelmcp/internal/domain"
)

// Adapt converts a tool call target into the uniform Invocable shape. It
// accepts Invocable values, ToolRunner wrappers, and plain functions with or
// without a context argument.
func Adapt(target any) (domain.Invocable, bool) {
	switch fn := target.(type) {
	case nil:
		return nil, false
	case domain.Invocable:
		return fn, true
	case domain.ToolRunner:
		return domain.InvokeFunc(fn.Run), true
	case func(context.Context, map[string]any) (any, error):
		return domain.InvokeFunc(fn), true
	case func(map[string]any) (any, error):
		return domain.InvokeFunc(func(_ context.Context, args map[string]any) (any, error) {
			return fn(args)
		}), true
	case func(context.Context, map[string]any) any:
		return domain.InvokeFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return fn(ctx, args), nil
		}), true
	case func(map[string]any) any:
		return domain.InvokeFunc(func(_ context.Context, args map[string]any) (any, error) {
			return fn(args), nil
		}), true
	}
	return nil, false
}
