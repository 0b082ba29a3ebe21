package gateway

import (
	"context"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

func TestToolRegistry_ApplyOnlyOnChange(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, &mcp.ServerOptions{HasTools: true})
	handler := func(string) mcp.ToolHandler {
		return func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{}, nil
		}
	}
	registry := newToolRegistry(server, handler, zap.NewNop())

	specs := []domain.ToolSpec{
		{Name: "alpha_run", Description: "alpha"},
		{Name: "beta_run", Description: "beta"},
		{Name: "broken", InputSchema: map[string]any{"type": "string"}},
	}
	require.True(t, registry.Apply(specs))
	require.False(t, registry.Apply(specs))

	names := registry.Names()
	sort.Strings(names)
	require.Equal(t, []string{"alpha_run", "beta_run"}, names)

	specs[0].Description = "alpha, revised"
	require.True(t, registry.Apply(specs))

	require.True(t, registry.Apply(specs[:1]))
	require.Equal(t, []string{"alpha_run"}, registry.Names())
}
