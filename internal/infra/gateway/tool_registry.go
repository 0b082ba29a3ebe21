package gateway

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/hashutil"
	"travelmcp/internal/infra/mcpcodec"
	"travelmcp/internal/infra/telemetry"
)

// toolRegistry mirrors a tool list into an mcp.Server. Unchanged tools are
// left alone so clients only see list changes for real differences.
type toolRegistry struct {
	server     *mcp.Server
	handler    func(name string) mcp.ToolHandler
	logger     *zap.Logger
	mu         sync.Mutex
	etag       string
	registered map[string]string
}

func newToolRegistry(server *mcp.Server, handler func(name string) mcp.ToolHandler, logger *zap.Logger) *toolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &toolRegistry{
		server:     server,
		handler:    handler,
		logger:     logger.Named("tool_registry"),
		registered: make(map[string]string),
	}
}

// Apply reports whether the exposed tool set changed.
func (r *toolRegistry) Apply(specs []domain.ToolSpec) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	etag := hashutil.ToolETag(r.logger, specs)
	if etag != "" && etag == r.etag {
		return false
	}

	changed := false
	next := make(map[string]string, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			continue
		}
		tool := mcpcodec.ToolToMCP(spec.Name, spec)
		if !mcpcodec.IsObjectSchema(tool.InputSchema) {
			r.logger.Warn("skip tool with invalid input schema", telemetry.ToolField(spec.Name))
			continue
		}
		sum, err := hashutil.ToolHash(spec)
		if err != nil {
			sum = ""
		}
		next[spec.Name] = sum
		if previous, ok := r.registered[spec.Name]; ok && sum != "" && previous == sum {
			continue
		}
		r.server.AddTool(tool, r.handler(spec.Name))
		changed = true
	}

	var remove []string
	for name := range r.registered {
		if _, ok := next[name]; !ok {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		r.server.RemoveTools(remove...)
		changed = true
	}
	r.registered = next
	r.etag = etag
	return changed
}

// Has reports whether name is currently published.
func (r *toolRegistry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.registered[name]
	return ok
}

func (r *toolRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.registered))
	for name := range r.registered {
		out = append(out, name)
	}
	return out
}
