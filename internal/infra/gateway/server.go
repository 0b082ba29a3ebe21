package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/mcpcodec"
)

// Subscriber publishes the tool index after every rebuild.
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan []domain.ToolRecord
}

type ServerOptions struct {
	Name    string
	Version string
	Updates Subscriber
	Logs    LogSource
	Logger  *zap.Logger
}

// Server exposes a Gateway as an MCP server.
type Server struct {
	gateway  *Gateway
	updates  Subscriber
	logs     LogSource
	logger   *zap.Logger
	server   *mcp.Server
	registry *toolRegistry
}

func NewServer(g *Gateway, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" {
		name = domain.DefaultServerName
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		gateway: g,
		updates: opts.Updates,
		logs:    opts.Logs,
		logger:  logger.Named("mcp_server"),
		server:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, &mcp.ServerOptions{HasTools: true}),
	}
	s.registry = newToolRegistry(s.server, s.toolHandler, s.logger)
	s.server.AddReceivingMiddleware(s.unpublishedToolMiddleware())
	s.Sync()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Sync republishes the gateway tool list.
func (s *Server) Sync() {
	if s.registry.Apply(s.gateway.Tools()) {
		s.logger.Debug("tool list published", zap.Int("tools", len(s.registry.Names())))
	}
}

// Run serves MCP over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.run(ctx, func(runCtx context.Context) error {
		s.logger.Info("unified server starting (stdio transport)")
		return s.server.Run(runCtx, &mcp.StdioTransport{})
	})
}

// RunTransport serves MCP over transport.
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	return s.run(ctx, func(runCtx context.Context) error {
		return s.server.Run(runCtx, transport)
	})
}

func (s *Server) run(ctx context.Context, runner func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.Sync()
	if s.updates != nil {
		go s.syncTools(runCtx)
	}
	if s.logs != nil {
		go newLogBridge(s.server, s.logs).Run(runCtx)
	}
	return runner(runCtx)
}

func (s *Server) syncTools(ctx context.Context) {
	updates := s.updates.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			s.Sync()
		}
	}
}

func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, err := decodeArguments(raw)
		if err != nil {
			return mcpcodec.ResultToMCP(domain.ErrorResult(fmt.Sprintf("Error: invalid arguments: %v", err))), nil
		}
		return mcpcodec.ResultToMCP(s.gateway.Call(ctx, name, args)), nil
	}
}

// unpublishedToolMiddleware hands tools/call requests for names that are not
// published to the gateway, which answers them with a text result
// ("Unknown tool: x") instead of a protocol error.
func (s *Server) unpublishedToolMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}
			call, ok := req.(*mcp.CallToolRequest)
			if !ok || call.Params == nil || s.registry.Has(call.Params.Name) {
				return next(ctx, method, req)
			}
			return s.toolHandler(call.Params.Name)(ctx, call)
		}
	}
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}
