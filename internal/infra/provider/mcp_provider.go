package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/mcpcodec"
	"travelmcp/internal/infra/process"
	"travelmcp/internal/infra/telemetry"
)

// ErrClosed is returned by a provider used after Close.
var ErrClosed = errors.New("provider closed")

// TransportFactory opens the MCP transport for one server.
type TransportFactory func(ctx context.Context, desc domain.ServerDescriptor) (mcp.Transport, error)

// CommandOptions configures the stdio transport used for sibling servers.
type CommandOptions struct {
	Launcher          []string
	Entrypoint        string
	Env               func(name string) map[string]string
	Args              func(name string) []string
	Stderr            io.Writer
	TerminateDuration time.Duration
}

// CommandTransports launches launcher + entrypoint inside the server
// directory and speaks MCP over its stdio.
func CommandTransports(opts CommandOptions) TransportFactory {
	return func(_ context.Context, desc domain.ServerDescriptor) (mcp.Transport, error) {
		if len(opts.Launcher) == 0 {
			return nil, fmt.Errorf("%w: empty launcher", domain.ErrSpawnFailed)
		}
		entrypoint := opts.Entrypoint
		if entrypoint == "" {
			entrypoint = domain.DefaultEntrypoint
		}
		path, err := filepath.Abs(filepath.Join(desc.Path, entrypoint))
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", domain.ErrEntrypointMissing, path)
		}

		var env map[string]string
		if opts.Env != nil {
			env = opts.Env(desc.Name)
		}
		command := append(append([]string{}, opts.Launcher...), path)
		if opts.Args != nil {
			command = append(command, opts.Args(desc.Name)...)
		}
		cmd := process.Command(process.Spec{
			Name:    desc.Name,
			Command: command,
			Dir:     desc.Path,
			Env:     env,
		})
		cmd.Stderr = opts.Stderr
		return &mcp.CommandTransport{Command: cmd, TerminateDuration: opts.TerminateDuration}, nil
	}
}

// EndpointTransport reaches a sibling server that already serves MCP over
// streamable HTTP at endpoint.
func EndpointTransport(endpoint string) TransportFactory {
	return func(context.Context, domain.ServerDescriptor) (mcp.Transport, error) {
		if endpoint == "" {
			return nil, errors.New("empty endpoint")
		}
		return &mcp.StreamableClientTransport{Endpoint: endpoint}, nil
	}
}

// RegisterEndpoints gives every server configured with a URL its own MCP
// client constructor over EndpointTransport. Other servers keep the
// registry fallback.
func RegisterEndpoints(r *Registry, servers map[string]domain.ServerLaunchConfig, opts ClientOptions) {
	for name, launch := range servers {
		if launch.URL == "" {
			continue
		}
		endpointOpts := opts
		endpointOpts.Transport = EndpointTransport(launch.URL)
		r.Register(name, NewClientConstructor(endpointOpts))
	}
}

// ClientOptions configures an MCP client provider.
type ClientOptions struct {
	Transport      TransportFactory
	ConnectTimeout time.Duration
	Version        string
	Logger         *zap.Logger
}

// NewClientConstructor builds lazily connected MCP client providers.
func NewClientConstructor(opts ClientOptions) domain.ProviderConstructor {
	return func(_ context.Context, desc domain.ServerDescriptor) (domain.ToolProvider, error) {
		if opts.Transport == nil {
			return nil, errors.New("transport factory is required")
		}
		return NewClient(desc, opts), nil
	}
}

// Client is a ToolProvider backed by an MCP session with the sibling server.
// The session is opened on first use and reopened after it drops.
type Client struct {
	desc    domain.ServerDescriptor
	opts    ClientOptions
	logger  *zap.Logger
	mu      sync.Mutex
	session *mcp.ClientSession
	closed  bool
}

func NewClient(desc domain.ServerDescriptor, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = domain.DefaultStartTimeout
	}
	return &Client{
		desc:   desc,
		opts:   opts,
		logger: logger.Named("mcp_client").With(telemetry.ServerField(desc.Name)),
	}
}

func (c *Client) connect(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.session != nil {
		return c.session, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	transport, err := c.opts.Transport(connectCtx, c.desc)
	if err != nil {
		return nil, err
	}
	version := c.opts.Version
	if version == "" {
		version = "dev"
	}
	client := mcp.NewClient(&mcp.Implementation{Name: domain.DefaultServerName, Version: version}, nil)
	session, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.desc.Name, err)
	}
	c.logger.Debug("mcp session opened")
	c.session = session
	return session, nil
}

// reset drops session if it is still the current one.
func (c *Client) reset(session *mcp.ClientSession) {
	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.mu.Unlock()
	_ = session.Close()
}

func (c *Client) ListTools(ctx context.Context) ([]domain.ToolSpec, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var specs []domain.ToolSpec
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			if errors.Is(err, mcp.ErrConnectionClosed) {
				c.reset(session)
			}
			return nil, fmt.Errorf("list tools %s: %w", c.desc.Name, err)
		}
		for _, tool := range res.Tools {
			if tool == nil || strings.TrimSpace(tool.Name) == "" {
				continue
			}
			specs = append(specs, mcpcodec.ToolFromMCP(tool))
		}
		if res.NextCursor == "" {
			return specs, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// CallTool forwards the call and returns the raw *mcp.CallToolResult. A
// result flagged as an error is reported as ErrToolFailed.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		if errors.Is(err, mcp.ErrConnectionClosed) {
			c.reset(session)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolFailed, name, err)
	}
	if result != nil && result.IsError {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolFailed, toolResultError(result))
	}
	return result, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.closed = true
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

func toolResultError(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "tool returned an error"
	}
	return strings.Join(parts, "\n")
}
