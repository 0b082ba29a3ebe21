package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"travelmcp/internal/domain"
)

// LogSource streams gateway log entries.
type LogSource interface {
	Subscribe(ctx context.Context) <-chan domain.LogEntry
}

// logBridge forwards gateway logs to every connected MCP session. Sessions
// that never set a logging level receive nothing.
type logBridge struct {
	server *mcp.Server
	source LogSource
}

func newLogBridge(server *mcp.Server, source LogSource) *logBridge {
	return &logBridge{server: server, source: source}
}

func (b *logBridge) Run(ctx context.Context) {
	entries := b.source.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			b.publish(ctx, entry)
		}
	}
}

func (b *logBridge) publish(ctx context.Context, entry domain.LogEntry) {
	params := &mcp.LoggingMessageParams{
		Logger: entry.Logger,
		Level:  mcp.LoggingLevel(entry.Level),
		Data:   entry.Data,
	}
	for session := range b.server.Sessions() {
		_ = session.Log(ctx, params)
	}
}
