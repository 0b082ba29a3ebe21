package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"travelmcp/internal/domain"
)

func TestLogBroadcaster_PublishesEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := NewLogBroadcaster(zapcore.InfoLevel)
	entries := broadcaster.Subscribe(ctx)

	logger := zap.New(broadcaster.Core()).Named("aggregator").With(ServerField("alpha_server"))
	logger.Debug("dropped below minimum level")
	logger.Warn("tool name conflict", ToolField("alpha_run"))

	select {
	case entry := <-entries:
		require.Equal(t, "aggregator", entry.Logger)
		require.Equal(t, domain.LogLevelWarning, entry.Level)
		require.Equal(t, "tool name conflict", entry.Data["message"])
		fields, ok := entry.Data["fields"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "alpha_server", fields[FieldServer])
		require.Equal(t, "alpha_run", fields[FieldTool])
	case <-time.After(time.Second):
		t.Fatal("no log entry published")
	}

	select {
	case entry := <-entries:
		t.Fatalf("unexpected entry %+v", entry)
	default:
	}
}

func TestLogBroadcaster_UnsubscribesOnCancel(t *testing.T) {
	broadcaster := NewLogBroadcaster(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	entries := broadcaster.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-entries:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	zap.New(broadcaster.Core()).Info("after unsubscribe")
}

func TestMapZapLevel(t *testing.T) {
	require.Equal(t, domain.LogLevelDebug, mapZapLevel(zapcore.DebugLevel))
	require.Equal(t, domain.LogLevelError, mapZapLevel(zapcore.ErrorLevel))
	require.Equal(t, domain.LogLevelEmergency, mapZapLevel(zapcore.FatalLevel))
}
