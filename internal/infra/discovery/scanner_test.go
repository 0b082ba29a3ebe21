package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

func makeServer(t *testing.T, root, name string, withEntrypoint bool) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if withEntrypoint {
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.DefaultEntrypoint), []byte("print('hi')\n"), 0o644))
	}
	return dir
}

func names(descs []domain.ServerDescriptor) []string {
	out := make([]string, 0, len(descs))
	for _, desc := range descs {
		out = append(out, desc.Name)
	}
	return out
}

func TestScanner_DiscoverFiltersCandidates(t *testing.T) {
	root := t.TempDir()
	makeServer(t, root, "weather_server", true)
	makeServer(t, root, "flight_server", true)
	makeServer(t, root, "hotel_server", false)
	makeServer(t, root, "utils", true)
	makeServer(t, root, "_private_server", true)
	makeServer(t, root, ".hidden_server", true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes_server"), []byte("file"), 0o644))

	scanner := NewScanner(Options{Root: root, Logger: zap.NewNop()})
	got := scanner.Discover()

	want := []domain.ServerDescriptor{
		{Name: "flight_server", Path: filepath.Join(root, "flight_server")},
		{Name: "weather_server", Path: filepath.Join(root, "weather_server")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("discover mismatch (-want +got):\n%s", diff)
	}
}

func TestScanner_ExcludesDependencyDecoys(t *testing.T) {
	root := t.TempDir()
	makeServer(t, root, "alpha_server", true)
	makeServer(t, root, "mcp_server", true)
	makeServer(t, root, "jupyter_server", true)
	makeServer(t, root, "vendored_server", true)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendored_server-2.1.0.dist-info"), 0o755))
	makeServer(t, root, "egg_server", true)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "egg_server.egg-info"), 0o755))
	makeServer(t, root, "custom_server", true)

	scanner := NewScanner(Options{Root: root, Exclude: []string{"custom_server"}})
	require.Equal(t, []string{"alpha_server"}, names(scanner.Discover()))
}

func TestScanner_ServerIgnoreFile(t *testing.T) {
	root := t.TempDir()
	makeServer(t, root, "alpha_server", true)
	makeServer(t, root, "beta_server", true)
	makeServer(t, root, "legacy_beta_server", true)
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.DefaultServerIgnoreFile), []byte("# retired\nlegacy_*\nbeta_server/\n"), 0o644))

	scanner := NewScanner(Options{Root: root})
	require.Equal(t, []string{"alpha_server"}, names(scanner.Discover()))
}

func TestScanner_MissingRoot(t *testing.T) {
	scanner := NewScanner(Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.Empty(t, scanner.Discover())
	_, ok := scanner.Lookup("weather_server")
	require.False(t, ok)
}

func TestScanner_CustomEntrypointAndLookup(t *testing.T) {
	root := t.TempDir()
	dir := makeServer(t, root, "tool_server", false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"), 0o755))

	require.Empty(t, NewScanner(Options{Root: root}).Discover())

	scanner := NewScanner(Options{Root: root, Entrypoint: "run.sh"})
	desc, ok := scanner.Lookup("tool_server")
	require.True(t, ok)
	require.Equal(t, dir, desc.Path)
	require.Equal(t, filepath.Join(dir, "run.sh"), scanner.EntrypointPath(desc))
}

func TestScanner_Idempotent(t *testing.T) {
	root := t.TempDir()
	makeServer(t, root, "alpha_server", true)
	makeServer(t, root, "beta_server", true)

	scanner := NewScanner(Options{Root: root})
	first := scanner.Discover()
	second := scanner.Discover()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("scan changed between calls (-first +second):\n%s", diff)
	}
}

func TestWatcher_RescansOnNewServer(t *testing.T) {
	root := t.TempDir()
	makeServer(t, root, "alpha_server", true)

	scanner := NewScanner(Options{Root: root})
	var calls atomic.Int32
	watcher := NewWatcher(scanner, func(context.Context) { calls.Add(1) }, zap.NewNop())
	watcher.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	makeServer(t, root, "beta_server", true)
	ignorePath := filepath.Join(root, domain.DefaultServerIgnoreFile)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(ignorePath, []byte("# none\n"), 0o644)
		return calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, []string{"alpha_server", "beta_server"}, names(scanner.Discover()))
}
