package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

func openTestApplication(t *testing.T, servers ...string) (*Application, string) {
	t.Helper()
	t.Setenv(domain.CredentialSerpAPIKey, "")

	dir := t.TempDir()
	root := filepath.Join(dir, "servers")
	require.NoError(t, os.MkdirAll(root, 0o755))
	for _, name := range servers {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, name, domain.DefaultEntrypoint), nil, 0o644))
	}
	cfgPath := filepath.Join(dir, "runtime_config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("state_dir: state\ndiscovery:\n  watch: false\n"), 0o600))

	application, cleanup, err := New(zap.NewNop()).Open(context.Background(), ServeConfig{
		ConfigPath: cfgPath,
		EnvFile:    filepath.Join(dir, ".env"),
		Root:       "servers",
		BaseDir:    dir,
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return application, dir
}

func TestApplication_OpenResolvesPaths(t *testing.T) {
	application, dir := openTestApplication(t)

	rt := application.Runtime()
	require.Equal(t, filepath.Join(dir, "servers"), rt.ServersDir)
	require.Equal(t, filepath.Join(dir, "state", domain.DefaultPIDStoreFile), rt.PIDStore)
	require.False(t, rt.Watch)
	require.FileExists(t, rt.PIDStore)
}

func TestApplication_AdminCallsSkipRegistryLoad(t *testing.T) {
	application, _ := openTestApplication(t, "alpha_server", "beta_server")

	result, err := application.Call(context.Background(), "list_servers", nil)
	require.NoError(t, err)
	require.Equal(t, "Discovered servers: alpha_server, beta_server", result.Text())

	result, err = application.Call(context.Background(), "start_server", map[string]any{"server": "alpha_server", "dry_run": true})
	require.NoError(t, err)
	require.False(t, result.IsError)

	pids, err := application.Supervisor().ListRegisteredPIDs()
	require.NoError(t, err)
	require.Empty(t, pids)
}

func TestApplication_ToolsWithoutServers(t *testing.T) {
	application, _ := openTestApplication(t)

	tools, err := application.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, len(application.Gateway().AdminTools()))

	result, err := application.Call(context.Background(), "unknown.tool", map[string]any{})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Text(), "Unknown tool")
	require.Contains(t, result.Text(), "unknown.tool")
}
