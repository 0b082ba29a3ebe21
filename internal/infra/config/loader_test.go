package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigPath, EnvEnvFile, "SERPAPI_KEY", "LOG_LEVEL", "SERVER_STOP_TIMEOUT", "SERVERS_DIR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)

	got := cfg.Runtime()
	want := domain.RuntimeConfig{
		ServersDir:        dir,
		Entrypoint:        domain.DefaultEntrypoint,
		Launcher:          []string{domain.DefaultLauncher},
		StateDir:          dir,
		PIDStore:          filepath.Join(dir, domain.DefaultPIDStoreFile),
		LogsDir:           filepath.Join(dir, domain.DefaultLogsDir),
		StartTimeout:      domain.DefaultStartTimeout,
		StopTimeout:       domain.DefaultStopTimeout,
		VerifyTimeout:     domain.DefaultVerifyTimeout,
		SerpAPIEndpoint:   domain.DefaultSerpAPIEndpoint,
		LogLevel:          domain.DefaultLogLevel,
		ServerName:        domain.DefaultServerName,
		Watch:             true,
		ReconcileSchedule: domain.DefaultReconcileSchedule,
		Servers:           map[string]domain.ServerLaunchConfig{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("runtime mismatch (-want +got):\n%s", diff)
	}

	_, ok := cfg.GetAPIKey(domain.CredentialSerpAPIKey)
	require.False(t, ok)
}

func TestLoader_Precedence(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigFile, `
SERPAPI_KEY: "yaml_key"
LOG_LEVEL: "DEBUG"
SERVER_STOP_TIMEOUT: 7
ENTRYPOINT: "server.py"
`)
	writeFile(t, dir, DefaultEnvFile, `
# local override
SERPAPI_KEY=env_file_key
LOG_LEVEL=WARNING
`)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)

	key, ok := cfg.GetAPIKey("SERPAPI_KEY")
	require.True(t, ok)
	require.Equal(t, "env_file_key", key)
	require.Equal(t, "warning", cfg.Runtime().LogLevel)
	require.Equal(t, 7*time.Second, cfg.Runtime().StopTimeout)
	require.Equal(t, "server.py", cfg.Runtime().Entrypoint)

	t.Setenv("SERPAPI_KEY", "process_env_key")
	t.Setenv("LOG_LEVEL", "error")
	cfg, err = NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)
	key, ok = cfg.GetAPIKey("serpapi_key")
	require.True(t, ok)
	require.Equal(t, "process_env_key", key)
	require.Equal(t, "error", cfg.Runtime().LogLevel)
	require.Equal(t, "error", cfg.Get("LOG_LEVEL"))
}

func TestLoader_ExplicitPathsAndEnvVars(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "custom.yaml", `
servers_dir: services
discovery:
  exclude: [legacy_server]
servers:
  weather_server:
    args: ["--port", "9000"]
    env:
      UNITS: metric
  flight_server:
    enabled: false
  hotel_server:
    url: " http://127.0.0.1:8090/mcp "
`)
	t.Setenv(EnvConfigPath, cfgPath)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)
	require.Equal(t, cfgPath, cfg.ConfigFile())

	rt := cfg.Runtime()
	require.Equal(t, filepath.Join(dir, "services"), rt.ServersDir)
	require.Equal(t, []string{"legacy_server"}, rt.Exclude)

	want := map[string]domain.ServerLaunchConfig{
		"weather_server": {Enabled: true, Args: []string{"--port", "9000"}, Env: map[string]string{"UNITS": "metric"}},
		"flight_server":  {Enabled: false},
		"hotel_server":   {Enabled: true, URL: "http://127.0.0.1:8090/mcp"},
	}
	if diff := cmp.Diff(want, rt.Servers); diff != "" {
		t.Fatalf("servers mismatch (-want +got):\n%s", diff)
	}
	require.True(t, rt.Launch("car_server").Enabled)
	require.False(t, rt.Launch("flight_server").Enabled)
}

func TestLoader_ServersDirOverride(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigFile, "servers_dir: from_yaml\n")
	t.Setenv("SERVERS_DIR", "from_env")

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir, ServersDir: "from_flag"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "from_flag"), cfg.Runtime().ServersDir)
}

func TestLoader_MalformedYAMLIsSkipped(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigFile, "servers: [unterminated")

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultEntrypoint, cfg.Runtime().Entrypoint)
}

func TestLoader_InvalidTimeout(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigFile, "server_stop_timeout: -1\n")

	_, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.Error(t, err)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeInvalidArgument, code)
}

func TestLoader_OversizedTimeout(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigFile, "server_start_timeout: 1e300\n")

	_, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.Error(t, err)
	require.Contains(t, err.Error(), "server_start_timeout is too large")
}

func TestConfig_Redacted(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultEnvFile, "SERPAPI_KEY=secret\n")

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), Options{BaseDir: dir})
	require.NoError(t, err)

	redacted := cfg.Redacted()
	require.Equal(t, redactedValue, redacted[KeySerpAPIKey])
	discovery, ok := redacted["discovery"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, discovery["watch"])
	require.NotContains(t, redacted, "secret")

	require.Equal(t, "secret", cfg.Settings()[KeySerpAPIKey])
}
