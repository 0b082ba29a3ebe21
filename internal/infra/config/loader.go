package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

const (
	EnvConfigPath = "MCP_CONFIG_PATH"
	EnvEnvFile    = "MCP_ENV_FILE"

	DefaultConfigFile = "runtime_config.yaml"
	DefaultEnvFile    = ".env"
)

const (
	KeyServersDir        = "servers_dir"
	KeyEntrypoint        = "entrypoint"
	KeyLauncher          = "launcher"
	KeyStateDir          = "state_dir"
	KeyPIDStore          = "pid_store"
	KeyLogsDir           = "logs_dir"
	KeyStartTimeout      = "server_start_timeout"
	KeyStopTimeout       = "server_stop_timeout"
	KeyVerifyTimeout     = "verify_timeout"
	KeySerpAPIKey        = "serpapi_key"
	KeySerpAPIEndpoint   = "serpapi_endpoint"
	KeyLogLevel          = "log_level"
	KeyServerName        = "mcp_server_name"
	KeyMetricsAddress    = "metrics_address"
	KeyDiscoveryExclude  = "discovery.exclude"
	KeyDiscoveryWatch    = "discovery.watch"
	KeyReconcileSchedule = "supervisor.reconcile_schedule"
	KeyServers           = "servers"
)

// Options selects the files a Loader reads. Empty paths fall back to the
// MCP_CONFIG_PATH and MCP_ENV_FILE variables, then to files in BaseDir.
// A non-empty ServersDir overrides every other source.
type Options struct {
	ConfigPath string
	EnvFile    string
	BaseDir    string
	ServersDir string
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newRuntimeViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setRuntimeDefaults(v)
	return v
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault(KeyServersDir, "")
	v.SetDefault(KeyEntrypoint, domain.DefaultEntrypoint)
	v.SetDefault(KeyLauncher, []string{domain.DefaultLauncher})
	v.SetDefault(KeyStateDir, ".")
	v.SetDefault(KeyPIDStore, domain.DefaultPIDStoreFile)
	v.SetDefault(KeyLogsDir, domain.DefaultLogsDir)
	v.SetDefault(KeyStartTimeout, domain.DefaultStartTimeout.Seconds())
	v.SetDefault(KeyStopTimeout, domain.DefaultStopTimeout.Seconds())
	v.SetDefault(KeyVerifyTimeout, domain.DefaultVerifyTimeout.Seconds())
	v.SetDefault(KeySerpAPIKey, "")
	v.SetDefault(KeySerpAPIEndpoint, domain.DefaultSerpAPIEndpoint)
	v.SetDefault(KeyLogLevel, domain.DefaultLogLevel)
	v.SetDefault(KeyServerName, domain.DefaultServerName)
	v.SetDefault(KeyMetricsAddress, "")
	v.SetDefault(KeyDiscoveryExclude, []string{})
	v.SetDefault(KeyDiscoveryWatch, true)
	v.SetDefault(KeyReconcileSchedule, domain.DefaultReconcileSchedule)
}

// Load builds the configuration from defaults, the YAML file, the .env file
// and the process environment, in increasing priority. Missing files are
// skipped; unreadable or malformed files are logged and skipped.
func (l *Loader) Load(ctx context.Context, opts Options) (*Config, error) {
	v := newRuntimeViper()

	configPath := resolvePath(opts.ConfigPath, EnvConfigPath, opts.BaseDir, DefaultConfigFile)
	if err := l.mergeFile(v, configPath, "yaml"); err != nil {
		l.logger.Warn("failed to load yaml config", zap.String("path", configPath), zap.Error(err))
	}

	envPath := resolvePath(opts.EnvFile, EnvEnvFile, opts.BaseDir, DefaultEnvFile)
	if err := l.mergeFile(v, envPath, "env"); err != nil {
		l.logger.Warn("failed to load env file", zap.String("path", envPath), zap.Error(err))
	}

	v.AutomaticEnv()
	if opts.ServersDir != "" {
		v.Set(KeyServersDir, opts.ServersDir)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runtime, err := decodeRuntime(v, opts.BaseDir)
	if err != nil {
		return nil, err
	}
	return &Config{v: v, runtime: runtime, files: loadedFiles{config: configPath, env: envPath}}, nil
}

func (l *Loader) mergeFile(v *viper.Viper, path, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("config source not found", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read %s: %w", format, err)
	}

	src := viper.New()
	src.SetConfigType(format)
	if err := src.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", format, err)
	}
	settings := src.AllSettings()
	if format == "env" {
		settings = normalizeEnvSettings(settings)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merge %s: %w", format, err)
	}
	l.logger.Info("loaded configuration", zap.String("path", path), zap.String("format", format))
	return nil
}

// normalizeEnvSettings drops empty values so that an empty line in .env does
// not shadow a value from the YAML file.
func normalizeEnvSettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out[key] = s
			continue
		}
		out[key] = value
	}
	return out
}

func resolvePath(explicit, envVar, baseDir, fallback string) string {
	path := strings.TrimSpace(explicit)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envVar))
	}
	if path == "" {
		path = fallback
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return path
}

type rawServerLaunch struct {
	Enabled *bool             `mapstructure:"enabled"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	URL     string            `mapstructure:"url"`
}

func decodeRuntime(v *viper.Viper, baseDir string) (domain.RuntimeConfig, error) {
	var errs []string

	startTimeout, err := seconds(v, KeyStartTimeout)
	if err != nil {
		errs = append(errs, err.Error())
	}
	stopTimeout, err := seconds(v, KeyStopTimeout)
	if err != nil {
		errs = append(errs, err.Error())
	}
	verifyTimeout, err := seconds(v, KeyVerifyTimeout)
	if err != nil {
		errs = append(errs, err.Error())
	}

	var servers map[string]rawServerLaunch
	if v.IsSet(KeyServers) {
		if err := v.UnmarshalKey(KeyServers, &servers); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", KeyServers, err))
		}
	}
	if len(errs) > 0 {
		return domain.RuntimeConfig{}, domain.E(domain.CodeInvalidArgument, "load config", strings.Join(errs, "; "), domain.ErrInvalidArgument)
	}

	launch := make(map[string]domain.ServerLaunchConfig, len(servers))
	for name, raw := range servers {
		enabled := true
		if raw.Enabled != nil {
			enabled = *raw.Enabled
		}
		launch[name] = domain.ServerLaunchConfig{
			Enabled: enabled,
			Args:    raw.Args,
			Env:     upperKeys(raw.Env),
			URL:     strings.TrimSpace(raw.URL),
		}
	}

	stateDir := anchor(baseDir, v.GetString(KeyStateDir))
	serversDir := anchor(baseDir, v.GetString(KeyServersDir))
	if serversDir == "" {
		serversDir = "."
	}

	return domain.RuntimeConfig{
		ServersDir:        serversDir,
		Entrypoint:        v.GetString(KeyEntrypoint),
		Launcher:          stringList(v.Get(KeyLauncher)),
		StateDir:          stateDir,
		PIDStore:          anchor(stateDir, v.GetString(KeyPIDStore)),
		LogsDir:           anchor(stateDir, v.GetString(KeyLogsDir)),
		StartTimeout:      startTimeout,
		StopTimeout:       stopTimeout,
		VerifyTimeout:     verifyTimeout,
		SerpAPIEndpoint:   v.GetString(KeySerpAPIEndpoint),
		LogLevel:          strings.ToLower(v.GetString(KeyLogLevel)),
		ServerName:        v.GetString(KeyServerName),
		MetricsAddress:    v.GetString(KeyMetricsAddress),
		Exclude:           stringList(v.Get(KeyDiscoveryExclude)),
		Watch:             v.GetBool(KeyDiscoveryWatch),
		ReconcileSchedule: v.GetString(KeyReconcileSchedule),
		Servers:           launch,
	}, nil
}

func seconds(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
	}
	value := v.GetFloat64(key)
	if value <= 0 || math.IsNaN(value) {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	if value >= math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("%s is too large", key)
	}
	return time.Duration(value * float64(time.Second)), nil
}

// stringList accepts a YAML sequence or a comma separated string, which is
// how list values arrive from .env files and the environment.
func stringList(raw any) []string {
	var items []string
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(value, ",")
	case []string:
		items = append(items, value...)
	case []any:
		for _, part := range value {
			items = append(items, fmt.Sprint(part))
		}
	default:
		items = append(items, fmt.Sprint(value))
	}
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// upperKeys restores environment variable casing, which viper folds to
// lower case while reading nested maps.
func upperKeys(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for key, value := range env {
		out[strings.ToUpper(key)] = value
	}
	return out
}

func anchor(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
