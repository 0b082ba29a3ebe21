package domain

import "time"

// Config is the read-only configuration view the core depends on.
type Config interface {
	Get(key string) any
	GetAPIKey(name string) (string, bool)
}

// ServerLaunchConfig holds per-server launch overrides.
type ServerLaunchConfig struct {
	Enabled bool
	Args    []string
	Env     map[string]string
	// URL reaches an already running server over streamable HTTP instead of
	// spawning its entrypoint.
	URL string
}

// RuntimeConfig is the typed projection of the loaded configuration.
type RuntimeConfig struct {
	ServersDir        string
	Entrypoint        string
	Launcher          []string
	StateDir          string
	PIDStore          string
	LogsDir           string
	StartTimeout      time.Duration
	StopTimeout       time.Duration
	VerifyTimeout     time.Duration
	SerpAPIEndpoint   string
	LogLevel          string
	ServerName        string
	MetricsAddress    string
	Exclude           []string
	Watch             bool
	ReconcileSchedule string
	Servers           map[string]ServerLaunchConfig
}

// Launch returns the launch overrides for name, enabled by default.
func (c RuntimeConfig) Launch(name string) ServerLaunchConfig {
	if cfg, ok := c.Servers[name]; ok {
		return cfg
	}
	return ServerLaunchConfig{Enabled: true}
}
