package config

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"travelmcp/internal/domain"
)

const redactedValue = "***REDACTED***"

var secretKeys = map[string]struct{}{
	KeySerpAPIKey: {},
}

type loadedFiles struct {
	config string
	env    string
}

// Config is the loaded configuration. It is safe for concurrent reads.
type Config struct {
	v       *viper.Viper
	runtime domain.RuntimeConfig
	files   loadedFiles
}

var _ domain.Config = (*Config)(nil)

func (c *Config) Get(key string) any {
	if c == nil || c.v == nil {
		return nil
	}
	return c.v.Get(strings.ToLower(key))
}

// GetAPIKey resolves a credential by its environment name, so both
// SERPAPI_KEY and serpapi_key address the same value.
func (c *Config) GetAPIKey(name string) (string, bool) {
	if value, ok := os.LookupEnv(strings.ToUpper(name)); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if c == nil || c.v == nil {
		return "", false
	}
	value := strings.TrimSpace(c.v.GetString(strings.ToLower(name)))
	if value == "" {
		return "", false
	}
	return value, true
}

func (c *Config) Runtime() domain.RuntimeConfig {
	if c == nil {
		return domain.RuntimeConfig{}
	}
	return c.runtime
}

func (c *Config) ConfigFile() string { return c.files.config }

func (c *Config) EnvFile() string { return c.files.env }

// Redacted returns every setting with credentials masked.
func (c *Config) Redacted() map[string]any {
	return c.settings(true)
}

// Settings returns every setting as a nested map, credentials included.
func (c *Config) Settings() map[string]any {
	return c.settings(false)
}

func (c *Config) settings(redact bool) map[string]any {
	if c == nil || c.v == nil {
		return map[string]any{}
	}
	keys := c.v.AllKeys()
	sort.Strings(keys)
	out := make(map[string]any)
	for _, key := range keys {
		value := c.v.Get(key)
		if _, secret := secretKeys[key]; secret && redact {
			if s, ok := value.(string); ok && s == "" {
				value = nil
			} else {
				value = redactedValue
			}
		}
		setNested(out, strings.Split(key, "."), value)
	}
	return out
}

func setNested(dst map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		next, ok := dst[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			dst[part] = next
		}
		dst = next
	}
	dst[path[len(path)-1]] = value
}

// Static builds a Config from an already typed runtime and explicit values,
// mainly for tests and embedding.
func Static(runtime domain.RuntimeConfig, values map[string]any) *Config {
	v := viper.New()
	for key, value := range values {
		v.Set(strings.ToLower(key), value)
	}
	return &Config{v: v, runtime: runtime}
}
