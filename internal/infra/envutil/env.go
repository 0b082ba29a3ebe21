package envutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Merge returns base with every overlay key set exactly once. Overlay keys
// are applied in sorted order so the result is deterministic.
func Merge(base []string, overlay map[string]string) []string {
	out := append([]string(nil), base...)
	keys := make([]string, 0, len(overlay))
	for key := range overlay {
		if key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = setEnvValue(out, key, overlay[key])
	}
	return out
}

// Lookup returns the last value of key in env.
func Lookup(env []string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	prefix := key + "="
	var (
		value string
		found bool
	)
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			value = strings.TrimPrefix(entry, prefix)
			found = true
		}
	}
	return value, found
}

func setEnvValue(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			continue
		}
		out = append(out, entry)
	}
	return append(out, prefix+value)
}

// LookPath resolves a bare executable name against the PATH in env. The
// name is returned unchanged when it contains a separator or is not found,
// leaving the error to exec.
func LookPath(file string, env []string) string {
	if file == "" || strings.ContainsRune(file, os.PathSeparator) {
		return file
	}
	path, ok := Lookup(env, pathEnv)
	if !ok {
		return file
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, file)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return candidate
		}
	}
	return file
}
