package envutil

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	skipPathPatchEnv = "TRAVELMCP_SKIP_PATH_PATCH"
	termEnv          = "TERM"
	shellEnv         = "SHELL"
	pathEnv          = "PATH"

	loginShellTimeout = 2 * time.Second
)

type pathCacheEntry struct {
	path string
	err  error
}

var loginPathCache sync.Map

// PatchPATH widens PATH with the login shell's PATH on macOS when the
// gateway was started outside a terminal. MCP hosts launched from the dock
// inherit a minimal PATH in which the server launcher (python3) is often
// missing.
func PatchPATH(env []string) []string {
	if runtime.GOOS != "darwin" {
		return env
	}
	if value, _ := Lookup(env, skipPathPatchEnv); strings.TrimSpace(value) != "" {
		return env
	}
	if value, _ := Lookup(env, termEnv); strings.TrimSpace(value) != "" {
		return env
	}
	shellPath, _ := Lookup(env, shellEnv)
	shellPath = strings.TrimSpace(shellPath)
	if shellPath == "" {
		shellPath = "/bin/zsh"
	}
	loginPath, err := loginShellPATH(shellPath)
	if err != nil || strings.TrimSpace(loginPath) == "" {
		return env
	}
	currentPath, _ := Lookup(env, pathEnv)
	merged := mergePATH(loginPath, currentPath)
	if merged == "" || merged == currentPath {
		return env
	}
	return setEnvValue(env, pathEnv, merged)
}

func loginShellPATH(shellPath string) (string, error) {
	if cached, ok := loginPathCache.Load(shellPath); ok {
		entry := cached.(pathCacheEntry)
		return entry.path, entry.err
	}
	path, err := resolveLoginShellPATH(shellPath)
	loginPathCache.Store(shellPath, pathCacheEntry{path: path, err: err})
	return path, err
}

func resolveLoginShellPATH(shellPath string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loginShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shellPath, "-lc", "echo $PATH")
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// mergePATH keeps the first occurrence of every entry, primary first.
func mergePATH(primary, fallback string) string {
	separator := string(os.PathListSeparator)
	seen := map[string]struct{}{}
	var out []string
	for _, path := range []string{primary, fallback} {
		for _, entry := range strings.Split(path, separator) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if _, exists := seen[entry]; exists {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}
	return strings.Join(out, separator)
}
