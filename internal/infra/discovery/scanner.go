package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

// Options configures a Scanner.
type Options struct {
	Root       string
	Entrypoint string
	Exclude    []string
	Logger     *zap.Logger
}

// Scanner enumerates sibling server directories under one root. It keeps no
// state between calls.
type Scanner struct {
	root       string
	entrypoint string
	exclude    map[string]struct{}
	logger     *zap.Logger
}

func NewScanner(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entrypoint := strings.TrimSpace(opts.Entrypoint)
	if entrypoint == "" {
		entrypoint = domain.DefaultEntrypoint
	}
	exclude := make(map[string]struct{}, len(domain.DefaultExcludedServers)+len(opts.Exclude))
	for _, name := range domain.DefaultExcludedServers {
		exclude[name] = struct{}{}
	}
	for _, name := range opts.Exclude {
		if name = strings.TrimSpace(name); name != "" {
			exclude[name] = struct{}{}
		}
	}
	return &Scanner{
		root:       opts.Root,
		entrypoint: entrypoint,
		exclude:    exclude,
		logger:     logger.Named("discovery"),
	}
}

func (s *Scanner) Root() string { return s.root }

func (s *Scanner) Entrypoint() string { return s.entrypoint }

// Discover returns the qualifying servers sorted by name. A missing or
// unreadable root yields an empty result.
func (s *Scanner) Discover() []domain.ServerDescriptor {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("server root unreadable", zap.String("root", s.root), zap.Error(err))
		return nil
	}

	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = struct{}{}
	}
	matcher := s.loadIgnore()

	var out []domain.ServerDescriptor
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && !isDirLink(filepath.Join(s.root, name)) {
			continue
		}
		if reason := s.rejectName(name, names, matcher); reason != "" {
			if strings.HasSuffix(name, domain.ServerSuffix) {
				s.logger.Debug("skipping candidate", zap.String("server", name), zap.String("reason", reason))
			}
			continue
		}
		path := filepath.Join(s.root, name)
		if !s.hasEntrypoint(path) {
			continue
		}
		out = append(out, domain.ServerDescriptor{Name: name, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves one server by name using the same rules as Discover.
func (s *Scanner) Lookup(name string) (domain.ServerDescriptor, bool) {
	for _, desc := range s.Discover() {
		if desc.Name == name {
			return desc, true
		}
	}
	return domain.ServerDescriptor{}, false
}

// EntrypointPath returns where the entrypoint of a server directory lives.
func (s *Scanner) EntrypointPath(desc domain.ServerDescriptor) string {
	return filepath.Join(desc.Path, s.entrypoint)
}

func (s *Scanner) rejectName(name string, siblings map[string]struct{}, matcher *ignore.GitIgnore) string {
	switch {
	case !strings.HasSuffix(name, domain.ServerSuffix):
		return "suffix"
	case strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_"):
		return "private"
	}
	if _, ok := s.exclude[name]; ok {
		return "excluded"
	}
	if installedPackage(name, siblings) {
		return "installed dependency"
	}
	if matcher != nil && matcher.MatchesPath(name+"/") {
		return "ignored"
	}
	return ""
}

func (s *Scanner) hasEntrypoint(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, s.entrypoint))
	return err == nil && info.Mode().IsRegular()
}

func (s *Scanner) loadIgnore() *ignore.GitIgnore {
	data, err := os.ReadFile(filepath.Join(s.root, domain.DefaultServerIgnoreFile))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}

// installedPackage reports whether name sits next to packaging metadata,
// which marks it as a dependency unpacked into the same directory.
func installedPackage(name string, siblings map[string]struct{}) bool {
	if _, ok := siblings[name+".egg-info"]; ok {
		return true
	}
	prefix := name + "-"
	for sibling := range siblings {
		if strings.HasPrefix(sibling, prefix) && strings.HasSuffix(sibling, ".dist-info") {
			return true
		}
	}
	return false
}

func isDirLink(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
