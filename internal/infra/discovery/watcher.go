package discovery

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

const defaultRescanDebounce = 200 * time.Millisecond

// Watcher calls OnChange after the server root settles following a change
// that can alter the discovery result.
type Watcher struct {
	scanner  *Scanner
	onChange func(ctx context.Context)
	debounce time.Duration
	logger   *zap.Logger
}

func NewWatcher(scanner *Scanner, onChange func(ctx context.Context), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		scanner:  scanner,
		onChange: onChange,
		debounce: defaultRescanDebounce,
		logger:   logger.Named("discovery_watcher"),
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.scanner.Root()); err != nil {
		return err
	}
	w.watchServers(watcher)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("discovery watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) && strings.HasSuffix(filepath.Base(event.Name), domain.ServerSuffix) {
				if err := watcher.Add(event.Name); err != nil {
					w.logger.Debug("discovery watcher add failed", zap.String("path", event.Name), zap.Error(err))
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.logger.Info("server root changed; rescanning")
			w.onChange(ctx)
			w.watchServers(watcher)
		}
	}
}

func (w *Watcher) watchServers(watcher *fsnotify.Watcher) {
	for _, desc := range w.scanner.Discover() {
		if err := watcher.Add(desc.Path); err != nil {
			w.logger.Debug("discovery watcher add failed", zap.String("path", desc.Path), zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == domain.DefaultServerIgnoreFile:
		return true
	case base == w.scanner.Entrypoint():
		return true
	case strings.HasSuffix(base, domain.ServerSuffix):
		return true
	case strings.HasSuffix(base, ".dist-info"), strings.HasSuffix(base, ".egg-info"):
		return true
	}
	return false
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
