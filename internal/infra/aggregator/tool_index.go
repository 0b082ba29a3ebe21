package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/provider"
	"travelmcp/internal/infra/telemetry"
)

// Service pairs a loaded provider with its server name.
type Service struct {
	Name     string
	Provider domain.ToolProvider
}

// ToolIndexOptions tunes how provider manifests are fetched.
type ToolIndexOptions struct {
	Concurrency int
	Timeout     time.Duration
	Metrics     domain.Metrics
	Logger      *zap.Logger
}

// ToolIndex is the namespaced view over every provider's tools. Rebuild
// swaps the whole index at once.
type ToolIndex struct {
	concurrency int
	timeout     time.Duration
	metrics     domain.Metrics
	logger      *zap.Logger

	state atomic.Pointer[toolIndexState]

	mu   sync.Mutex
	subs map[chan []domain.ToolRecord]struct{}
}

type toolIndexState struct {
	records map[string]domain.ToolRecord
	names   []string
}

func NewToolIndex(opts ToolIndexOptions) *ToolIndex {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	index := &ToolIndex{
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		metrics:     metrics,
		logger:      logger.Named("tool_index"),
		subs:        make(map[chan []domain.ToolRecord]struct{}),
	}
	index.state.Store(&toolIndexState{records: map[string]domain.ToolRecord{}})
	return index
}

type fetchResult struct {
	service string
	tools   []domain.ToolSpec
	err     error
}

// Rebuild lists every service's tools and replaces the index. Services are
// merged in the given order, so on a name collision the later service wins.
// A service whose listing fails contributes nothing.
func (i *ToolIndex) Rebuild(ctx context.Context, services []Service) map[string]domain.ToolRecord {
	records, _ := i.rebuild(ctx, services)
	return records
}

// rebuild is Rebuild that also reports the services whose listing failed,
// keyed by name.
func (i *ToolIndex) rebuild(ctx context.Context, services []Service) (map[string]domain.ToolRecord, map[string]error) {
	fetched := i.fetchAll(ctx, services)

	records := make(map[string]domain.ToolRecord)
	failed := make(map[string]error)
	for _, service := range services {
		res := fetched[service.Name]
		if res.err != nil {
			i.logger.Warn("tool list fetch failed", telemetry.ServerField(service.Name), zap.Error(res.err))
			failed[service.Name] = res.err
			continue
		}
		targets, _ := service.Provider.(domain.InvocableTools)
		for _, spec := range res.tools {
			name := Namespace(service.Name, spec.Name)
			if existing, ok := records[name]; ok {
				i.logger.Warn("tool name conflict",
					telemetry.EventField(telemetry.EventToolConflict),
					telemetry.ToolField(name),
					zap.String("previous", existing.Service),
					zap.String("winner", service.Name),
				)
			}
			records[name] = domain.ToolRecord{
				NamespacedName: name,
				OriginalName:   spec.Name,
				Service:        service.Name,
				Spec:           spec,
				Invocable:      invocableFor(service.Provider, targets, spec.Name),
			}
		}
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	i.state.Store(&toolIndexState{records: records, names: names})
	i.metrics.SetRegisteredTools(len(records))
	i.logger.Info("tool index rebuilt",
		telemetry.EventField(telemetry.EventRegistryReload),
		zap.Int("services", len(services)),
		zap.Int("tools", len(records)),
	)
	i.broadcast()
	return copyRecords(records), failed
}

func (i *ToolIndex) fetchAll(ctx context.Context, services []Service) map[string]fetchResult {
	out := make(map[string]fetchResult, len(services))
	workers := refreshWorkerCount(i.concurrency, len(services))
	if workers == 0 {
		return out
	}

	jobs := make(chan Service)
	results := make(chan fetchResult, len(services))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for service := range jobs {
				fetchCtx, cancel := withRefreshTimeout(ctx, i.timeout)
				tools, err := listTools(fetchCtx, service.Provider)
				cancel()
				results <- fetchResult{service: service.Name, tools: tools, err: err}
			}
		}()
	}
	for _, service := range services {
		jobs <- service
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		out[res.service] = res
	}
	return out
}

func listTools(ctx context.Context, p domain.ToolProvider) (tools []domain.ToolSpec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("list tools panic: %v", r)
		}
	}()
	return p.ListTools(ctx)
}

// invocableFor prefers a direct call target exposed by the provider and
// falls back to routing through CallTool.
func invocableFor(p domain.ToolProvider, targets domain.InvocableTools, name string) domain.Invocable {
	if targets != nil {
		if target, ok := targets.ToolTarget(name); ok {
			if invocable, ok := provider.Adapt(target); ok {
				return invocable
			}
		}
	}
	return domain.InvokeFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return p.CallTool(ctx, name, args)
	})
}

func (i *ToolIndex) Resolve(name string) (domain.ToolRecord, bool) {
	record, ok := i.state.Load().records[name]
	return record, ok
}

// Records returns the index sorted by namespaced name.
func (i *ToolIndex) Records() []domain.ToolRecord {
	state := i.state.Load()
	out := make([]domain.ToolRecord, 0, len(state.names))
	for _, name := range state.names {
		out = append(out, state.records[name])
	}
	return out
}

func (i *ToolIndex) Len() int {
	return len(i.state.Load().records)
}

// Subscribe delivers the current records and every later rebuild until ctx
// ends. A slow subscriber only sees the latest index.
func (i *ToolIndex) Subscribe(ctx context.Context) <-chan []domain.ToolRecord {
	ch := make(chan []domain.ToolRecord, 1)

	i.mu.Lock()
	i.subs[ch] = struct{}{}
	i.mu.Unlock()

	sendRecords(ch, i.Records())

	go func() {
		<-ctx.Done()
		i.mu.Lock()
		delete(i.subs, ch)
		i.mu.Unlock()
	}()
	return ch
}

func (i *ToolIndex) broadcast() {
	records := i.Records()
	i.mu.Lock()
	defer i.mu.Unlock()
	for ch := range i.subs {
		sendRecords(ch, records)
	}
}

func sendRecords(ch chan []domain.ToolRecord, records []domain.ToolRecord) {
	for {
		select {
		case ch <- records:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func copyRecords(records map[string]domain.ToolRecord) map[string]domain.ToolRecord {
	out := make(map[string]domain.ToolRecord, len(records))
	for name, record := range records {
		out[name] = record
	}
	return out
}
