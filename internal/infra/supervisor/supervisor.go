package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/process"
	"travelmcp/internal/infra/telemetry"
)

// Locator resolves server names to directories.
type Locator interface {
	Discover() []domain.ServerDescriptor
	Lookup(name string) (domain.ServerDescriptor, bool)
	EntrypointPath(desc domain.ServerDescriptor) string
}

// ProcessStore persists ProcessRecords.
type ProcessStore interface {
	Put(record domain.ProcessRecord) error
	Get(name string) (domain.ProcessRecord, bool, error)
	List() ([]domain.ProcessRecord, error)
	DeleteIf(name string, pid int) (bool, error)
	DeleteByPID(pid int) ([]string, error)
	FindByPID(pid int) (string, bool, error)
}

type Options struct {
	Locator Locator
	Store   ProcessStore
	Config  domain.Config
	Runtime domain.RuntimeConfig
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// Supervisor starts, stops and tracks sibling server processes. Operations
// on the same server name never overlap.
type Supervisor struct {
	locator Locator
	store   ProcessStore
	config  domain.Config
	runtime domain.RuntimeConfig
	metrics domain.Metrics
	logger  *zap.Logger
	locks   *keyedMutex

	mu     sync.Mutex
	states map[string]domain.ServerState
}

func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	runtime := opts.Runtime
	if runtime.StopTimeout <= 0 {
		runtime.StopTimeout = domain.DefaultStopTimeout
	}
	return &Supervisor{
		locator: opts.Locator,
		store:   opts.Store,
		config:  opts.Config,
		runtime: runtime,
		metrics: metrics,
		logger:  logger.Named("supervisor"),
		locks:   newKeyedMutex(),
		states:  make(map[string]domain.ServerState),
	}
}

// Start launches name unless dryRun is set, in which case it only reports
// whether a launch would be attempted. Failures are logged, never returned.
func (s *Supervisor) Start(ctx context.Context, name string, dryRun bool, env map[string]string) bool {
	if dryRun {
		desc, ok := s.locator.Lookup(name)
		if !ok {
			s.logger.Info("dry run: server not discoverable", telemetry.ServerField(name))
			return false
		}
		ok = s.entrypointReadable(desc)
		s.logger.Info("dry run: start", telemetry.ServerField(name), zap.Bool("would_start", ok))
		return ok
	}
	_, err := s.Launch(ctx, name, env)
	if err != nil {
		s.logger.Warn("start failed", telemetry.ServerField(name), zap.Error(err))
		return false
	}
	return true
}

// Launch spawns name and records its PID. A server whose recorded process
// is still alive is not spawned again; its record is returned.
func (s *Supervisor) Launch(ctx context.Context, name string, env map[string]string) (domain.ProcessRecord, error) {
	const op = "supervisor.launch"
	if err := ctx.Err(); err != nil {
		return domain.ProcessRecord{}, err
	}
	desc, ok := s.locator.Lookup(name)
	if !ok {
		return domain.ProcessRecord{}, domain.E(domain.CodeNotFound, op, fmt.Sprintf("server %q not found", name), domain.ErrServerNotFound)
	}
	if !s.entrypointReadable(desc) {
		return domain.ProcessRecord{}, domain.E(domain.CodeNotFound, op, fmt.Sprintf("entrypoint missing for %q", name), domain.ErrEntrypointMissing)
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	if existing, found, err := s.store.Get(name); err == nil && found && process.Alive(existing.PID) {
		s.logger.Info("server already running", telemetry.ServerField(name), telemetry.PIDField(existing.PID))
		return existing, nil
	}

	s.setState(name, domain.StateStarting)
	defer s.clearState(name)

	command, err := s.command(desc)
	if err != nil {
		s.metrics.RecordProcessStart(name, false)
		return domain.ProcessRecord{}, domain.Wrap(domain.CodeFailedPrecond, op, err)
	}
	launch := s.runtime.Launch(name)
	handle, err := process.Launch(process.Spec{
		Name:    name,
		Command: append(command, launch.Args...),
		Dir:     desc.Path,
		Env:     mergeEnv(launch.Env, env),
		LogPath: s.logPath(name),
	}, s.logger)
	if err != nil {
		s.metrics.RecordProcessStart(name, false)
		code := domain.CodeFailedPrecond
		if errors.Is(err, domain.ErrPermissionDenied) {
			code = domain.CodePermissionDenied
		}
		return domain.ProcessRecord{}, domain.Wrap(code, op, err)
	}

	record := domain.ProcessRecord{ServerName: name, PID: handle.PID, StartedAt: time.Now().UTC()}
	if err := s.store.Put(record); err != nil {
		s.metrics.RecordProcessStart(name, false)
		_, _ = process.Terminate(context.Background(), handle.PID, s.runtime.StopTimeout, domain.DefaultStopPollInterval)
		return domain.ProcessRecord{}, domain.Wrap(domain.CodeInternal, op, fmt.Errorf("record pid: %w", err))
	}
	s.metrics.RecordProcessStart(name, true)
	s.refreshRunningGauge()
	s.logger.Info("server started",
		telemetry.EventField(telemetry.EventProcessStart),
		telemetry.ServerField(name),
		telemetry.PIDField(handle.PID),
	)
	return record, nil
}

// StartAll launches every discovered server with the search credential
// injected. Each server starts independently.
func (s *Supervisor) StartAll(ctx context.Context, dryRun bool) (map[string]bool, error) {
	const op = "supervisor.start_all"
	key, hasKey := s.credential()
	if !hasKey && !dryRun {
		return nil, domain.CredentialError(op, domain.CredentialSerpAPIKey)
	}
	servers := s.locator.Discover()
	if len(servers) == 0 {
		return nil, domain.E(domain.CodeFailedPrecond, op, "no servers found to start", domain.ErrNoServers)
	}

	var env map[string]string
	if hasKey {
		env = map[string]string{domain.CredentialSerpAPIKey: key}
	}
	results := make(map[string]bool, len(servers))
	for _, desc := range servers {
		if !s.runtime.Launch(desc.Name).Enabled {
			s.logger.Info("server disabled; skipping", telemetry.ServerField(desc.Name))
			results[desc.Name] = false
			continue
		}
		results[desc.Name] = s.Start(ctx, desc.Name, dryRun, env)
	}
	return results, nil
}

// Stop terminates the process behind target, which is either a server name
// or a decimal PID.
func (s *Supervisor) Stop(ctx context.Context, target string, timeout time.Duration) domain.StopResult {
	if timeout <= 0 {
		timeout = s.runtime.StopTimeout
	}
	target = strings.TrimSpace(target)
	if pid, err := strconv.Atoi(target); err == nil {
		return s.StopPID(ctx, pid, timeout)
	}

	unlock := s.locks.Lock(target)
	defer unlock()

	record, found, err := s.store.Get(target)
	if err != nil {
		return domain.StopResult{Error: err.Error()}
	}
	if !found {
		return domain.StopResult{Error: domain.ErrNoProcessRecord.Error()}
	}
	s.setState(target, domain.StateStopping)
	defer s.clearState(target)
	return s.terminate(ctx, target, record.PID, timeout)
}

// StopPID terminates a raw PID and removes any record that holds it.
func (s *Supervisor) StopPID(ctx context.Context, pid int, timeout time.Duration) domain.StopResult {
	if pid <= 0 {
		return domain.StopResult{Error: fmt.Sprintf("invalid pid %d", pid)}
	}
	if timeout <= 0 {
		timeout = s.runtime.StopTimeout
	}
	name, found, err := s.store.FindByPID(pid)
	if err != nil {
		return domain.StopResult{PID: pid, Error: err.Error()}
	}
	if found {
		unlock := s.locks.Lock(name)
		defer unlock()
		s.setState(name, domain.StateStopping)
		defer s.clearState(name)
	}
	return s.terminate(ctx, name, pid, timeout)
}

func (s *Supervisor) terminate(ctx context.Context, name string, pid int, timeout time.Duration) domain.StopResult {
	result, err := process.Terminate(ctx, pid, timeout, domain.DefaultStopPollInterval)
	switch {
	case errors.Is(err, domain.ErrProcessNotFound):
		s.forget(name, pid)
		s.metrics.RecordProcessStop(metricName(name), false)
		return domain.StopResult{PID: pid, Error: domain.ErrProcessNotFound.Error()}
	case err != nil:
		s.metrics.RecordProcessStop(metricName(name), false)
		s.logger.Warn("stop failed", telemetry.ServerField(name), telemetry.PIDField(pid), zap.Error(err))
		return domain.StopResult{PID: pid, Error: fmt.Sprintf("failed to kill: %v", err)}
	}
	s.forget(name, pid)
	s.metrics.RecordProcessStop(metricName(name), true)
	s.logger.Info("server stopped",
		telemetry.EventField(telemetry.EventProcessStop),
		telemetry.ServerField(name),
		telemetry.PIDField(pid),
		zap.Bool("killed", result.Killed),
	)
	return domain.StopResult{OK: true, PID: pid}
}

func (s *Supervisor) forget(name string, pid int) {
	var err error
	if name != "" {
		_, err = s.store.DeleteIf(name, pid)
	} else {
		_, err = s.store.DeleteByPID(pid)
	}
	if err != nil {
		s.logger.Warn("remove pid record failed", telemetry.ServerField(name), telemetry.PIDField(pid), zap.Error(err))
	}
	s.refreshRunningGauge()
}

// HealthCheck reports whether the entrypoint of name exists and is
// readable. It does not probe the running process.
func (s *Supervisor) HealthCheck(name string) bool {
	desc, ok := s.locator.Lookup(name)
	if !ok {
		return false
	}
	return s.entrypointReadable(desc)
}

func (s *Supervisor) ListRegisteredPIDs() (map[string]domain.ProcessRecord, error) {
	records, err := s.store.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ProcessRecord, len(records))
	for _, record := range records {
		out[record.ServerName] = record
	}
	return out, nil
}

func (s *Supervisor) GetRegisteredPID(name string) (int, bool) {
	record, found, err := s.store.Get(name)
	if err != nil || !found {
		return 0, false
	}
	return record.PID, true
}

// Running returns the names holding a ProcessRecord, sorted.
func (s *Supervisor) Running() ([]string, error) {
	records, err := s.store.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.ServerName)
	}
	return names, nil
}

// Status summarizes discovery, credential presence and running servers.
func (s *Supervisor) Status() (domain.StatusReport, error) {
	discovered := s.locator.Discover()
	names := make([]string, 0, len(discovered))
	for _, desc := range discovered {
		names = append(names, desc.Name)
	}
	_, hasKey := s.credential()
	running, err := s.Running()
	if err != nil {
		return domain.StatusReport{}, err
	}
	return domain.StatusReport{Discovered: names, CredentialPresent: hasKey, Running: running}, nil
}

// Reconcile drops records whose process is gone and returns their names.
func (s *Supervisor) Reconcile(ctx context.Context) ([]string, error) {
	records, err := s.store.List()
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if process.Alive(record.PID) {
			continue
		}
		unlock := s.locks.Lock(record.ServerName)
		removed, err := s.store.DeleteIf(record.ServerName, record.PID)
		unlock()
		if err != nil {
			return pruned, err
		}
		if removed {
			s.logger.Info("pruned dead server record", telemetry.ServerField(record.ServerName), telemetry.PIDField(record.PID))
			pruned = append(pruned, record.ServerName)
		}
	}
	sort.Strings(pruned)
	s.refreshRunningGauge()
	return pruned, nil
}

// State reports the lifecycle state of name.
func (s *Supervisor) State(name string) domain.ServerState {
	s.mu.Lock()
	state, ok := s.states[name]
	s.mu.Unlock()
	if ok {
		return state
	}
	if record, found, err := s.store.Get(name); err == nil && found && process.Alive(record.PID) {
		return domain.StateRunning
	}
	return domain.StateUnknown
}

func (s *Supervisor) setState(name string, state domain.ServerState) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.states[name] = state
	s.mu.Unlock()
}

func (s *Supervisor) clearState(name string) {
	s.mu.Lock()
	delete(s.states, name)
	s.mu.Unlock()
}

func (s *Supervisor) credential() (string, bool) {
	if s.config == nil {
		return "", false
	}
	return s.config.GetAPIKey(domain.CredentialSerpAPIKey)
}

func (s *Supervisor) entrypointReadable(desc domain.ServerDescriptor) bool {
	file, err := os.Open(s.locator.EntrypointPath(desc))
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

func (s *Supervisor) command(desc domain.ServerDescriptor) ([]string, error) {
	entrypoint, err := filepath.Abs(s.locator.EntrypointPath(desc))
	if err != nil {
		return nil, fmt.Errorf("resolve entrypoint: %w", err)
	}
	command := make([]string, 0, len(s.runtime.Launcher)+1)
	command = append(command, s.runtime.Launcher...)
	return append(command, entrypoint), nil
}

func (s *Supervisor) logPath(name string) string {
	if s.runtime.LogsDir == "" {
		return ""
	}
	return filepath.Join(s.runtime.LogsDir, name+".log")
}

func (s *Supervisor) refreshRunningGauge() {
	records, err := s.store.List()
	if err != nil {
		return
	}
	s.metrics.SetRunningProcesses(len(records))
}

func mergeEnv(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for key, value := range layer {
			out[key] = value
		}
	}
	return out
}

func metricName(name string) string {
	if name == "" {
		return "unregistered"
	}
	return name
}
