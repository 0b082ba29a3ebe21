package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/mapping"
	"travelmcp/internal/infra/mcpcodec"
	"travelmcp/internal/infra/telemetry"
)

// Supervisor is the process control surface used by the admin tools.
type Supervisor interface {
	Start(ctx context.Context, name string, dryRun bool, env map[string]string) bool
	StartAll(ctx context.Context, dryRun bool) (map[string]bool, error)
	Stop(ctx context.Context, target string, timeout time.Duration) domain.StopResult
	HealthCheck(name string) bool
	ListRegisteredPIDs() (map[string]domain.ProcessRecord, error)
	GetRegisteredPID(name string) (int, bool)
	Status() (domain.StatusReport, error)
}

// Locator lists discoverable servers.
type Locator interface {
	Discover() []domain.ServerDescriptor
}

// ToolResolver is the read side of the namespaced tool index.
type ToolResolver interface {
	Resolve(name string) (domain.ToolRecord, bool)
	Records() []domain.ToolRecord
}

type Options struct {
	Supervisor Supervisor
	Locator    Locator
	Tools      ToolResolver
	Verifier   domain.KeyVerifier
	Config     domain.Config
	Runtime    domain.RuntimeConfig
	Metrics    domain.Metrics
	Logger     *zap.Logger
}

// Gateway answers every tool call of the unified server: administrative
// tools directly, everything else by delegation through the tool index.
type Gateway struct {
	supervisor Supervisor
	locator    Locator
	tools      ToolResolver
	verifier   domain.KeyVerifier
	config     domain.Config
	runtime    domain.RuntimeConfig
	metrics    domain.Metrics
	logger     *zap.Logger

	admin      map[string]*adminTool
	adminOrder []string
}

func New(opts Options) *Gateway {
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
	if runtime.VerifyTimeout <= 0 {
		runtime.VerifyTimeout = domain.DefaultVerifyTimeout
	}
	g := &Gateway{
		supervisor: opts.Supervisor,
		locator:    opts.Locator,
		tools:      opts.Tools,
		verifier:   opts.Verifier,
		config:     opts.Config,
		runtime:    runtime,
		metrics:    metrics,
		logger:     logger.Named("gateway"),
		admin:      make(map[string]*adminTool),
	}
	for _, tool := range g.adminTools() {
		g.admin[tool.spec.Name] = tool
		g.adminOrder = append(g.adminOrder, tool.spec.Name)
	}
	return g
}

// IsAdmin reports whether name is served by the gateway itself.
func (g *Gateway) IsAdmin(name string) bool {
	_, ok := g.admin[name]
	return ok
}

// AdminTools lists the administrative tools in declaration order.
func (g *Gateway) AdminTools() []domain.ToolSpec {
	return mapping.MapSlice(g.adminOrder, func(name string) domain.ToolSpec {
		return g.admin[name].spec
	})
}

// Tools lists the administrative tools followed by the delegated ones under
// their namespaced names.
func (g *Gateway) Tools() []domain.ToolSpec {
	out := g.AdminTools()
	if g.tools == nil {
		return out
	}
	for _, record := range g.tools.Records() {
		if g.IsAdmin(record.NamespacedName) {
			continue
		}
		spec := record.Spec
		spec.Name = record.NamespacedName
		out = append(out, spec)
	}
	return out
}

// Call runs one tool call to completion. It never panics and never returns
// an error; failures come back as error results carrying the cause.
func (g *Gateway) Call(ctx context.Context, name string, args map[string]any) (result domain.Result) {
	ctx, _ = telemetry.EnsureCallMeta(ctx)
	logger := telemetry.CallLogger(ctx, g.logger).With(telemetry.ToolField(name))
	status := domain.CallStatusSuccess
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool call panic", zap.Any("panic", r))
			result = domain.ErrorResult(fmt.Sprintf("Error calling tool %s: %v", name, r))
		}
		if result.IsError && status == domain.CallStatusSuccess {
			status = domain.CallStatusError
		}
		elapsed := time.Since(start)
		g.metrics.ObserveToolCall(name, status, elapsed)
		logger.Debug("tool call finished",
			telemetry.EventField(telemetry.EventToolCall),
			telemetry.DurationField(elapsed),
			zap.Bool("is_error", result.IsError),
		)
	}()

	if args == nil {
		args = map[string]any{}
	}

	if tool, ok := g.admin[name]; ok {
		res, err := tool.call(ctx, args)
		if err != nil {
			return domain.ErrorResult("Error: " + errorText(err))
		}
		return res
	}

	if g.tools == nil {
		status = domain.CallStatusUnknown
		return domain.ErrorResult("Unknown tool: " + name)
	}
	record, ok := g.tools.Resolve(name)
	if !ok {
		status = domain.CallStatusUnknown
		logger.Info("unknown tool requested")
		return domain.ErrorResult("Unknown tool: " + name)
	}

	value, err := record.Invocable.Invoke(ctx, args)
	if err != nil {
		logger.Warn("tool call failed", telemetry.ServerField(record.Service), zap.Error(err))
		return domain.ErrorResult(fmt.Sprintf("Error calling tool %s: %v", name, err))
	}
	return mcpcodec.Normalize(value)
}
