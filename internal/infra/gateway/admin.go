package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"travelmcp/internal/domain"
	"travelmcp/internal/infra/mapping"
)

type adminHandler func(ctx context.Context, args map[string]any) (domain.Result, error)

type adminTool struct {
	spec    domain.ToolSpec
	schema  *jsonschema.Resolved
	handler adminHandler
}

func objectSchema(required []string, properties map[string]*jsonschema.Schema) *jsonschema.Schema {
	if properties == nil {
		properties = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: properties, Required: required}
}

func serverProperty(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "number"}, Description: description}
}

func dryRunProperty() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: "If true, only show what would be started without actually starting"}
}

func (g *Gateway) adminTools() []*adminTool {
	defs := []struct {
		name        string
		description string
		schema      *jsonschema.Schema
		handler     adminHandler
	}{
		{
			name:        "list_servers",
			description: "List all discovered travel planner servers",
			schema:      objectSchema(nil, nil),
			handler:     g.listServers,
		},
		{
			name:        "start_server",
			description: "Start a specific travel planner server",
			schema: objectSchema([]string{"server"}, map[string]*jsonschema.Schema{
				"server":  {Type: "string", Description: "Name of the server to start (e.g., event_server, flight_server)"},
				"dry_run": dryRunProperty(),
			}),
			handler: g.startServer,
		},
		{
			name:        "start_all_servers",
			description: "Start all discovered travel planner servers (requires " + domain.CredentialSerpAPIKey + ")",
			schema: objectSchema(nil, map[string]*jsonschema.Schema{
				"dry_run": dryRunProperty(),
			}),
			handler: g.startAllServers,
		},
		{
			name:        "stop_server",
			description: "Stop a running server by name or PID",
			schema: objectSchema([]string{"server"}, map[string]*jsonschema.Schema{
				"server":  serverProperty("Server name or numeric PID to stop"),
				"timeout": {Type: "number", Description: "Timeout in seconds to wait for graceful shutdown"},
			}),
			handler: g.stopServer,
		},
		{
			name:        "health_check",
			description: "Check health of a specific server (verifies the entrypoint exists and is readable)",
			schema: objectSchema([]string{"server"}, map[string]*jsonschema.Schema{
				"server": {Type: "string", Description: "Name of the server to check"},
			}),
			handler: g.healthCheck,
		},
		{
			name:        "get_status",
			description: "Get overall status including discovered servers and " + domain.CredentialSerpAPIKey + " presence",
			schema:      objectSchema(nil, nil),
			handler:     g.getStatus,
		},
		{
			name:        "list_pids",
			description: "List all registered server PIDs",
			schema:      objectSchema(nil, nil),
			handler:     g.listPIDs,
		},
		{
			name:        "verify_serpapi_key",
			description: "Verify that the " + domain.CredentialSerpAPIKey + " is valid by making a test query",
			schema: objectSchema(nil, map[string]*jsonschema.Schema{
				"timeout": {Type: "number", Description: "Timeout in seconds for the verification request"},
			}),
			handler: g.verifyKey,
		},
	}

	tools := make([]*adminTool, 0, len(defs))
	for _, def := range defs {
		resolved, err := def.schema.Resolve(nil)
		if err != nil {
			// Static schemas; a failure here is a programming error.
			panic(fmt.Sprintf("resolve schema for %s: %v", def.name, err))
		}
		tools = append(tools, &adminTool{
			spec:    domain.ToolSpec{Name: def.name, Description: def.description, InputSchema: def.schema},
			schema:  resolved,
			handler: def.handler,
		})
	}
	return tools
}

// call checks required arguments, then validates the rest against the
// schema before dispatching.
func (t *adminTool) call(ctx context.Context, args map[string]any) (domain.Result, error) {
	schema := t.spec.InputSchema.(*jsonschema.Schema)
	for _, key := range schema.Required {
		if value, ok := args[key]; !ok || value == nil {
			return domain.Result{}, missingArgument(t.spec.Name, key)
		}
	}
	if err := t.schema.Validate(args); err != nil {
		return domain.Result{}, domain.E(domain.CodeInvalidArgument, t.spec.Name, err.Error(), domain.ErrInvalidArgument)
	}
	return t.handler(ctx, args)
}

func (g *Gateway) listServers(context.Context, map[string]any) (domain.Result, error) {
	names := mapping.MapSlice(g.locator.Discover(), func(desc domain.ServerDescriptor) string {
		return desc.Name
	})
	return domain.TextResult("Discovered servers: " + joinOr(names, "None")), nil
}

func (g *Gateway) startServer(ctx context.Context, args map[string]any) (domain.Result, error) {
	server, err := targetArg("start_server", args, "server")
	if err != nil {
		return domain.Result{}, err
	}
	dryRun := boolArg(args, "dry_run")

	var env map[string]string
	if key, ok := g.credential(); ok {
		env = map[string]string{domain.CredentialSerpAPIKey: key}
	}
	ok := g.supervisor.Start(ctx, server, dryRun, env)
	if dryRun {
		return domain.TextResult(fmt.Sprintf("Server '%s' would be started: %t", server, ok)), nil
	}
	text := fmt.Sprintf("Server '%s' started: %t", server, ok)
	if ok {
		if pid, found := g.supervisor.GetRegisteredPID(server); found {
			text += fmt.Sprintf(" (PID: %d)", pid)
		}
	}
	return domain.TextResult(text), nil
}

func (g *Gateway) startAllServers(ctx context.Context, args map[string]any) (domain.Result, error) {
	dryRun := boolArg(args, "dry_run")
	results, err := g.supervisor.StartAll(ctx, dryRun)
	if err != nil {
		return domain.TextResult("Error: " + errorText(err)), nil
	}
	return domain.TextResult(FormatStartAll(results, dryRun)), nil
}

// FormatStartAll renders per-server start outcomes, sorted by name.
func FormatStartAll(results map[string]bool, dryRun bool) string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Start all servers")
	if dryRun {
		b.WriteString(" (dry-run)")
	}
	b.WriteString(":")
	for _, name := range names {
		state := "failed"
		if results[name] {
			state = "started"
		}
		fmt.Fprintf(&b, "\n  - %s: %s", name, state)
	}
	return b.String()
}

func (g *Gateway) stopServer(ctx context.Context, args map[string]any) (domain.Result, error) {
	server, err := targetArg("stop_server", args, "server")
	if err != nil {
		return domain.Result{}, err
	}
	timeout := secondsArg(args, "timeout", g.runtime.StopTimeout)
	res := g.supervisor.Stop(ctx, server, timeout)

	pid := "None"
	if res.PID > 0 {
		pid = fmt.Sprint(res.PID)
	}
	text := fmt.Sprintf("Stop server '%s': ok=%t, pid=%s", server, res.OK, pid)
	if res.Error != "" {
		text += ", error=" + res.Error
	}
	return domain.TextResult(text), nil
}

func (g *Gateway) healthCheck(_ context.Context, args map[string]any) (domain.Result, error) {
	server, err := targetArg("health_check", args, "server")
	if err != nil {
		return domain.Result{}, err
	}
	state := "unhealthy"
	if g.supervisor.HealthCheck(server) {
		state = "healthy"
	}
	return domain.TextResult(fmt.Sprintf("Health check '%s': %s", server, state)), nil
}

func (g *Gateway) getStatus(context.Context, map[string]any) (domain.Result, error) {
	report, err := g.supervisor.Status()
	if err != nil {
		return domain.Result{}, err
	}
	credential := "missing"
	if report.CredentialPresent {
		credential = "present"
	}
	text := fmt.Sprintf("Status:\n  Discovered servers: %d (%s)\n  %s: %s\n  Running servers: %d (%s)",
		len(report.Discovered), joinOr(report.Discovered, "none"),
		domain.CredentialSerpAPIKey, credential,
		len(report.Running), joinOr(report.Running, "none"),
	)
	return domain.TextResult(text), nil
}

func (g *Gateway) listPIDs(context.Context, map[string]any) (domain.Result, error) {
	records, err := g.supervisor.ListRegisteredPIDs()
	if err != nil {
		return domain.Result{}, err
	}
	if len(records) == 0 {
		return domain.TextResult("No registered server PIDs"), nil
	}
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Registered PIDs:")
	for _, name := range names {
		record := records[name]
		fmt.Fprintf(&b, "\n  - %s: PID=%d, started=%s", name, record.PID, record.StartedAt.Format(time.RFC3339))
	}
	return domain.TextResult(b.String()), nil
}

func (g *Gateway) verifyKey(ctx context.Context, args map[string]any) (domain.Result, error) {
	timeout := secondsArg(args, "timeout", g.runtime.VerifyTimeout)
	key, _ := g.credential()

	var res domain.KeyVerification
	if g.verifier == nil {
		res = domain.KeyVerification{Error: "no key verifier configured"}
	} else {
		res = g.verifier.Verify(ctx, key, timeout)
	}
	if !res.OK {
		msg := res.Error
		if msg == "" {
			msg = "unknown"
		}
		text := "SERPAPI_KEY verification: FAILED\n  Error: " + msg
		if res.Sample != "" {
			text += "\n  Response sample: " + res.Sample
		}
		return domain.TextResult(text), nil
	}
	return domain.TextResult(fmt.Sprintf("SERPAPI_KEY verification: SUCCESS\n  HTTP status: %d\n  Response keys: [%s]",
		res.HTTPStatus, strings.Join(res.Keys, ", "))), nil
}

func (g *Gateway) credential() (string, bool) {
	if g.config == nil {
		return "", false
	}
	return g.config.GetAPIKey(domain.CredentialSerpAPIKey)
}

func joinOr(names []string, empty string) string {
	if len(names) == 0 {
		return empty
	}
	return strings.Join(names, ", ")
}

// errorText prefers the human message of a domain error over its coded form.
func errorText(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}
