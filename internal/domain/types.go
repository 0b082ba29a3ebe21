package domain

import (
	"context"
	"time"
)

// ServerDescriptor identifies one discoverable sibling server.
type ServerDescriptor struct {
	Name string
	Path string
}

// ProcessRecord is the persisted metadata of a running sibling server.
type ProcessRecord struct {
	ServerName string    `json:"-"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
}

// ToolSpec describes one tool a provider exposes.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema any
}

// ToolRecord is a provider tool after namespacing.
type ToolRecord struct {
	NamespacedName string
	OriginalName   string
	Service        string
	Spec           ToolSpec
	Invocable      Invocable
}

// TextBlock is one unit of normalized tool output.
type TextBlock struct {
	Text string
}

// Result is the normalized outcome of a gateway call.
type Result struct {
	Content []TextBlock
	IsError bool
}

// Text joins every block with newlines.
func (r Result) Text() string {
	switch len(r.Content) {
	case 0:
		return ""
	case 1:
		return r.Content[0].Text
	}
	out := r.Content[0].Text
	for _, block := range r.Content[1:] {
		out += "\n" + block.Text
	}
	return out
}

func TextResult(text string) Result {
	return Result{Content: []TextBlock{{Text: text}}}
}

func ErrorResult(text string) Result {
	return Result{Content: []TextBlock{{Text: text}}, IsError: true}
}

// StopResult reports the outcome of a stop request. PID is zero when no
// process could be identified.
type StopResult struct {
	OK    bool
	PID   int
	Error string
}

// StatusReport summarizes discovered and running servers.
type StatusReport struct {
	Discovered        []string
	CredentialPresent bool
	Running           []string
}

// KeyVerification is the outcome of a credential probe.
type KeyVerification struct {
	OK         bool
	HTTPStatus int
	Keys       []string
	Error      string
	// Sample is the start of the response body with the key masked.
	Sample string
}

// ServerState is the lifecycle state of a named server.
type ServerState string

const (
	StateUnknown  ServerState = "unknown"
	StateStarting ServerState = "starting"
	StateRunning  ServerState = "running"
	StateStopping ServerState = "stopping"
)

// KeyVerifier checks a credential against its upstream API.
type KeyVerifier interface {
	Verify(ctx context.Context, key string, timeout time.Duration) KeyVerification
}
