package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldServer     = "server"
	FieldTool       = "tool"
	FieldPID        = "pid"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventProcessStart   = "process_start"
	EventProcessStop    = "process_stop"
	EventToolCall       = "tool_call"
	EventToolConflict   = "tool_conflict"
	EventRegistryReload = "registry_reload"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ServerField(name string) zap.Field {
	return zap.String(FieldServer, name)
}

func ToolField(name string) zap.Field {
	return zap.String(FieldTool, name)
}

func PIDField(pid int) zap.Field {
	return zap.Int(FieldPID, pid)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}
