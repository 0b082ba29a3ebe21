package domain

import "time"

// LogLevel uses the MCP logging level names.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// LogEntry is one structured log line offered to MCP clients.
type LogEntry struct {
	Logger    string
	Level     LogLevel
	Timestamp time.Time
	Data      map[string]any
}
