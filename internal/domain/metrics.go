package domain

import "time"

// CallStatus labels the outcome of a gateway call.
type CallStatus string

const (
	CallStatusSuccess CallStatus = "success"
	CallStatusError   CallStatus = "error"
	CallStatusUnknown CallStatus = "unknown_tool"
)

// Metrics records control-plane observations.
type Metrics interface {
	ObserveToolCall(tool string, status CallStatus, duration time.Duration)
	RecordProcessStart(server string, ok bool)
	RecordProcessStop(server string, ok bool)
	SetRegisteredTools(count int)
	SetRunningProcesses(count int)
}
