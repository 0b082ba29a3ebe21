package telemetry

import (
	"time"

	"travelmcp/internal/domain"
)

type NoopMetrics struct{}

func (NoopMetrics) ObserveToolCall(string, domain.CallStatus, time.Duration) {}

func (NoopMetrics) RecordProcessStart(string, bool) {}

func (NoopMetrics) RecordProcessStop(string, bool) {}

func (NoopMetrics) SetRegisteredTools(int) {}

func (NoopMetrics) SetRunningProcesses(int) {}

var _ domain.Metrics = NoopMetrics{}
