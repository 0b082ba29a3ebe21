package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"travelmcp/internal/domain"
)

// gathered flattens a registry into "name{label=value,...}" -> value.
func gathered(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			if len(metric.GetLabel()) > 0 {
				key += "{"
				for i, label := range metric.GetLabel() {
					if i > 0 {
						key += ","
					}
					key += label.GetName() + "=" + label.GetValue()
				}
				key += "}"
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestPrometheusMetrics_RecordsIntoRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)

	m.ObserveToolCall("weather_get_forecast", domain.CallStatusSuccess, 20*time.Millisecond)
	m.ObserveToolCall("made.up", domain.CallStatusUnknown, time.Millisecond)
	m.RecordProcessStart("weather_server", true)
	m.RecordProcessStart("weather_server", false)
	m.RecordProcessStop("weather_server", true)
	m.SetRegisteredTools(7)
	m.SetRunningProcesses(2)

	got := gathered(t, registry)
	require.Equal(t, 1.0, got["travelmcp_process_starts_total{result=success,server=weather_server}"])
	require.Equal(t, 1.0, got["travelmcp_process_starts_total{result=failure,server=weather_server}"])
	require.Equal(t, 1.0, got["travelmcp_process_stops_total{result=success,server=weather_server}"])
	require.Equal(t, 7.0, got["travelmcp_registered_tools"])
	require.Equal(t, 2.0, got["travelmcp_running_processes"])
	require.Equal(t, 1.0, got["travelmcp_tool_call_duration_seconds{status=success,tool=weather_get_forecast}"])
	require.Equal(t, 1.0, got["travelmcp_tool_call_duration_seconds{status=unknown_tool,tool=unknown}"])
}

func TestNoopMetrics(t *testing.T) {
	var m domain.Metrics = NoopMetrics{}
	m.ObserveToolCall("x", domain.CallStatusError, time.Second)
	m.RecordProcessStart("x", true)
	m.RecordProcessStop("x", false)
	m.SetRegisteredTools(1)
	m.SetRunningProcesses(1)
}
