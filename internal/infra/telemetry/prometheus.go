package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"travelmcp/internal/domain"
)

type PrometheusMetrics struct {
	toolCallDuration *prometheus.HistogramVec
	processStarts    *prometheus.CounterVec
	processStops     *prometheus.CounterVec
	registeredTools  prometheus.Gauge
	runningProcesses prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "travelmcp_tool_call_duration_seconds",
				Help:    "Duration of gateway tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool", "status"},
		),
		processStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelmcp_process_starts_total",
				Help: "Total number of server process start attempts",
			},
			[]string{"server", "result"},
		),
		processStops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelmcp_process_stops_total",
				Help: "Total number of server process stop attempts",
			},
			[]string{"server", "result"},
		),
		registeredTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "travelmcp_registered_tools",
				Help: "Number of delegated tools in the unified namespace",
			},
		),
		runningProcesses: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "travelmcp_running_processes",
				Help: "Number of server processes holding a PID record",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveToolCall(tool string, status domain.CallStatus, duration time.Duration) {
	// Unknown names are caller input; folding them keeps label cardinality bounded.
	if status == domain.CallStatusUnknown {
		tool = "unknown"
	}
	p.toolCallDuration.WithLabelValues(tool, string(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) RecordProcessStart(server string, ok bool) {
	p.processStarts.WithLabelValues(server, resultLabel(ok)).Inc()
}

func (p *PrometheusMetrics) RecordProcessStop(server string, ok bool) {
	p.processStops.WithLabelValues(server, resultLabel(ok)).Inc()
}

func (p *PrometheusMetrics) SetRegisteredTools(count int) {
	p.registeredTools.Set(float64(count))
}

func (p *PrometheusMetrics) SetRunningProcesses(count int) {
	p.runningProcesses.Set(float64(count))
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
