package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
//
//	m := observability.NewMetrics(prometheus.NewRegistry())
//	m.RunFinished("completed", 3, time.Since(start).Seconds())
type Metrics struct {
	// RunCounter counts finished runs.
	// Labels: status (completed|failed|cancelled|expired|timeout|error)
	RunCounter *prometheus.CounterVec

	// RunDuration measures the time from run creation to its terminal state in seconds.
	RunDuration prometheus.Histogram

	// RunPolls counts run status polls.
	RunPolls prometheus.Counter

	// ToolApprovals counts approval decisions.
	// Labels: decision (approved|denied)
	ToolApprovals *prometheus.CounterVec

	// Resolutions counts thread and agent resolutions.
	// Labels: kind (thread|agent), outcome (found|created|fallback)
	Resolutions *prometheus.CounterVec

	// HTTPRequestCounter counts gateway requests.
	// Labels: method, path, status
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_runs_total",
				Help: "Total number of agent runs by terminal status",
			},
			[]string{"status"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentchat_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		RunPolls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentchat_run_polls_total",
				Help: "Total number of run status polls",
			},
		),

		ToolApprovals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_tool_approvals_total",
				Help: "Total number of tool call approval decisions",
			},
			[]string{"decision"},
		),

		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_resolutions_total",
				Help: "Total number of thread and agent resolutions by outcome",
			},
			[]string{"kind", "outcome"},
		),

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// RunFinished records a run that reached a terminal state or gave up
func (m *Metrics) RunFinished(status string, polls int, seconds float64) {
	if m == nil {
		return
	}
	m.RunCounter.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
	m.RunPolls.Add(float64(polls))
}

// ToolDecision records one approval decision
func (m *Metrics) ToolDecision(approved bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if approved {
		decision = "approved"
	}
	m.ToolApprovals.WithLabelValues(decision).Inc()
}

// Resolved records how a thread or agent was obtained
func (m *Metrics) Resolved(kind, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind, outcome).Inc()
}

// HTTPRequest records a handled request
func (m *Metrics) HTTPRequest(method, path, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestCounter.WithLabelValues(method, path, status).Inc()
}
