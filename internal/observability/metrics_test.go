package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunFinished("completed", 3, 1.5)
	m.ToolDecision(true)
	m.ToolDecision(false)
	m.Resolved("thread", "created")
	m.HTTPRequest("POST", "/api/chat/send", "200")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"agentchat_runs_total",
		"agentchat_run_duration_seconds",
		"agentchat_run_polls_total",
		"agentchat_tool_approvals_total",
		"agentchat_resolutions_total",
		"agentchat_http_requests_total",
	} {
		assert.True(t, names[name], name)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunCounter.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RunPolls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolApprovals.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("thread", "created")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunFinished("failed", 1, 0.1)
		m.ToolDecision(true)
		m.Resolved("agent", "found")
		m.HTTPRequest("GET", "/health", "200")
	})
}

func TestUnregisteredMetrics(t *testing.T) {
	m := NewMetrics(nil)
	m.RunFinished("expired", 2, 0.2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunCounter.WithLabelValues("expired")))
}
