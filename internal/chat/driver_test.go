package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/agentsvc/local"
	"github.com/agentchat/internal/observability"
	"github.com/agentchat/internal/tools"
)

func fastDriver(svc agentsvc.Service, cfg DriverConfig) *Driver {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	return NewDriver(svc, cfg, nil)
}

func newThread(t *testing.T, svc agentsvc.Service) string {
	t.Helper()
	thread, err := svc.CreateThread(context.Background())
	require.NoError(t, err)
	return thread.ID
}

func approvalRun(calls ...agentsvc.ToolCall) agentsvc.Run {
	return agentsvc.Run{
		Status: agentsvc.RunRequiresAction,
		RequiredAction: &agentsvc.RequiredAction{
			Type:      agentsvc.ActionSubmitToolApproval,
			ToolCalls: calls,
		},
	}
}

func TestExecuteCompletedOnFirstPoll(t *testing.T) {
	svc := newScripted(agentsvc.Run{Status: agentsvc.RunCompleted})
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{}).Execute(context.Background(), threadID, "asst_1", "hi")
	require.NoError(t, err)

	polls, submits := svc.counts()
	assert.Equal(t, 1, polls)
	assert.Equal(t, 0, submits)
	assert.Equal(t, 1, result.Polls)
	assert.Equal(t, 0, result.Approvals)
	assert.Equal(t, agentsvc.RunCompleted, result.Status)
	assert.Equal(t, threadID, result.ThreadID)
	assert.Equal(t, "asst_1", result.AgentID)
	assert.Equal(t, "run_1", result.RunID)

	msgs, err := svc.ListMessages(context.Background(), threadID, agentsvc.OrderAscending)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content[0].Text)
}

func TestExecuteApprovesWholeBatch(t *testing.T) {
	svc := newScripted(
		approvalRun(
			agentsvc.ToolCall{ID: "call_a", Type: agentsvc.ToolTypeMCP, Name: "get_available_bikes", ServerLabel: "contoso_store"},
			agentsvc.ToolCall{ID: "call_b", Type: agentsvc.ToolTypeMCP, Name: "get_bike_by_id", Arguments: `{"bikeId": 2}`},
		),
		agentsvc.Run{Status: agentsvc.RunCompleted},
	)
	threadID := newThread(t, svc)
	resources := agentsvc.ToolResources{MCP: []agentsvc.MCPToolResource{{ServerLabel: "contoso_store"}}}

	result, err := fastDriver(svc, DriverConfig{Resources: resources}).Execute(context.Background(), threadID, "asst_1", "what bikes?")
	require.NoError(t, err)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, []agentsvc.ToolApproval{
		{ToolCallID: "call_a", Approve: true},
		{ToolCallID: "call_b", Approve: true},
	}, svc.submitted[0])
	assert.Equal(t, 2, result.Approvals)
	assert.Equal(t, 2, result.Polls, "polling continues after the approval batch")
	assert.Equal(t, []agentsvc.ToolResources{resources}, svc.resources)
}

func TestExecuteAllowListDenies(t *testing.T) {
	svc := newScripted(
		approvalRun(
			agentsvc.ToolCall{ID: "call_a", Type: agentsvc.ToolTypeMCP, Name: "reset_password"},
			agentsvc.ToolCall{ID: "call_b", Type: agentsvc.ToolTypeMCP, Name: "install_software"},
		),
		agentsvc.Run{Status: agentsvc.RunCompleted},
	)
	threadID := newThread(t, svc)

	var seen []ToolApprovalRequest
	policy := ApprovalFunc(func(ctx context.Context, req ToolApprovalRequest) (bool, string) {
		seen = append(seen, req)
		return NewAllowList("reset_password").Decide(ctx, req)
	})

	_, err := fastDriver(svc, DriverConfig{Policy: policy}).Execute(context.Background(), threadID, "asst_1", "help")
	require.NoError(t, err)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, []agentsvc.ToolApproval{
		{ToolCallID: "call_a", Approve: true},
		{ToolCallID: "call_b", Approve: false},
	}, svc.submitted[0])
	require.Len(t, seen, 2)
	assert.Equal(t, "run_1", seen[0].RunID)
	assert.Equal(t, threadID, seen[0].ThreadID)
}

func TestExecuteSkipsNonMCPCalls(t *testing.T) {
	svc := newScripted(
		approvalRun(agentsvc.ToolCall{ID: "call_fn", Type: "function", Name: "lookup"}),
		agentsvc.Run{Status: agentsvc.RunCompleted},
	)
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{}).Execute(context.Background(), threadID, "asst_1", "hi")
	require.NoError(t, err)
	assert.Empty(t, svc.submitted)
	assert.Equal(t, 2, result.Polls)
}

func TestExecuteFailedRun(t *testing.T) {
	svc := newScripted(agentsvc.Run{
		Status:    agentsvc.RunFailed,
		LastError: &agentsvc.RunError{Code: "rate_limit_exceeded", Message: "slow down"},
	})
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{}).Execute(context.Background(), threadID, "asst_1", "hi")
	require.Error(t, err)

	var failed *RunFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, agentsvc.RunFailed, failed.Status)
	assert.Equal(t, "rate_limit_exceeded", failed.Code)
	assert.Equal(t, threadID, result.ThreadID)
	assert.Equal(t, "asst_1", result.AgentID)
	assert.Equal(t, agentsvc.RunFailed, result.Status)
	require.NotNil(t, result.LastError)
}

func TestExecuteCancellingIsTerminal(t *testing.T) {
	svc := newScripted(agentsvc.Run{Status: agentsvc.RunCancelling})
	threadID := newThread(t, svc)

	_, err := fastDriver(svc, DriverConfig{}).Execute(context.Background(), threadID, "asst_1", "hi")
	var failed *RunFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, agentsvc.RunCancelling, failed.Status)
}

func TestExecuteTimesOut(t *testing.T) {
	svc := newScripted()
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{
		PollInterval: 5 * time.Millisecond,
		MaxWait:      40 * time.Millisecond,
	}).Execute(context.Background(), threadID, "asst_1", "hi")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunTimeout))
	assert.Equal(t, agentsvc.RunInProgress, result.Status)
	assert.Positive(t, result.Polls)
}

func TestExecuteMaxPolls(t *testing.T) {
	svc := newScripted()
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{MaxPolls: 3}).Execute(context.Background(), threadID, "asst_1", "hi")
	assert.True(t, errors.Is(err, ErrRunTimeout))
	assert.Equal(t, 3, result.Polls)
}

func TestExecuteCancelledByCaller(t *testing.T) {
	svc := newScripted()
	threadID := newThread(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := fastDriver(svc, DriverConfig{PollInterval: 5 * time.Millisecond}).Execute(ctx, threadID, "asst_1", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrRunTimeout))
}

func TestExecuteRecordsMetrics(t *testing.T) {
	svc := newScripted(
		approvalRun(agentsvc.ToolCall{ID: "call_a", Type: agentsvc.ToolTypeMCP, Name: "get_available_bikes"}),
		agentsvc.Run{Status: agentsvc.RunCompleted},
	)
	threadID := newThread(t, svc)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	driver := NewDriver(svc, DriverConfig{PollInterval: time.Millisecond}, metrics)
	_, err := driver.Execute(context.Background(), threadID, "asst_1", "hi")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunCounter.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RunPolls))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolApprovals.WithLabelValues("approved")))
}

func TestExecuteWithLocalService(t *testing.T) {
	svc := newLocal()
	ctx := context.Background()
	agent, err := svc.CreateAgent(ctx, agentsvc.AgentSpec{
		Model: "gpt-4o",
		Name:  "Bot",
		Tools: []agentsvc.ToolDefinition{{Type: agentsvc.ToolTypeMCP, ServerLabel: "tech_support"}},
	})
	require.NoError(t, err)
	threadID := newThread(t, svc)

	result, err := fastDriver(svc, DriverConfig{
		Resources: agentsvc.ToolResources{MCP: []agentsvc.MCPToolResource{{ServerLabel: "tech_support"}}},
	}).Execute(ctx, threadID, agent.ID, "please reset password for Ada")
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunCompleted, result.Status)
	assert.Equal(t, 1, result.Approvals)
}

func TestExecuteSlowResponderTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := local.New(local.Options{
		Responder: stalledResponder(release),
		Catalogs:  []*tools.Catalog{tools.BikeStore(1)},
	})
	ctx := context.Background()
	agent, err := slow.CreateAgent(ctx, agentsvc.AgentSpec{Model: "gpt-4o", Name: "Bot"})
	require.NoError(t, err)
	threadID := newThread(t, slow)

	result, err := fastDriver(slow, DriverConfig{MaxWait: 50 * time.Millisecond}).Execute(ctx, threadID, agent.ID, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunTimeout))
	var failed *RunFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Equal(t, agentsvc.RunInProgress, result.Status)
}

func TestExecuteCallerDeadlineIsTimeout(t *testing.T) {
	svc := &stallingService{scriptedService: newScripted()}
	threadID := newThread(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := fastDriver(svc, DriverConfig{MaxWait: time.Minute}).Execute(ctx, threadID, "asst_1", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunTimeout))
	assert.Equal(t, threadID, result.ThreadID)
	assert.Equal(t, "asst_1", result.AgentID)
	assert.Equal(t, "run_1", result.RunID)
}
