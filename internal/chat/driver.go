package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/observability"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxWait      = 2 * time.Minute
)

// DriverConfig bounds and paces the run poll loop
type DriverConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	// MaxPolls stops polling after this many status fetches. Zero means no limit.
	MaxPolls int
	// Resources is the tool binding passed to every run
	Resources agentsvc.ToolResources
	Policy    ApprovalPolicy
}

// RunResult describes how a run ended
type RunResult struct {
	ThreadID  string
	AgentID   string
	RunID     string
	Status    agentsvc.RunStatus
	LastError *agentsvc.RunError
	Polls     int
	Approvals int
	Duration  time.Duration
}

// Driver posts a user message, starts a run and polls it to a terminal status,
// answering tool approval requests on the way.
type Driver struct {
	svc     agentsvc.Service
	cfg     DriverConfig
	metrics *observability.Metrics
}

func NewDriver(svc agentsvc.Service, cfg DriverConfig, metrics *observability.Metrics) *Driver {
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Policy == nil {
		cfg.Policy = ApproveAll{}
	}
	return &Driver{svc: svc, cfg: cfg, metrics: metrics}
}

// Execute runs agentID against threadID for one user message.
// A run that ends in any status but completed returns the result with a *RunFailedError.
// A run still pending after MaxWait or MaxPolls returns ErrRunTimeout.
func (d *Driver) Execute(ctx context.Context, threadID, agentID, message string) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "chat.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("thread.id", threadID), attribute.String("agent.id", agentID))

	result, err := d.execute(ctx, threadID, agentID, message)
	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("run.status", string(result.Status)),
		attribute.Int("run.polls", result.Polls),
		attribute.Int("run.approvals", result.Approvals),
	)
	if err != nil {
		spanError(span, err)
	}
	return result, err
}

func (d *Driver) execute(ctx context.Context, threadID, agentID, message string) (RunResult, error) {
	start := time.Now()
	result := RunResult{ThreadID: threadID, AgentID: agentID}

	if _, err := d.svc.CreateMessage(ctx, threadID, agentsvc.RoleUser, message); err != nil {
		return result, fmt.Errorf("failed to add message to thread %s: %w", threadID, err)
	}

	run, err := d.svc.CreateRun(ctx, threadID, agentID, d.cfg.Resources)
	if err != nil {
		return result, fmt.Errorf("failed to start run on thread %s: %w", threadID, err)
	}
	result.RunID = run.ID
	result.Status = run.Status

	log.Debug().
		Str("thread_id", threadID).
		Str("agent_id", agentID).
		Str("run_id", run.ID).
		Msg("Started run")

	finish := func(status string, err error) (RunResult, error) {
		result.Duration = time.Since(start)
		d.metrics.RunFinished(status, result.Polls, result.Duration.Seconds())
		return result, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.MaxWait)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(d.cfg.PollInterval), 1)
	// The first status fetch waits one full interval like every later one.
	limiter.Allow()

	for run.Status.Pending() {
		if d.cfg.MaxPolls > 0 && result.Polls >= d.cfg.MaxPolls {
			return finish("timeout", d.timeout(run, result, start))
		}

		if err := limiter.Wait(waitCtx); err != nil {
			return finish(d.interrupted(ctx, run, result, start))
		}

		next, err := d.svc.GetRun(waitCtx, threadID, run.ID)
		result.Polls++
		if err != nil {
			if waitCtx.Err() != nil {
				return finish(d.interrupted(ctx, run, result, start))
			}
			return finish("error", fmt.Errorf("failed to get run %s: %w", run.ID, err))
		}
		run = next
		result.Status = run.Status

		if run.Status != agentsvc.RunRequiresAction || run.RequiredAction == nil ||
			run.RequiredAction.Type != agentsvc.ActionSubmitToolApproval {
			continue
		}

		approvals := d.decide(waitCtx, run)
		if len(approvals) == 0 {
			continue
		}
		next, err = d.svc.SubmitToolApprovals(waitCtx, threadID, run.ID, approvals)
		if err != nil {
			return finish("error", fmt.Errorf("failed to submit tool approvals for run %s: %w", run.ID, err))
		}
		result.Approvals += len(approvals)
		run = next
		result.Status = run.Status
	}

	result.LastError = run.LastError

	logEvent := log.Info()
	if run.Status != agentsvc.RunCompleted {
		logEvent = log.Warn()
	}
	logEvent.
		Str("thread_id", threadID).
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("polls", result.Polls).
		Int("approvals", result.Approvals).
		Msg("Run finished")

	if run.Status != agentsvc.RunCompleted {
		failure := &RunFailedError{RunID: run.ID, Status: run.Status}
		if run.LastError != nil {
			failure.Code = run.LastError.Code
			failure.Message = run.LastError.Message
		}
		return finish(string(run.Status), failure)
	}
	return finish(string(run.Status), nil)
}

// decide asks the policy about every MCP tool call of the pending batch
func (d *Driver) decide(ctx context.Context, run *agentsvc.Run) []agentsvc.ToolApproval {
	var approvals []agentsvc.ToolApproval
	for _, call := range run.RequiredAction.ToolCalls {
		if call.Type != "" && call.Type != agentsvc.ToolTypeMCP {
			continue
		}
		args, err := call.DecodeArguments()
		if err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Str("tool", call.Name).Msg("Could not decode tool arguments")
		}

		approve, reason := d.cfg.Policy.Decide(ctx, ToolApprovalRequest{
			RunID:       run.ID,
			ThreadID:    run.ThreadID,
			CallID:      call.ID,
			ToolName:    call.Name,
			ServerLabel: call.ServerLabel,
			Arguments:   args,
		})
		d.metrics.ToolDecision(approve)
		log.Info().
			Str("run_id", run.ID).
			Str("tool_call_id", call.ID).
			Str("tool", call.Name).
			Str("server_label", call.ServerLabel).
			Bool("approved", approve).
			Str("reason", reason).
			Msg("Tool call decision")

		approvals = append(approvals, agentsvc.ToolApproval{ToolCallID: call.ID, Approve: approve})
	}
	return approvals
}

// interrupted reports a wait cut short by a context. Only caller cancellation is
// passed through; any deadline, ours or the caller's, is a timeout.
func (d *Driver) interrupted(ctx context.Context, run *agentsvc.Run, result RunResult, start time.Time) (string, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return "cancelled", fmt.Errorf("waiting for run %s: %w", run.ID, ctx.Err())
	}
	return "timeout", d.timeout(run, result, start)
}

func (d *Driver) timeout(run *agentsvc.Run, result RunResult, start time.Time) error {
	log.Warn().
		Str("thread_id", result.ThreadID).
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("polls", result.Polls).
		Msg("Gave up waiting for run")
	return fmt.Errorf("run %s still %s after %s and %d polls: %w",
		run.ID, run.Status, time.Since(start).Round(time.Millisecond), result.Polls, ErrRunTimeout)
}
