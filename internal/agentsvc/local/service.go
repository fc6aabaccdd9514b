package local

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/tools"
)

var (
	// ErrActiveRun is returned when a thread already has a pending run
	ErrActiveRun = errors.New("thread already has an active run")
	// ErrInvalidApproval is returned for approvals that do not match the pending tool calls
	ErrInvalidApproval = errors.New("tool approvals do not match the pending tool calls")
)

const (
	defaultRunTTL    = 10 * time.Minute
	defaultMaxRounds = 5
	defaultStepTime  = 5 * time.Minute
	deniedOutput     = "The user denied this tool call."
)

// Options configures the in-process service
type Options struct {
	Responder Responder
	Catalogs  []*tools.Catalog
	// RunTTL expires pending runs that are not polled for this long
	RunTTL time.Duration
	// MaxToolRounds fails a run that keeps requesting tools
	MaxToolRounds int
	// StepTimeout bounds one responder call. The call outlives the poll that started it.
	StepTimeout time.Duration
	Now         func() time.Time
}

type threadState struct {
	thread    agentsvc.Thread
	messages  []agentsvc.Message
	activeRun string
}

type runState struct {
	run        agentsvc.Run
	agent      agentsvc.Agent
	resources  agentsvc.ToolResources
	outputs    []ToolOutput
	rounds     int
	stepping   bool
	lastPolled time.Time
}

// Service emulates the managed agent service in memory. State lives for the
// lifetime of the process only.
type Service struct {
	responder Responder
	catalogs  map[string]*tools.Catalog
	runTTL    time.Duration
	maxRounds int
	stepTime  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	threads map[string]*threadState
	agents  []*agentsvc.Agent
	runs    map[string]*runState
}

var _ agentsvc.Service = (*Service)(nil)

// New creates an empty service
func New(opts Options) *Service {
	s := &Service{
		responder: opts.Responder,
		catalogs:  make(map[string]*tools.Catalog, len(opts.Catalogs)),
		runTTL:    opts.RunTTL,
		maxRounds: opts.MaxToolRounds,
		stepTime:  opts.StepTimeout,
		now:       opts.Now,
		threads:   make(map[string]*threadState),
		runs:      make(map[string]*runState),
	}
	for _, c := range opts.Catalogs {
		s.catalogs[c.Label] = c
	}
	if s.responder == nil {
		s.responder = EchoResponder{}
	}
	if s.runTTL <= 0 {
		s.runTTL = defaultRunTTL
	}
	if s.maxRounds <= 0 {
		s.maxRounds = defaultMaxRounds
	}
	if s.stepTime <= 0 {
		s.stepTime = defaultStepTime
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateThread creates an empty thread
func (s *Service) CreateThread(ctx context.Context) (*agentsvc.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &threadState{thread: agentsvc.Thread{ID: newID("thread"), CreatedAt: s.now()}}
	s.threads[t.thread.ID] = t
	thread := t.thread
	return &thread, nil
}

// GetThread fetches a thread
func (s *Service) GetThread(ctx context.Context, threadID string) (*agentsvc.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, agentsvc.ErrNotFound)
	}
	thread := t.thread
	return &thread, nil
}

// CreateMessage appends a text message. Not allowed while a run is pending.
func (s *Service) CreateMessage(ctx context.Context, threadID string, role agentsvc.MessageRole, text string) (*agentsvc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, agentsvc.ErrNotFound)
	}
	if s.pendingRunLocked(t) {
		return nil, fmt.Errorf("cannot add message to thread %s: %w", threadID, ErrActiveRun)
	}
	msg := s.appendMessageLocked(t, role, text)
	return &msg, nil
}

// ListMessages returns all messages of a thread in the requested order
func (s *Service) ListMessages(ctx context.Context, threadID string, order agentsvc.ListOrder) ([]agentsvc.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, agentsvc.ErrNotFound)
	}
	out := cloneMessages(t.messages)
	if order == agentsvc.OrderDescending {
		slices.Reverse(out)
	}
	return out, nil
}

// CreateRun queues a run of an agent on a thread
func (s *Service) CreateRun(ctx context.Context, threadID, agentID string, resources agentsvc.ToolResources) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, agentsvc.ErrNotFound)
	}
	agent := s.findAgentLocked(agentID)
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, agentsvc.ErrNotFound)
	}
	if s.pendingRunLocked(t) {
		return nil, fmt.Errorf("cannot start run on thread %s: %w", threadID, ErrActiveRun)
	}

	now := s.now()
	rs := &runState{
		run: agentsvc.Run{
			ID:        newID("run"),
			ThreadID:  threadID,
			AgentID:   agentID,
			Status:    agentsvc.RunQueued,
			CreatedAt: now,
		},
		agent:      *agent,
		resources:  resources,
		lastPolled: now,
	}
	s.runs[rs.run.ID] = rs
	t.activeRun = rs.run.ID

	run := cloneRun(rs.run)
	return &run, nil
}

// GetRun returns the run after advancing it by at most one step
func (s *Service) GetRun(ctx context.Context, threadID, runID string) (*agentsvc.Run, error) {
	s.mu.Lock()
	rs, err := s.runLocked(threadID, runID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := s.now()
	s.expireLocked(rs, now)
	rs.lastPolled = now

	switch {
	case rs.run.Status == agentsvc.RunQueued:
		rs.run.Status = agentsvc.RunInProgress
	case rs.run.Status == agentsvc.RunInProgress && !rs.stepping:
		done := s.stepLocked(ctx, rs)
		s.mu.Unlock()

		// A cancelled poll only stops waiting; the step still lands on the run.
		select {
		case <-done:
		case <-ctx.Done():
		}

		s.mu.Lock()
	}

	run := cloneRun(rs.run)
	s.mu.Unlock()
	return &run, nil
}

// SubmitToolApprovals answers every pending tool call of a run
func (s *Service) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []agentsvc.ToolApproval) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.runLocked(threadID, runID)
	if err != nil {
		return nil, err
	}
	action := rs.run.RequiredAction
	if rs.run.Status != agentsvc.RunRequiresAction || action == nil || action.Type != agentsvc.ActionSubmitToolApproval {
		return nil, fmt.Errorf("run %s is %s, not awaiting tool approval: %w", runID, rs.run.Status, ErrInvalidApproval)
	}

	decisions := make(map[string]bool, len(approvals))
	for _, a := range approvals {
		decisions[a.ToolCallID] = a.Approve
	}
	if len(decisions) != len(action.ToolCalls) {
		return nil, fmt.Errorf("run %s expects %d approvals, got %d: %w", runID, len(action.ToolCalls), len(decisions), ErrInvalidApproval)
	}
	for _, call := range action.ToolCalls {
		if _, ok := decisions[call.ID]; !ok {
			return nil, fmt.Errorf("missing approval for tool call %s: %w", call.ID, ErrInvalidApproval)
		}
	}

	for _, call := range action.ToolCalls {
		out := ToolOutput{
			CallID:      call.ID,
			Name:        call.Name,
			ServerLabel: call.ServerLabel,
			Arguments:   call.Arguments,
			Approved:    decisions[call.ID],
		}
		if out.Approved {
			out.Output = s.invokeLocked(call)
		} else {
			out.Output = deniedOutput
		}
		rs.outputs = append(rs.outputs, out)
	}

	rs.run.RequiredAction = nil
	rs.run.Status = agentsvc.RunInProgress
	run := cloneRun(rs.run)
	return &run, nil
}

// ListAgents returns agents in creation order
func (s *Service) ListAgents(ctx context.Context) ([]agentsvc.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]agentsvc.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, cloneAgent(*a))
	}
	return out, nil
}

// GetAgent fetches an agent
func (s *Service) GetAgent(ctx context.Context, agentID string) (*agentsvc.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAgentLocked(agentID)
	if a == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, agentsvc.ErrNotFound)
	}
	agent := cloneAgent(*a)
	return &agent, nil
}

// CreateAgent registers an agent. Names are not required to be unique.
func (s *Service) CreateAgent(ctx context.Context, spec agentsvc.AgentSpec) (*agentsvc.Agent, error) {
	if spec.Model == "" {
		return nil, errors.New("agent model is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := &agentsvc.Agent{
		ID:           newID("asst"),
		Name:         spec.Name,
		Model:        spec.Model,
		Instructions: spec.Instructions,
		Tools:        slices.Clone(spec.Tools),
		CreatedAt:    s.now(),
	}
	s.agents = append(s.agents, a)
	agent := cloneAgent(*a)
	return &agent, nil
}

func (s *Service) runLocked(threadID, runID string) (*runState, error) {
	rs, ok := s.runs[runID]
	if !ok || rs.run.ThreadID != threadID {
		return nil, fmt.Errorf("run %s on thread %s: %w", runID, threadID, agentsvc.ErrNotFound)
	}
	return rs, nil
}

func (s *Service) pendingRunLocked(t *threadState) bool {
	if t.activeRun == "" {
		return false
	}
	rs, ok := s.runs[t.activeRun]
	if !ok {
		return false
	}
	s.expireLocked(rs, s.now())
	return rs.run.Status.Pending()
}

// expireLocked moves a pending run that has not been polled within the TTL to expired
func (s *Service) expireLocked(rs *runState, now time.Time) {
	if rs.run.Status.Pending() && now.Sub(rs.lastPolled) > s.runTTL {
		log.Debug().Str("run_id", rs.run.ID).Msg("Run expired without a poll")
		rs.run.Status = agentsvc.RunExpired
		rs.run.RequiredAction = nil
	}
}

// stepLocked asks the responder for the next turn in the background and applies
// the reply when it arrives. The returned channel is closed once it is applied.
func (s *Service) stepLocked(ctx context.Context, rs *runState) <-chan struct{} {
	rs.stepping = true
	turn := s.turnLocked(rs)
	done := make(chan struct{})

	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stepTime)
	go func() {
		defer close(done)
		defer cancel()

		reply, respondErr := s.responder.Respond(stepCtx, turn)

		s.mu.Lock()
		defer s.mu.Unlock()
		rs.stepping = false
		if rs.run.Status == agentsvc.RunInProgress {
			s.applyReplyLocked(rs, reply, respondErr)
		}
	}()
	return done
}

func (s *Service) findAgentLocked(agentID string) *agentsvc.Agent {
	for _, a := range s.agents {
		if a.ID == agentID {
			return a
		}
	}
	return nil
}

func (s *Service) appendMessageLocked(t *threadState, role agentsvc.MessageRole, text string) agentsvc.Message {
	msg := agentsvc.Message{
		ID:        newID("msg"),
		ThreadID:  t.thread.ID,
		Role:      role,
		CreatedAt: s.now(),
		Content:   []agentsvc.ContentItem{{Type: "text", Text: text}},
	}
	t.messages = append(t.messages, msg)
	return msg
}

// availableToolsLocked lists the catalog tools the run may call: the server must be
// both defined on the agent and bound through the run's tool resources.
func (s *Service) availableToolsLocked(rs *runState) []AvailableTool {
	defined := map[string]bool{}
	for _, def := range rs.agent.Tools {
		if def.Type == agentsvc.ToolTypeMCP {
			defined[def.ServerLabel] = true
		}
	}

	var out []AvailableTool
	for _, res := range rs.resources.MCP {
		catalog, ok := s.catalogs[res.ServerLabel]
		if !ok || !defined[res.ServerLabel] {
			continue
		}
		for _, t := range catalog.Tools() {
			out = append(out, AvailableTool{ServerLabel: res.ServerLabel, Tool: t})
		}
	}
	return out
}

func (s *Service) turnLocked(rs *runState) Turn {
	var messages []agentsvc.Message
	if t, ok := s.threads[rs.run.ThreadID]; ok {
		messages = cloneMessages(t.messages)
	}
	return Turn{
		Agent:    cloneAgent(rs.agent),
		Messages: messages,
		Tools:    s.availableToolsLocked(rs),
		Outputs:  slices.Clone(rs.outputs),
		Round:    rs.rounds,
	}
}

func (s *Service) applyReplyLocked(rs *runState, reply Reply, respondErr error) {
	if respondErr != nil {
		log.Warn().Err(respondErr).Str("run_id", rs.run.ID).Msg("Responder failed, failing run")
		rs.run.Status = agentsvc.RunFailed
		rs.run.LastError = &agentsvc.RunError{Code: "server_error", Message: respondErr.Error()}
		return
	}

	if len(reply.ToolCalls) == 0 {
		if t, ok := s.threads[rs.run.ThreadID]; ok {
			s.appendMessageLocked(t, agentsvc.RoleAssistant, reply.Text)
		}
		rs.run.Status = agentsvc.RunCompleted
		return
	}

	if rs.rounds >= s.maxRounds {
		rs.run.Status = agentsvc.RunFailed
		rs.run.LastError = &agentsvc.RunError{
			Code:    "tool_round_limit",
			Message: fmt.Sprintf("agent requested tools more than %d times", s.maxRounds),
		}
		return
	}
	rs.rounds++

	action := &agentsvc.RequiredAction{Type: agentsvc.ActionSubmitToolApproval}
	for _, req := range reply.ToolCalls {
		args := req.Arguments
		if args == "" {
			args = "{}"
		}
		action.ToolCalls = append(action.ToolCalls, agentsvc.ToolCall{
			ID:          newID("call"),
			Type:        agentsvc.ToolTypeMCP,
			Name:        req.Name,
			ServerLabel: req.ServerLabel,
			Arguments:   args,
		})
	}
	rs.run.RequiredAction = action
	rs.run.Status = agentsvc.RunRequiresAction
}

func (s *Service) invokeLocked(call agentsvc.ToolCall) string {
	catalog, ok := s.catalogs[call.ServerLabel]
	if !ok {
		return fmt.Sprintf("Tool server %q is not available.", call.ServerLabel)
	}
	args, err := call.DecodeArguments()
	if err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err)
	}
	out, err := catalog.Invoke(call.Name, args)
	if err != nil {
		return err.Error()
	}
	return out
}

func cloneRun(r agentsvc.Run) agentsvc.Run {
	if r.RequiredAction != nil {
		action := *r.RequiredAction
		action.ToolCalls = slices.Clone(action.ToolCalls)
		r.RequiredAction = &action
	}
	if r.LastError != nil {
		e := *r.LastError
		r.LastError = &e
	}
	return r
}

func cloneAgent(a agentsvc.Agent) agentsvc.Agent {
	a.Tools = slices.Clone(a.Tools)
	return a
}

func cloneMessages(in []agentsvc.Message) []agentsvc.Message {
	out := make([]agentsvc.Message, len(in))
	for i, m := range in {
		m.Content = slices.Clone(m.Content)
		out[i] = m
	}
	return out
}
