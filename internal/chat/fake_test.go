package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/agentsvc/local"
	"github.com/agentchat/internal/tools"
)

// scriptedService answers run calls from a fixed script and delegates everything
// else to an in-memory service.
type scriptedService struct {
	agentsvc.Service

	mu          sync.Mutex
	polls       []agentsvc.Run
	afterSubmit agentsvc.Run
	getRuns     int
	submitted   [][]agentsvc.ToolApproval
	resources   []agentsvc.ToolResources
}

func newScripted(polls ...agentsvc.Run) *scriptedService {
	return &scriptedService{Service: newLocal(), polls: polls}
}

func newLocal() *local.Service {
	return local.New(local.Options{Catalogs: []*tools.Catalog{tools.BikeStore(1), tools.TechSupport(1)}})
}

func (s *scriptedService) CreateRun(_ context.Context, threadID, agentID string, resources agentsvc.ToolResources) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resources)
	return &agentsvc.Run{ID: "run_1", ThreadID: threadID, AgentID: agentID, Status: agentsvc.RunQueued}, nil
}

func (s *scriptedService) GetRun(_ context.Context, threadID, runID string) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getRuns++
	if len(s.polls) == 0 {
		return &agentsvc.Run{ID: runID, ThreadID: threadID, Status: agentsvc.RunInProgress}, nil
	}
	run := s.polls[0]
	if len(s.polls) > 1 {
		s.polls = s.polls[1:]
	}
	run.ID = runID
	run.ThreadID = threadID
	return &run, nil
}

func (s *scriptedService) SubmitToolApprovals(_ context.Context, threadID, runID string, approvals []agentsvc.ToolApproval) (*agentsvc.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, approvals)
	run := s.afterSubmit
	if run.Status == "" {
		run.Status = agentsvc.RunInProgress
	}
	run.ID = runID
	run.ThreadID = threadID
	return &run, nil
}

func (s *scriptedService) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRuns, len(s.submitted)
}

// failingLookups makes every GetThread and GetAgent call fail with a transport error
type failingLookups struct {
	agentsvc.Service
}

var errTransport = errors.New("connection reset by peer")

func (failingLookups) GetThread(context.Context, string) (*agentsvc.Thread, error) {
	return nil, errTransport
}

func (failingLookups) GetAgent(context.Context, string) (*agentsvc.Agent, error) {
	return nil, errTransport
}

// brokenService fails every call
type brokenService struct {
	agentsvc.Service
}

func (brokenService) CreateThread(context.Context) (*agentsvc.Thread, error) {
	return nil, errTransport
}

func (brokenService) GetThread(context.Context, string) (*agentsvc.Thread, error) {
	return nil, errTransport
}

func (brokenService) ListAgents(context.Context) ([]agentsvc.Agent, error) {
	return nil, errTransport
}

func (brokenService) GetAgent(context.Context, string) (*agentsvc.Agent, error) {
	return nil, errTransport
}

// stallingService never answers a run poll before the caller gives up
type stallingService struct {
	*scriptedService
}

func (s *stallingService) GetRun(ctx context.Context, _, _ string) (*agentsvc.Run, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stalledResponder blocks every turn until release is closed or its context ends
func stalledResponder(release <-chan struct{}) local.Responder {
	return stalledFunc(func(ctx context.Context) (local.Reply, error) {
		select {
		case <-release:
			return local.Reply{Text: "late"}, nil
		case <-ctx.Done():
			return local.Reply{}, ctx.Err()
		}
	})
}

type stalledFunc func(ctx context.Context) (local.Reply, error)

func (f stalledFunc) Respond(ctx context.Context, _ local.Turn) (local.Reply, error) {
	return f(ctx)
}
