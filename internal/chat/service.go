package chat

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/observability"
)

// Config wires the chat components together
type Config struct {
	// DefaultAgentName is used when a send request names no agent
	DefaultAgentName string
	Registry         RegistryConfig
	Driver           DriverConfig
}

// SendRequest is one user turn
type SendRequest struct {
	AgentName string
	AgentID   string
	ThreadID  string
	Message   string
}

// SendResult identifies the thread and agent the turn ran on.
// The thread id may differ from the requested one.
type SendResult struct {
	ThreadID      string
	AgentID       string
	RunID         string
	Status        agentsvc.RunStatus
	ThreadCreated bool
	AgentCreated  bool
}

// Service coordinates thread resolution, agent resolution and run execution
type Service struct {
	cfg     Config
	threads *ThreadResolver
	agents  *AgentRegistry
	driver  *Driver
	history *HistoryProjector
}

func NewService(svc agentsvc.Service, cfg Config, metrics *observability.Metrics) *Service {
	return &Service{
		cfg:     cfg,
		threads: NewThreadResolver(svc, metrics),
		agents:  NewAgentRegistry(svc, cfg.Registry, metrics),
		driver:  NewDriver(svc, cfg.Driver, metrics),
		history: NewHistoryProjector(svc),
	}
}

// Send posts the message and waits for the agent's run to finish.
// On run failure or timeout the partial result still carries the thread and agent ids.
func (s *Service) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return SendResult{}, ErrEmptyMessage
	}
	name := req.AgentName
	if name == "" {
		name = s.cfg.DefaultAgentName
	}

	ctx, span := tracer.Start(ctx, "chat.Send")
	defer span.End()
	span.SetAttributes(attribute.String("agent.name", name))

	thread, err := s.threads.ResolveThread(ctx, req.ThreadID)
	if err != nil {
		spanError(span, err)
		return SendResult{}, err
	}
	result := SendResult{ThreadID: thread.Thread.ID, ThreadCreated: thread.Created}

	agent, err := s.agents.ResolveAgent(ctx, req.AgentID, name)
	if err != nil {
		spanError(span, err)
		return result, err
	}
	result.AgentID = agent.Agent.ID
	result.AgentCreated = agent.Created

	run, err := s.driver.Execute(ctx, result.ThreadID, result.AgentID, req.Message)
	result.RunID = run.RunID
	result.Status = run.Status
	if err != nil {
		spanError(span, err)
	}
	return result, err
}

// History returns the chat history of a thread
func (s *Service) History(ctx context.Context, threadID string) ([]HistoryEntry, error) {
	return s.history.History(ctx, threadID)
}
