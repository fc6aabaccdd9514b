package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/observability"
	"github.com/agentchat/internal/personas"
)

// AgentResolution is the agent a message is sent to.
// Fallback is set when an agent id was supplied but could not be fetched.
type AgentResolution struct {
	Agent    agentsvc.Agent
	Created  bool
	Fallback bool
}

// RegistryConfig describes the agents the registry creates on first use
type RegistryConfig struct {
	ModelDeployment string
	Tool            agentsvc.ToolDefinition
	// Personas supplies instructions for agents named after a known persona. Optional.
	Personas *personas.Catalog
}

// AgentRegistry finds agents by id or name on the remote service. Nothing is cached
// locally, so concurrent first-time resolves of one name may create duplicates.
type AgentRegistry struct {
	svc     agentsvc.Service
	cfg     RegistryConfig
	metrics *observability.Metrics
}

func NewAgentRegistry(svc agentsvc.Service, cfg RegistryConfig, metrics *observability.Metrics) *AgentRegistry {
	return &AgentRegistry{svc: svc, cfg: cfg, metrics: metrics}
}

// ResolveAgent returns the agent with agentID if it exists, otherwise the first agent
// named exactly agentName, otherwise a newly created agent with that name.
func (r *AgentRegistry) ResolveAgent(ctx context.Context, agentID, agentName string) (AgentResolution, error) {
	ctx, span := tracer.Start(ctx, "chat.ResolveAgent")
	defer span.End()
	span.SetAttributes(attribute.String("agent.id", agentID), attribute.String("agent.name", agentName))

	fallback := false
	if agentID != "" {
		agent, err := r.svc.GetAgent(ctx, agentID)
		if err == nil && agent != nil {
			r.metrics.Resolved("agent", "found")
			return AgentResolution{Agent: *agent}, nil
		}
		if err == nil {
			err = errors.New("service returned no agent")
		}
		log.Warn().Err(err).
			Str("agent_id", agentID).
			Str("agent_name", agentName).
			Msg("Agent lookup failed, resolving by name")
		fallback = true
	}

	agents, err := r.svc.ListAgents(ctx)
	if err != nil {
		spanError(span, err)
		return AgentResolution{}, fmt.Errorf("failed to list agents: %w", err)
	}
	for _, a := range agents {
		if a.Name == agentName {
			r.metrics.Resolved("agent", "found")
			return AgentResolution{Agent: a, Fallback: fallback}, nil
		}
	}

	agent, err := r.svc.CreateAgent(ctx, r.spec(agentName))
	if err != nil {
		spanError(span, err)
		return AgentResolution{}, fmt.Errorf("failed to create agent %q: %w", agentName, err)
	}
	r.metrics.Resolved("agent", "created")
	log.Info().
		Str("agent_id", agent.ID).
		Str("agent_name", agentName).
		Str("model", agent.Model).
		Msg("Created agent")

	return AgentResolution{Agent: *agent, Created: true, Fallback: fallback}, nil
}

func (r *AgentRegistry) spec(name string) agentsvc.AgentSpec {
	spec := agentsvc.AgentSpec{
		Model: r.cfg.ModelDeployment,
		Name:  name,
		Tools: []agentsvc.ToolDefinition{r.cfg.Tool},
	}
	if r.cfg.Personas != nil && name != "" {
		if p, err := r.cfg.Personas.Lookup(name); err == nil {
			spec.Instructions = p.SystemPrompt
		}
	}
	return spec
}
