package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/agentchat/internal/agentsvc"
	"github.com/agentchat/internal/agentsvc/foundry"
	"github.com/agentchat/internal/agentsvc/local"
	"github.com/agentchat/internal/aiconnectors"
	"github.com/agentchat/internal/chat"
	"github.com/agentchat/internal/config"
	"github.com/agentchat/internal/logging"
	"github.com/agentchat/internal/observability"
	"github.com/agentchat/internal/personas"
	"github.com/agentchat/internal/tools"
)

// app holds everything a command needs once configuration is loaded
type app struct {
	cfg      *config.Config
	backend  agentsvc.Service
	chat     *chat.Service
	personas *personas.Catalog
	metrics  *observability.Metrics
}

// loadApp reads the configuration named by the global --config flag and wires the
// agent service backend, persona catalog and chat coordinator.
func loadApp(c *cli.Context, reg prometheus.Registerer) (*app, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	catalog, err := loadPersonas(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(c.Context, cfg)
	if err != nil {
		return nil, err
	}

	policy, err := chat.NewApprovalPolicy(cfg.Run.ApprovalPolicy, cfg.Run.AllowedTools)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(reg)
	svc := chat.NewService(backend, chat.Config{
		DefaultAgentName: cfg.Agent.DefaultName,
		Registry: chat.RegistryConfig{
			ModelDeployment: cfg.Agent.ModelDeployment,
			Tool: agentsvc.ToolDefinition{
				Type:        agentsvc.ToolTypeMCP,
				ServerLabel: cfg.Tool.ServerLabel,
				ServerURL:   cfg.Tool.ServerURL,
			},
			Personas: catalog,
		},
		Driver: chat.DriverConfig{
			PollInterval: cfg.Run.PollInterval,
			MaxWait:      cfg.Run.MaxWait,
			MaxPolls:     cfg.Run.MaxPolls,
			Resources: agentsvc.ToolResources{MCP: []agentsvc.MCPToolResource{{
				ServerLabel:     cfg.Tool.ServerLabel,
				RequireApproval: cfg.Tool.RequireApproval,
			}}},
			Policy: policy,
		},
	}, metrics)

	return &app{cfg: cfg, backend: backend, chat: svc, personas: catalog, metrics: metrics}, nil
}

func loadPersonas(cfg *config.Config) (*personas.Catalog, error) {
	list := personas.Builtin()
	if cfg.PersonasFile != "" {
		extra, err := personas.LoadFile(cfg.PersonasFile)
		if err != nil {
			return nil, err
		}
		list = append(list, extra...)
	}
	return personas.NewCatalog(cfg.Agent.DefaultName, list...)
}

func newBackend(ctx context.Context, cfg *config.Config) (agentsvc.Service, error) {
	switch cfg.AgentService.Backend {
	case config.BackendFoundry:
		httpClient, err := foundry.NewHTTPClient(ctx, foundry.Credentials{
			Token:        cfg.AgentService.Token,
			TenantID:     cfg.AgentService.TenantID,
			ClientID:     cfg.AgentService.ClientID,
			ClientSecret: cfg.AgentService.ClientSecret,
			Scope:        cfg.AgentService.Scope,
		})
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("endpoint", cfg.AgentService.Endpoint).
			Str("api_version", cfg.AgentService.APIVersion).
			Msg("Using Azure AI Foundry agent service")
		return foundry.New(foundry.Options{
			Endpoint:   cfg.AgentService.Endpoint,
			APIVersion: cfg.AgentService.APIVersion,
			HTTPClient: httpClient,
		})

	case config.BackendLocal:
		responder, err := newResponder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("responder", cfg.Local.Responder).Msg("Using in-process agent service")
		return local.New(local.Options{
			Responder: responder,
			Catalogs:  []*tools.Catalog{tools.BikeStore(cfg.Local.Seed), tools.TechSupport(cfg.Local.Seed)},
			RunTTL:    cfg.Local.RunTTL,
		}), nil

	default:
		return nil, fmt.Errorf("unknown agent_service backend %q", cfg.AgentService.Backend)
	}
}

func newResponder(ctx context.Context, cfg *config.Config) (local.Responder, error) {
	if cfg.Local.Responder != config.ResponderLLM {
		return local.EchoResponder{}, nil
	}
	opts := aiconnectors.Options{
		Provider:    aiconnectors.Provider(cfg.Local.Provider),
		Model:       cfg.Local.Model,
		APIKey:      cfg.Local.APIKey,
		BaseURL:     cfg.Local.BaseURL,
		Temperature: cfg.Local.Temperature,
		MaxTokens:   cfg.Local.MaxTokens,
	}
	model, err := aiconnectors.NewModel(ctx, opts)
	if err != nil {
		return nil, err
	}
	return local.LLMResponder{Model: model, Options: opts.CallOptions()}, nil
}
