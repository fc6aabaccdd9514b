package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/agentchat/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration for the Azure AI Foundry backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "agentchat.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Check the configuration and show the backend, credentials and run settings it selects",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Created configuration file at %s\n", outputPath)
	fmt.Fprintln(c.App.Writer, "Set agent_service.endpoint and either token or tenant_id/client_id/client_secret, or switch backend to \"local\".")
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", cfg.AgentService.Backend, err)
	}

	fmt.Fprintf(c.App.Writer, "Configuration is valid (backend: %s)\n", cfg.AgentService.Backend)
	printSummary(c.App.Writer, cfg)
	return nil
}

func printSummary(out io.Writer, cfg *config.Config) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch cfg.AgentService.Backend {
	case config.BackendFoundry:
		fmt.Fprintf(w, "  endpoint:\t%s (api-version %s)\n", cfg.AgentService.Endpoint, cfg.AgentService.APIVersion)
		switch cfg.AuthMode() {
		case config.AuthToken:
			fmt.Fprintf(w, "  credentials:\tstatic bearer token\n")
		case config.AuthClientCredentials:
			fmt.Fprintf(w, "  credentials:\tEntra client credentials (tenant %s, client %s)\n",
				cfg.AgentService.TenantID, cfg.AgentService.ClientID)
		}
	case config.BackendLocal:
		if cfg.Local.Responder == config.ResponderLLM {
			fmt.Fprintf(w, "  responder:\tllm (%s %s)\n", cfg.Local.Provider, cfg.Local.Model)
		} else {
			fmt.Fprintf(w, "  responder:\t%s\n", cfg.Local.Responder)
		}
		fmt.Fprintf(w, "  run ttl:\t%s\n", cfg.Local.RunTTL)
	}

	fmt.Fprintf(w, "  agent:\t%s on %s\n", cfg.Agent.DefaultName, cfg.Agent.ModelDeployment)
	fmt.Fprintf(w, "  tool:\t%s (approval %s)\n", cfg.Tool.ServerLabel, cfg.Run.ApprovalPolicy)
	fmt.Fprintf(w, "  polling:\tevery %s for up to %s\n", cfg.Run.PollInterval, cfg.Run.MaxWait)
}
