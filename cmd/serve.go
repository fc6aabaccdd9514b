package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/agentchat/internal/api"
)

// ServeCommand returns the CLI command for starting the chat gateway
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat gateway",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the gateway, overrides server.port",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := loadApp(c, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}

			port := a.cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			server := api.NewServer(api.Options{
				Port:           port,
				FrontendURL:    a.cfg.Server.FrontendURL,
				RequestTimeout: a.cfg.Server.RequestTimeout,
				Chat:           a.chat,
				Personas:       a.personas,
				Metrics:        a.metrics,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Start(ctx)
		},
	}
}
