package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/agentchat/internal/config"
)

// PersonasCommand returns the command for inspecting agent personas
func PersonasCommand() *cli.Command {
	return &cli.Command{
		Name:  "personas",
		Usage: "Inspect agent personas",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List built-in and configured personas",
				Action: runPersonasList,
			},
		},
	}
}

func runPersonasList(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	catalog, err := loadPersonas(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tDEFAULT")
	for _, p := range catalog.All() {
		def := ""
		if p.Name == catalog.Default().Name {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.DisplayName, def)
	}
	return w.Flush()
}
