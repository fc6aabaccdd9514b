package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agentchat/internal/chat"
)

// ChatCommand returns the command for talking to an agent from the terminal.
// With the local backend every invocation starts from an empty service.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Send messages and read thread history",
		Subcommands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Send a message to an agent and print the reply",
				ArgsUsage: "MESSAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent name, defaults to agent.default_name"},
					&cli.StringFlag{Name: "agent-id", Usage: "Agent id to try before resolving by name"},
					&cli.StringFlag{Name: "thread", Aliases: []string{"t"}, Usage: "Thread id to continue"},
				},
				Action: runChatSend,
			},
			{
				Name:  "history",
				Usage: "Print the messages of a thread",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "thread", Aliases: []string{"t"}, Usage: "Thread id", Required: true},
				},
				Action: runChatHistory,
			},
		},
	}
}

func runChatSend(c *cli.Context) error {
	message := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return errors.New("a message is required")
	}

	a, err := loadApp(c, nil)
	if err != nil {
		return err
	}

	res, err := a.chat.Send(c.Context, chat.SendRequest{
		AgentName: c.String("agent"),
		AgentID:   c.String("agent-id"),
		ThreadID:  c.String("thread"),
		Message:   message,
	})
	if res.ThreadID != "" {
		fmt.Fprintf(c.App.Writer, "thread: %s\nagent:  %s\nstatus: %s\n", res.ThreadID, res.AgentID, res.Status)
	}
	if err != nil {
		return err
	}

	entries, err := a.chat.History(c.Context, res.ThreadID)
	if err != nil {
		return err
	}
	// The reply is everything after the last user entry.
	last := -1
	for i, e := range entries {
		if e.Role == "user" {
			last = i
		}
	}
	fmt.Fprintln(c.App.Writer)
	for _, e := range entries[last+1:] {
		fmt.Fprintln(c.App.Writer, e.Content)
	}
	return nil
}

func runChatHistory(c *cli.Context) error {
	a, err := loadApp(c, nil)
	if err != nil {
		return err
	}

	entries, err := a.chat.History(c.Context, c.String("thread"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "No messages")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "[%s] %s: %s\n", e.CreatedAt.Format(time.RFC3339), e.Role, e.Content)
	}
	return nil
}
