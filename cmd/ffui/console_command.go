package main

import (
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"ffui/internal/console"
)

func newConsoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive full-screen queue console",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return errors.New("console requires an interactive terminal (TTY)")
			}

			// Commands and the events long-poll ride separate connections:
			// the client serializes calls per connection, so a shared one
			// would park every action behind the open poll.
			commands, err := ctx.dial()
			if err != nil {
				return err
			}
			defer commands.Close()
			eventsClient, err := ctx.dial()
			if err != nil {
				return err
			}
			defer eventsClient.Close()

			model := newConsoleModel(ctx.configValue(), commands, eventsClient)

			var program *tea.Program
			model.ticker = console.NewTicker(time.Second, func(now time.Time) {
				program.Send(tickMsg{now: now})
			})
			program = tea.NewProgram(model, tea.WithAltScreen())
			final, err := program.Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(consoleModel); ok && fm.fatalErr != nil {
				return fm.fatalErr
			}
			return nil
		},
	}
}
