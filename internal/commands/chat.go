package commands

import (
	"github.com/spf13/cobra"

	"github.com/diogo/dland/internal/tui"
)

func newChatCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

The conversation of the selected persona is restored and saved as you go.
Type /help for commands, 'exit' or press Esc to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, deps)
		},
	}
}

func runChat(cmd *cobra.Command, g *globalFlags, deps *Dependencies) error {
	a, err := newApp(g, deps, g.persona)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.lookupLocation(ctx)

	a.Logger.Info("chat started", "persona", a.Session.Persona())
	return deps.RunTUI(ctx, a.Session, tui.Options{
		Markdown:      a.Config.Markdown,
		Logger:        a.Logger,
		WatchPersonas: true,
		Now:           deps.Now,
	})
}
