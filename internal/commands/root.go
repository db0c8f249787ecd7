// Package commands provides the dland command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// NewRootCmd builds the command tree. A prompt on the root command runs a
// one-shot turn like "dland ask".
func NewRootCmd(deps *Dependencies) *cobra.Command {
	g := &globalFlags{}
	ask := &askFlags{}

	cmd := &cobra.Command{
		Use:   "dland [prompt]",
		Short: "Terminal chat client with personas and image understanding",
		Long: `dland is a terminal chat client. Each persona (general, python, linux
or your own) keeps its own conversation history. Text turns go to Gemini;
turns with an image attachment go to a vision model on OpenRouter.

Examples:
  dland chat                          Start the interactive chat
  dland chat -p python                Chat with the Python tutor
  dland "What is a goroutine?"        Ask a single question
  dland ask -i photo.png "What is it?"
  cat notes.md | dland ask            Read the prompt from stdin
  dland history export -p linux       Save the linux conversation`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "dland %s (built %s)\n", Version, BuildTime)
				return nil
			}
			if len(args) == 0 && ask.file == "" && deps.IsTerminal(cmd.InOrStdin()) {
				return cmd.Help()
			}
			return runAsk(cmd, args, g, ask, deps)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "Path to config file (default ~/.dland/config.toml)")
	pf.BoolVar(&g.verbose, "verbose", false, "Write debug logs to the log file")
	pf.StringVarP(&g.persona, "persona", "p", "", "Persona to use (general, python, linux or custom)")
	pf.BoolVar(&g.ephemeral, "ephemeral", false, "Keep history in memory only for this run")

	cmd.Flags().BoolP("version", "v", false, "Show version and exit")
	ask.register(cmd)

	cmd.AddCommand(
		newChatCmd(g, deps),
		newAskCmd(g, deps),
		newHistoryCmd(g, deps),
		newPersonaCmd(g, deps),
		newSettingsCmd(g, deps),
		newConfigCmd(g, deps),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	root := NewRootCmd(NewDependencies())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}
