package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/diogo/dland/internal/config"
	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/render"
	"github.com/diogo/dland/internal/session"
)

// askFlags are shared by "dland ask" and the root command
type askFlags struct {
	image  string
	file   string
	output string
	raw    bool
	copy   bool
}

func (f *askFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "Attach an image (routes the turn to the vision model)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read the prompt from a file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Save the reply to a file")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Print the reply as it streams, without formatting")
	cmd.Flags().BoolVar(&f.copy, "copy", false, "Copy the reply to the clipboard")
}

func newAskCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single turn and print the reply",
		Long: `Send a single turn in the selected persona's conversation and print the reply.
The turn is appended to the persona's history like any chat turn.

The prompt is taken from --file, then the argument, then piped stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, g, f, deps)
		},
	}
	f.register(cmd)
	return cmd
}

// readPrompt resolves the prompt: file, then argument, then piped stdin
func readPrompt(cmd *cobra.Command, args []string, f *askFlags, deps *Dependencies) (string, error) {
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	in := cmd.InOrStdin()
	if deps.IsTerminal(in) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func runAsk(cmd *cobra.Command, args []string, g *globalFlags, f *askFlags, deps *Dependencies) error {
	prompt, err := readPrompt(cmd, args, f, deps)
	if err != nil {
		return err
	}
	prompt = strings.TrimSpace(prompt)

	var attachment *models.Attachment
	if f.image != "" {
		attachment, err = models.NewAttachmentFromFile(f.image)
		if err != nil {
			return fmt.Errorf("failed to attach image: %w", err)
		}
	}
	if prompt == "" && attachment == nil {
		return fmt.Errorf("prompt cannot be empty")
	}

	a, err := newApp(g, deps, g.persona)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.lookupLocation(ctx)

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	decorated := !f.raw && f.output == "" && deps.IsTerminal(stdout)
	streaming := !decorated && f.output == ""

	if streaming {
		a.Session.Subscribe(streamTo(stdout))
	}

	var spin *spinner
	if decorated {
		label := "Generating response"
		if attachment != nil {
			label = "Looking at the image"
		}
		settings := a.Session.Settings()
		spin = newSpinner(stderr, label, render.PaletteFor(settings.Theme, settings.AccentColor))
		spin.start()
	}

	res, err := a.Session.SendTurn(ctx, prompt, attachment)
	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		return err
	}
	if res.Failed() {
		if spin != nil {
			spin.stopWithError()
		}
		if streaming {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintln(stderr, formatErrorMessage(res.Err, "Generation failed"))
		return fmt.Errorf("generation failed: %w", res.Err)
	}
	if spin != nil {
		spin.stopWithSuccess(fmt.Sprintf("Done in %.1fs", res.Reply.Duration().Seconds()))
	}

	text := res.Reply.Text
	a.Logger.Info("turn completed", "persona", a.Session.Persona(), "route", string(res.Route), "chars", len(text))

	if f.copy {
		if err := deps.Clipboard(text); err != nil {
			warn := lipgloss.NewStyle().Foreground(colorError).Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err))
			fmt.Fprintln(stderr, warn)
		} else {
			fmt.Fprintln(stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard"))
		}
	}

	switch {
	case f.output != "":
		if err := os.WriteFile(f.output, []byte(text), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintln(stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render(
			fmt.Sprintf("✓ Response saved to %s", f.output),
		))
	case streaming:
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(stdout)
		}
	default:
		printBubble(stdout, a.Session.ActivePersona().Name, text, a.Session.Settings(), a.Config.Markdown, deps.TerminalWidth())
	}
	return nil
}

// streamTo prints the reply as it grows. Each EventUpdated carries the whole
// reply so far; only the unseen suffix is written.
func streamTo(w io.Writer) session.Observer {
	var (
		mu      sync.Mutex
		replyID string
		printed int
	)
	return func(ev session.Event) {
		if ev.Kind != session.EventUpdated || ev.Message.Role != models.RoleModel {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if ev.Message.ID != replyID {
			replyID = ev.Message.ID
			printed = 0
		}
		if len(ev.Message.Text) > printed {
			fmt.Fprint(w, ev.Message.Text[printed:])
			printed = len(ev.Message.Text)
		}
	}
}

// printBubble renders the reply as markdown inside a bordered bubble
func printBubble(w io.Writer, persona, text string, settings models.Settings, md config.MarkdownConfig, termWidth int) {
	if termWidth <= 0 {
		termWidth = 80
	}
	bubbleWidth := termWidth - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	p := render.PaletteFor(settings.Theme, settings.AccentColor)
	label := lipgloss.NewStyle().Foreground(p.AccentColor).Bold(true).Render("✦ " + persona)
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1).
		Width(bubbleWidth)

	rendered := render.Reply(text, render.OptionsFromConfig(md, settings.Theme, contentWidth))
	fmt.Fprintln(w, label)
	fmt.Fprintln(w, bubble.Render(rendered))
}

// terminalWidth returns the stdout width or 0 when it is not a terminal
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// isTerminal reports whether f is an *os.File attached to a terminal
func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// formatErrorMessage formats an error with the details carried by typed errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(colorTextDim)
	out := lipgloss.NewStyle().Foreground(colorError).Render(fmt.Sprintf("✗ %s: %v", context, err))
	for _, line := range apierrors.Details(err) {
		out += "\n" + dim.Render("  "+strings.ReplaceAll(line, "\n", "\n  "))
	}
	return out
}
