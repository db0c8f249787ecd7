package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/dland/internal/history"
	"github.com/diogo/dland/internal/models"
)

func newHistoryCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage conversation history",
		Long: `View and manage the stored conversation of each persona.
Commands act on the persona selected with -p (or the default persona).`,
	}

	var showFormat, exportFormat string

	list := &cobra.Command{
		Use:   "list",
		Short: "List personas with a stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, g, deps)
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a persona's conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, g, deps, showFormat)
		},
	}
	show.Flags().StringVar(&showFormat, "format", "markdown", "Output format: markdown or json")

	export := &cobra.Command{
		Use:   "export [file|-]",
		Short: "Export a persona's conversation to a file",
		Long: `Export a persona's conversation. Without a file name the export is
written to the current directory as dland_chat_<persona>_<date>.<ext>.
Use "-" to write to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryExport(cmd, args, g, deps, exportFormat)
		},
	}
	export.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or markdown")

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a persona's conversation with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryImport(cmd, args[0], g, deps)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete a persona's conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryReset(cmd, g, deps)
		},
	}

	cmd.AddCommand(list, show, export, imp, reset)
	return cmd
}

// openPersonaLog opens storage and resolves the persona from -p
func openPersonaLog(g *globalFlags, deps *Dependencies) (*storage, string, error) {
	s, err := openStorage(g, deps)
	if err != nil {
		return nil, "", err
	}
	name, err := s.persona(g.persona)
	if err != nil {
		s.Close()
		return nil, "", err
	}
	return s, name, nil
}

func runHistoryList(cmd *cobra.Command, g *globalFlags, deps *Dependencies) error {
	s, err := openStorage(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.History.Personas()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PERSONA\tMESSAGES\tUPDATED")
	_, _ = fmt.Fprintln(w, "-------\t--------\t-------")

	for _, name := range names {
		msgs, err := s.History.LoadLog(name)
		if err != nil {
			return err
		}
		updated := "-"
		if len(msgs) > 0 {
			updated = history.FormatRelativeTime(msgs[len(msgs)-1].Time())
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", name, len(msgs), updated)
	}

	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, g *globalFlags, deps *Dependencies, format string) error {
	f, err := history.ParseExportFormat(format)
	if err != nil {
		return err
	}
	s, name, err := openPersonaLog(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	msgs, err := s.History.LoadLog(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "No messages for persona '%s'.\n", name)
		return nil
	}

	data, err := encodeExport(f, name, msgs, deps)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func runHistoryExport(cmd *cobra.Command, args []string, g *globalFlags, deps *Dependencies, format string) error {
	f, err := history.ParseExportFormat(format)
	if err != nil {
		return err
	}
	s, name, err := openPersonaLog(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	msgs, err := s.History.LoadLog(name)
	if err != nil {
		return err
	}
	data, err := encodeExport(f, name, msgs, deps)
	if err != nil {
		return err
	}

	path := history.ExportFilename(name, f, deps.Now())
	if len(args) > 0 {
		path = args[0]
	}
	if path == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages of '%s' to %s\n", len(msgs), name, path)
	return nil
}

func encodeExport(f history.ExportFormat, persona string, msgs []models.Message, deps *Dependencies) ([]byte, error) {
	if f == history.ExportFormatMarkdown {
		return []byte(history.ExportMarkdown(persona, msgs, deps.Now())), nil
	}
	data, err := history.EncodeLog(msgs)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	return data, nil
}

func runHistoryImport(cmd *cobra.Command, path string, g *globalFlags, deps *Dependencies) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	msgs, err := history.DecodeLog(data)
	if err != nil {
		return err
	}

	s, name, err := openPersonaLog(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.History.SaveLog(name, msgs); err != nil {
		return err
	}
	s.Logger.Info("history imported", "persona", name, "messages", len(msgs), "path", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d messages into '%s'\n", len(msgs), name)
	return nil
}

func runHistoryReset(cmd *cobra.Command, g *globalFlags, deps *Dependencies) error {
	s, name, err := openPersonaLog(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.History.DeleteLog(name); err != nil {
		return fmt.Errorf("failed to reset history: %w", err)
	}
	s.Logger.Info("history reset", "persona", name)
	fmt.Fprintf(cmd.OutOrStdout(), "Conversation of '%s' deleted.\n", name)
	return nil
}
