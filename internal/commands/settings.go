package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/dland/internal/models"
)

func newSettingsCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change appearance and tone settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSettingsShow(cmd, g, deps)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a setting (theme, accent, name, tone)",
			Long: fmt.Sprintf(`Change a setting.

  theme   %s
  accent  %s
  tone    %s
  name    any text; empty clears it`,
				joinValues(models.AllThemes()), joinValues(models.AllAccents()), joinValues(models.AllTones())),
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSettingsSet(cmd, args[0], args[1], g, deps)
			},
		},
	)
	return cmd
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func runSettingsShow(cmd *cobra.Command, g *globalFlags, deps *Dependencies) error {
	s, err := openStorage(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	settings, err := s.History.LoadSettings()
	if err != nil {
		return err
	}

	name := settings.UserName
	if name == "" {
		name = "(not set)"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "theme:  %s\n", settings.Theme)
	fmt.Fprintf(out, "accent: %s\n", settings.AccentColor)
	fmt.Fprintf(out, "tone:   %s\n", settings.Tone)
	fmt.Fprintf(out, "name:   %s\n", name)
	return nil
}

func runSettingsSet(cmd *cobra.Command, key, value string, g *globalFlags, deps *Dependencies) error {
	s, err := openStorage(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()

	settings, err := s.History.LoadSettings()
	if err != nil {
		return err
	}
	if err := settings.Set(key, value); err != nil {
		return err
	}
	if err := s.History.SaveSettings(settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to '%s'.\n", key, value)
	return nil
}
