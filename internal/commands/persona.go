package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/dland/internal/config"
)

func newPersonaCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage chat personas",
		Long: `View and manage personas. The built-in personas (general, python,
linux) can be overridden but not deleted. Changes are picked up by a
running chat.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available personas",
			Args:  cobra.NoArgs,
			RunE:  runPersonaList,
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Show persona details",
			Args:  cobra.ExactArgs(1),
			RunE:  runPersonaShow,
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a new persona",
			Args:  cobra.ExactArgs(1),
			RunE:  runPersonaAdd,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a custom persona and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPersonaDelete(cmd, args[0], g, deps)
			},
		},
		&cobra.Command{
			Use:   "default <name>",
			Short: "Set the persona opened at start-up",
			Args:  cobra.ExactArgs(1),
			RunE:  runPersonaSetDefault,
		},
	)
	return cmd
}

func runPersonaList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadPersonas()
	if err != nil {
		return fmt.Errorf("failed to load personas: %w", err)
	}

	for _, problem := range cfg.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", problem)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION\tBUILT-IN\tDEFAULT")
	_, _ = fmt.Fprintln(w, "----\t-----------\t--------\t-------")

	defaultName := cfg.DefaultPersona
	if defaultName == "" {
		defaultName = config.DefaultPersonaName
	}
	for _, p := range cfg.Personas {
		builtin, isDefault := "", ""
		if config.IsBuiltinPersona(p.Name) {
			builtin = "✓"
		}
		if p.Name == defaultName {
			isDefault = "✓"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Description, builtin, isDefault)
	}

	return w.Flush()
}

func runPersonaShow(cmd *cobra.Command, args []string) error {
	persona, err := config.GetPersona(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name: %s\n", persona.Name)
	fmt.Fprintf(out, "Description: %s\n", persona.Description)
	if persona.Subtitle != "" {
		fmt.Fprintf(out, "Subtitle: %s\n", persona.Subtitle)
	}
	if len(persona.Suggestions) > 0 {
		fmt.Fprintln(out, "Suggestions:")
		for i, s := range persona.Suggestions {
			fmt.Fprintf(out, "  %d. %s\n", i+1, s)
		}
	}
	fmt.Fprintf(out, "\nSystem Prompt:\n%s\n", persona.SystemPrompt)

	return nil
}

// readBlock reads lines until an empty line or EOF
func readBlock(r *bufio.Reader) []string {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\n\r")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
		if err != nil {
			return lines
		}
	}
}

func runPersonaAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if _, err := config.GetPersona(name); err == nil {
		return fmt.Errorf("persona '%s' already exists", name)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprint(out, "Enter description: ")
	desc, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	desc = strings.TrimSpace(desc)

	fmt.Fprintln(out, "Enter system prompt (end with an empty line):")
	prompt := strings.Join(readBlock(reader), "\n")

	fmt.Fprintf(out, "Enter up to %d suggestions, one per line (end with an empty line):\n", config.MaxSuggestions)
	suggestions := readBlock(reader)

	persona := config.Persona{
		Name:         name,
		Description:  desc,
		SystemPrompt: prompt,
		Suggestions:  suggestions,
	}

	if err := config.AddPersona(persona); err != nil {
		return err
	}

	fmt.Fprintf(out, "Persona '%s' created.\n", name)
	return nil
}

// runPersonaDelete removes the persona and the conversation stored for it
func runPersonaDelete(cmd *cobra.Command, name string, g *globalFlags, deps *Dependencies) error {
	if err := config.DeletePersona(name); err != nil {
		return err
	}

	s, err := openStorage(g, deps)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.History.DeleteLog(name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Persona '%s' deleted.\n", name)
	return nil
}

func runPersonaSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := config.SetDefaultPersona(name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default persona set to '%s'.\n", name)
	return nil
}
