package commands

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/diogo/dland/internal/config"
)

func newConfigCmd(g *globalFlags, deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
		Long: `Inspect and create ~/.dland/config.toml. API keys may also be given
with GEMINI_API_KEY and OPENROUTER_API_KEY.`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, g, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := configPath(g)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with API keys masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(cmd, g)
			},
		},
		initCmd,
	)
	return cmd
}

func configPath(g *globalFlags) (string, error) {
	if g.config != "" {
		return g.config, nil
	}
	return config.GetConfigPath()
}

// maskKey keeps the last four characters of a key
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func runConfigShow(cmd *cobra.Command, g *globalFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	cfg.Primary.APIKey = maskKey(cfg.Primary.APIKey)
	cfg.Vision.APIKey = maskKey(cfg.Vision.APIKey)
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}

func runConfigInit(cmd *cobra.Command, g *globalFlags, force bool) error {
	path, err := configPath(g)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := config.SaveConfigTo(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
