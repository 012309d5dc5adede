package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/assetcache/configs"
	"github.com/Aman-CERP/assetcache/internal/config"
	"github.com/Aman-CERP/assetcache/internal/ui"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the assetcache configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/assetcache/config.yaml)
  3. File given with --config
  4. Environment variables (ASSETCACHE_*)`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file from the template",
		Example: `  # Create user config
  assetcache config init

  # Replace an existing config, keeping a backup
  assetcache config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			styles := ui.GetStyles(ui.NoColorFor(out))
			path := config.GetUserConfigPath()

			if config.UserConfigExists() {
				if !force {
					_, _ = fmt.Fprintf(out, "%s\n  Location: %s\n  Use --force to replace it (a backup is kept)\n",
						styles.Warning.Render("User configuration already exists"), path)
					return nil
				}
				backup, err := config.BackupUserConfig()
				if err != nil {
					return fmt.Errorf("failed to backup config: %w", err)
				}
				_, _ = fmt.Fprintf(out, "  Backup: %s\n", backup)
			}

			if err := os.MkdirAll(config.GetUserConfigDir(), 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			_, _ = fmt.Fprintf(out, "%s\n  Location: %s\n", styles.Success.Render("Created user configuration"), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration")

	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return ui.NewRenderer(cmd.OutOrStdout(), true).RenderJSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
