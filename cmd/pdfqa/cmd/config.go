package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pdfqa/configs"
	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/output"
	"github.com/Aman-CERP/pdfqa/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the pdfqa configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/pdfqa/config.yaml)
  3. Project config (.pdfqa.yaml)
  4. .env in the working directory
  5. Environment variables (PDFQA_*, OPENAI_API_KEY, OPENAI_ASSISTANT_ID)`,
		Example: `  # Create user config from template
  pdfqa config init

  # Show effective configuration (merged from all sources)
  pdfqa config show

  # Print user config file path
  pdfqa config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from a template at
~/.config/pdfqa/config.yaml (or $XDG_CONFIG_HOME/pdfqa/config.yaml).

With --force an existing file is backed up before it is replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration (a backup is kept)")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources. Secrets are
masked.`,
		Example: `  pdfqa config show
  pdfqa config show --json
  pdfqa config show --source defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("", "Location: %s", configPath)
			out.Status("", "Use --force to replace it (a backup is kept)")
			return nil
		}

		backupPath, err := config.BackupFile(configPath)
		if err != nil {
			return err
		}
		out.Statusf("", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("", "Location: %s", configPath)
	out.Newline()
	out.Status("", "Next steps:")
	out.Status("", "  1. Set OPENAI_API_KEY and OPENAI_ASSISTANT_ID (environment or .env)")
	out.Status("", "  2. Edit the file to customize settings")
	out.Status("", "  3. Run 'pdfqa config show' to verify")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.NewWithConfig(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(noColor)))

	var (
		cfg        *config.Config
		sourceDesc string
	)

	switch source {
	case "merged":
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.Statusf("", "Expected at: %s", configPath)
			out.Status("", "Run 'pdfqa config init' to create one")
			return nil
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read user config: %w", err)
		}
		cfg = config.NewConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse user config: %w", err)
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, defaults)", source)
	}

	cfg = cfg.Redacted()

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}

	out.Statusf("", "Configuration source: %s", sourceDesc)
	out.Newline()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
