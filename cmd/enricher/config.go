package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"enricher/pkg/auth"
	"enricher/pkg/config"
	"enricher/pkg/ui"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage enricher configuration files.

Configuration is resolved from, highest priority first:
  - Command line flags
  - Environment variables (ENRICHER_*, AIRTABLE_API_KEY, APIFY_API_KEY, ANTHROPIC_API_KEY)
  - .env file
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with every default",
	Long: `Write the default configuration to path (or --config, or .enricher.yaml).
API keys are left empty; store them with 'enricher auth login' or the
environment instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(args)
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
		}

		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration written to " + path)
		fmt.Fprintln(ui.Output, "\nSet airtable.base_id and airtable.table_id, then run 'enricher config validate'.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long:  `Show the configuration after all sources are merged. API keys are masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		masked := *cfg
		masked.Airtable.APIKey = maskIfSet(cfg.Airtable.APIKey)
		masked.Apify.Token = maskIfSet(cfg.Apify.Token)
		masked.Completion.APIKey = maskIfSet(cfg.Completion.APIKey)

		out, err := yaml.Marshal(&masked)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(ui.Output, string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a configuration file",
	Long: `Validate configuration values and report which stages have the
credentials they need.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			configFile = args[0]
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		ui.PrintSuccess("Configuration is valid")

		checks := []struct {
			stage string
			check func() error
		}{
			{"extract, update, fields", cfg.RequireAirtable},
			{"scrape", cfg.RequireApify},
			{"traits", cfg.RequireCompletion},
		}
		for _, c := range checks {
			if err := c.check(); err != nil {
				ui.PrintWarning(c.stage + ": " + err.Error())
			} else {
				ui.PrintInfo(c.stage, "ready")
			}
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath(args []string) string {
	switch {
	case len(args) > 0:
		return args[0]
	case configFile != "":
		return configFile
	default:
		return ".enricher.yaml"
	}
}

func maskIfSet(key string) string {
	if key == "" {
		return ""
	}
	return auth.MaskKey(key)
}
