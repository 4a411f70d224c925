package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"enricher/pkg/auth"
	"enricher/pkg/config"
	"enricher/pkg/logger"
	"enricher/pkg/ui"
)

var (
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	prefix     string
	notify     bool
	useTUI     bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Enrich an Airtable company roster with LinkedIn profile traits",
	Long: `Enricher pulls founder LinkedIn URLs out of an Airtable roster, scrapes the
profiles through Apify, cleans them, extracts traits with an LLM and writes the
traits back to Airtable.

Every stage checkpoints its progress, so an interrupted run resumes where it
stopped. Stages can run one at a time, all at once with 'enricher run', or as
background jobs behind 'enricher serve'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", logger.Version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !quiet && !useTUI && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .enricher.yaml or $HOME/.config/enricher/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "file prefix for stage outputs")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a desktop notification when the command finishes")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "show the full-screen stage dashboard")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything except errors")

	rootCmd.SetVersionTemplate(`Enricher {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves configuration for a command, fills missing API keys
// from the credential stores and sets up the global logger.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level":  logLevel,
		"log-format": logFormat,
		"prefix":     prefix,
	}
	if quiet {
		flags["log-level"] = "error"
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	if manager, err := auth.NewManager(); err == nil {
		if applied := manager.ApplyTo(cfg); len(applied) > 0 {
			names := make([]string, len(applied))
			for i, s := range applied {
				names[i] = string(s)
			}
			logger.WithField("services", strings.Join(names, ",")).Debug("Using stored API keys")
		}
	} else {
		logger.WithError(err).Debug("Credential stores unavailable")
	}

	return cfg, nil
}

// initLogger keeps log lines off the terminal while the dashboard owns it.
func initLogger(cfg *config.Config) error {
	if !useTUI {
		return logger.Initialize(&cfg.Logging)
	}

	path := cfg.Logging.File
	if path == "" {
		path = "enricher.log"
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l, err := logger.NewWithWriter(&cfg.Logging, f)
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	return nil
}
