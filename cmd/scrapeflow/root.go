package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scrapeflow-ai/scrapeflow/internal/config"
)

var (
	flagConfigFile string
	flagHomeDir    string
	flagVerbose    bool

	// cfg is populated by loadConfig before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scrapeflow",
	Short: "ScrapeFlow - visual scraping workflow engine",
	Long: `ScrapeFlow executes visual scraping workflows: directed graphs of
navigation, extraction, transformation, and AI nodes.

Workflows are stored in a local SQLite database. Use 'scrapeflow init'
to create the configuration and database, 'scrapeflow workflow create'
to register a workflow from a YAML file, and 'scrapeflow workflow run'
to execute one.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// homeDir resolves the ScrapeFlow home directory from the flag, the
// environment, or the default location, in that order.
func homeDir() string {
	if flagHomeDir != "" {
		return flagHomeDir
	}
	if dir := os.Getenv("SCRAPEFLOW_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scrapeflow"
	}
	return filepath.Join(home, ".scrapeflow")
}

// configPath resolves the config file location
func configPath() string {
	if flagConfigFile != "" {
		return flagConfigFile
	}
	return filepath.Join(homeDir(), "config.yaml")
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	// init and version must work before a config exists.
	if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	loaded, err := config.NewLoader(config.NewValidator()).LoadWithDefaults(configPath())
	if err != nil {
		return err
	}
	if flagVerbose {
		loaded.Logging.Level = "debug"
	}
	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to config file (default: $SCRAPEFLOW_HOME/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagHomeDir, "home", "", "ScrapeFlow home directory (default: ~/.scrapeflow)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(scheduleCmd)
}
