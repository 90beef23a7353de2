package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrapeflow-ai/scrapeflow/internal/config"
	"github.com/scrapeflow-ai/scrapeflow/internal/database"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ScrapeFlow home directory",
	Long: `Create the ScrapeFlow home directory, write a default configuration
file, and initialize the SQLite database schema.

Existing configuration files are left untouched.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	home := homeDir()
	if err := os.MkdirAll(filepath.Join(home, "data"), 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	cfgPath := configPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		defaults := config.DefaultConfig()
		defaults.Core.HomeDir = home
		defaults.Core.DataDir = filepath.Join(home, "data")
		defaults.Database.Path = filepath.Join(home, "scrapeflow.db")
		if err := config.Write(defaults, cfgPath); err != nil {
			return err
		}
		cmd.Printf("Wrote default config to %s\n", cfgPath)
	} else {
		cmd.Printf("Config already exists at %s\n", cfgPath)
	}

	loaded, err := config.NewLoader(config.NewValidator()).Load(cfgPath)
	if err != nil {
		return err
	}

	db, err := database.Open(loaded.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		return err
	}
	cmd.Printf("Database ready at %s\n", loaded.Database.Path)
	return nil
}
