package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: filepath.Join(homeDir, "data"),
			Timeout: 5 * time.Minute,
			Debug:   false,
		},
		Database: DBConfig{
			Path:           filepath.Join(homeDir, "scrapeflow.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
		},
		Browser: BrowserConfig{
			Mode:              "static",
			NavigationTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "",
			Providers:       map[string]ProviderConfig{},
		},
		Engine: EngineConfig{
			MaxSteps:           10000,
			DefaultNodeTimeout: 2 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			PollInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// getDefaultHomeDir returns the default ScrapeFlow home directory.
func getDefaultHomeDir() string {
	if dir := os.Getenv("SCRAPEFLOW_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scrapeflow"
	}
	return filepath.Join(home, ".scrapeflow")
}
