package config

import (
	"time"
)

// Config is the root configuration for ScrapeFlow.
type Config struct {
	Core      CoreConfig      `mapstructure:"core" yaml:"core" validate:"required"`
	Database  DBConfig        `mapstructure:"database" yaml:"database" validate:"required"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler,omitempty"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string        `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir string        `mapstructure:"data_dir" yaml:"data_dir"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug   bool          `mapstructure:"debug" yaml:"debug"`
}

// DBConfig contains database configuration.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout" validate:"min=1s"`
}

// BrowserConfig contains browser driver configuration.
type BrowserConfig struct {
	// Mode selects the driver implementation. "static" fetches pages over
	// plain HTTP and parses them without executing JavaScript.
	Mode              string        `mapstructure:"mode" yaml:"mode" validate:"oneof=static"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout" validate:"min=1s"`
}

// LLMConfig contains LLM provider configuration for the ai_* nodes.
type LLMConfig struct {
	DefaultProvider string                    `mapstructure:"default_provider" yaml:"default_provider"`
	Providers       map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
}

// ProviderConfig configures a single LLM provider.
// API keys can be interpolated from the environment using ${VAR_NAME}.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model     string `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// EngineConfig tunes the workflow execution engine.
type EngineConfig struct {
	// MaxSteps bounds total node executions per run.
	MaxSteps int64 `mapstructure:"max_steps" yaml:"max_steps" validate:"min=1"`
	// DefaultNodeTimeout applies to nodes that set no timeout of their own.
	// Zero means no default timeout.
	DefaultNodeTimeout time.Duration `mapstructure:"default_node_timeout" yaml:"default_node_timeout,omitempty"`
}

// SchedulerConfig controls the schedule firing sweep.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"min=1s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}
