// Package config loads process configuration for the orchestration core from
// a TOML file, with environment-variable overrides for secrets, following
// the shape of the teacher's provider configuration.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	. "github.com/hsaliak/goclaw-core/internal/logging"
)

// Config is the orchestration core's process configuration.
type Config struct {
	Database Database `toml:"database"`
	Provider Provider `toml:"provider"`
	Tools    Tools    `toml:"tools"`
}

// Database configures the Store's backing SQLite file.
type Database struct {
	Path string `toml:"path"` // default "slop.db" per spec §6.3
}

// Provider selects and configures the active Strategy.
type Provider struct {
	Name            string `toml:"name"`              // "openai", "gemini", "gemini_gca"
	Model           string `toml:"model"`
	GcaMode         bool   `toml:"gca_mode"`
	ProjectID       string `toml:"project_id"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	ThrottleSeconds int    `toml:"throttle_seconds"`
	StripReasoning  bool   `toml:"strip_reasoning"`
}

// Tools configures the Tool Executor/Dispatcher.
type Tools struct {
	WorkspaceRoot           string `toml:"workspace_root"`
	DispatcherWorkers       int    `toml:"dispatcher_workers"`        // default 4, per spec §4.6
	TruncationBudgetRecent  int    `toml:"truncation_budget_recent"`  // default 5000, per spec §4.3.4
	TruncationBudgetOlder   int    `toml:"truncation_budget_older"`   // default 300, per spec §4.3.4
	ExecTimeoutSeconds      int    `toml:"exec_timeout_seconds"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: Database{Path: "slop.db"},
		Provider: Provider{
			Name:            "openai",
			ThrottleSeconds: 0,
		},
		Tools: Tools{
			WorkspaceRoot:          ".",
			DispatcherWorkers:      4,
			TruncationBudgetRecent: 5000,
			TruncationBudgetOlder:  300,
			ExecTimeoutSeconds:     120,
		},
	}
}

// Load reads a TOML config file at path, falling back to Default() values
// for any field the file does not set, then applies environment overrides
// for secret-shaped fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
			L_debug("config: loaded", "path", path)
		} else {
			L_debug("config: no config file found, using defaults", "path", path)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GOCLAW_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if proj := os.Getenv("GOCLAW_PROJECT_ID"); proj != "" && cfg.Provider.ProjectID == "" {
		cfg.Provider.ProjectID = proj
	}
}
