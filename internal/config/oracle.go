package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/flowledger/ledgerd/internal/oracle"
)

// LoadOracleConfig builds the oracle configuration with this precedence:
//  1. Viper configuration (config file or LEDGERD_ env vars)
//  2. Direct environment variables (ANTHROPIC_API_KEY)
//  3. Defaults
//
// An absent API key is not an error: the pipeline runs without an oracle
// and falls back to deterministic behavior.
func LoadOracleConfig() oracle.Config {
	cfg := oracle.Config{
		Provider:    "anthropic",
		Model:       "claude-3-5-haiku-latest",
		Timeout:     30 * time.Second,
		RateLimit:   60,
		MaxTokens:   512,
		Temperature: 0,
	}

	if v := viper.GetString("oracle.provider"); v != "" {
		cfg.Provider = v
	}
	if v := viper.GetString("oracle.model"); v != "" {
		cfg.Model = v
	}
	if v := viper.GetString("oracle.api_key"); v != "" {
		cfg.APIKey = v
	}
	if v := viper.GetDuration("oracle.timeout"); v > 0 {
		cfg.Timeout = v
	}
	if v := viper.GetInt("oracle.rate_limit"); v > 0 {
		cfg.RateLimit = v
	}
	if v := viper.GetInt("oracle.max_tokens"); v > 0 {
		cfg.MaxTokens = v
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.Provider = "none"
	}

	return cfg
}

// DatabasePath resolves the SQLite database location, defaulting to a
// dotfile in the user's home directory.
func DatabasePath() string {
	if v := viper.GetString("database.path"); v != "" {
		return ExpandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "ledgerd.db"
	}
	return ExpandPath(home + "/.local/share/ledgerd/ledgerd.db")
}
