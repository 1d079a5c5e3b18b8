// Package oracle abstracts the external LLM used for disambiguation: header
// tie-breaks and per-row category classification. Every call carries a
// timeout and the pipeline degrades deterministically when no oracle is
// configured.
package oracle

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the disambiguation oracle.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	RateLimit   int // requests per minute
	MaxTokens   int
	Temperature float64
}

// NewClient creates an oracle client for the configured provider. Provider
// "none" (or empty) returns nil: the pipeline runs on fallbacks alone.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}
}
