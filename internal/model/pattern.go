package model

import (
	"strings"
	"time"
	"unicode"
)

// LearnedPattern maps a normalized entity-name signature to a confirmed
// category. Patterns are created on the first human approval of a
// quarantined event and short-circuit the oracle on every later match.
type LearnedPattern struct {
	LastConfirmed time.Time
	TenantID      string
	Signature     string
	Category      string
	SubCategory   string
	UseCount      int
}

// PatternSignature normalizes an entity name into its cache key: lowercase,
// punctuation stripped, runs of whitespace collapsed to one space.
func PatternSignature(entity string) string {
	var sb strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(entity) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
