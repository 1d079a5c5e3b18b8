package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventStatus is the classification-state tag of a ledger event.
type EventStatus string

// Event status constants.
const (
	StatusAccepted          EventStatus = "ACCEPTED"
	StatusQuarantined       EventStatus = "QUARANTINED"
	StatusProvisionalEntity EventStatus = "PROVISIONAL_ENTITY"
	StatusRejected          EventStatus = "REJECTED"
	StatusSuperseded        EventStatus = "SUPERSEDED"
)

// UniversalEvent is the canonical output record of the pipeline. It is
// created once per source row and never mutated afterwards, except for the
// status and category fields via the quarantine-resolution path, which
// supersedes rather than overwrites.
type UniversalEvent struct {
	Timestamp    time.Time
	CreatedAt    time.Time
	Payload      map[string]string // residual fields preserved verbatim
	ID           string
	TenantID     string
	Entity       string
	Category     string
	SubCategory  string
	Status       EventStatus
	SupersededBy string
	SourceFile   string
	Amount       *float64
	Confidence   int // 0-100
	RowIndex     int
}

// GenerateID derives the event id from row content. Re-ingesting a
// byte-identical row yields the identical id, which is the dedup key.
func (e *UniversalEvent) GenerateID() string {
	var sb strings.Builder
	sb.WriteString(e.TenantID)
	sb.WriteByte(':')
	sb.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	sb.WriteByte(':')
	if e.Amount != nil {
		fmt.Fprintf(&sb, "%.4f", *e.Amount)
	}
	sb.WriteByte(':')
	sb.WriteString(e.Entity)

	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(':')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(e.Payload[k])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash)
}
