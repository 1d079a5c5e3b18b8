package ingest

import (
	"fmt"
	"strings"

	"github.com/flowledger/ledgerd/internal/common"
)

// Bouncer rejects files lacking the minimum signal to be useful, before any
// row-level work. The check is deliberately conservative: a false reject is
// acceptable, a false accept that later produces garbage events is not.
type Bouncer struct{}

// NewBouncer creates a schema gatekeeper.
func NewBouncer() *Bouncer {
	return &Bouncer{}
}

// Admit checks the normalized header columns for either STREAM-sufficient
// (date-like plus amount-like) or STATE-sufficient (item-like plus
// price-like) signal. It returns a schema rejection naming what is missing.
func (b *Bouncer) Admit(columns []string, filename string) error {
	var hasDate, hasAmount, hasItem, hasPrice bool

	for _, col := range columns {
		normalized := NormalizeColumnName(col)
		if containsAnyKeyword(normalized, anchorKeywords[anchorDate]) {
			hasDate = true
		}
		if containsAnyKeyword(normalized, anchorKeywords[anchorAmount]) {
			hasAmount = true
		}
		if containsAnyKeyword(normalized, anchorKeywords[anchorItem]) {
			hasItem = true
		}
		if containsAnyKeyword(normalized, priceKeywords) {
			hasPrice = true
		}
	}

	if (hasDate && hasAmount) || (hasItem && hasPrice) {
		return nil
	}

	var missing []string
	if !hasDate {
		missing = append(missing, "date-like")
	}
	if !hasAmount {
		missing = append(missing, "amount-like")
	}
	if !hasItem {
		missing = append(missing, "item-like")
	}
	if !hasPrice {
		missing = append(missing, "price-like")
	}

	return common.NewRejection(common.ErrSchemaRejected, "SCHEMA_REJECTED",
		fmt.Sprintf("file %q has neither a date+amount nor an item+price column pair (missing: %s)",
			filename, strings.Join(missing, ", ")))
}
