package ingest

import "strings"

// Anchor keyword categories. Header detection counts how many distinct
// categories a row touches; the bouncer and mapper reuse the same lists so
// the three stages agree on what "date-like" means.
const (
	anchorDate   = "date"
	anchorAmount = "amount"
	anchorItem   = "item"
	anchorQty    = "quantity"
	anchorRef    = "reference"
)

var anchorKeywords = map[string][]string{
	anchorDate:   {"date", "time", "day", "month", "timestamp", "datetime", "when"},
	anchorAmount: {"amount", "total", "price", "net", "gross", "revenue", "sales", "payment", "cost", "value", "subtotal", "rate", "mrp"},
	anchorItem:   {"item", "product", "description", "name", "entity", "menu", "dish", "sku", "article", "particulars", "merchant", "vendor", "customer"},
	anchorQty:    {"qty", "quantity", "count", "units", "nos"},
	anchorRef:    {"ref", "reference", "invoice", "order", "receipt", "bill", "txn", "transaction", "id", "number"},
}

// priceKeywords is the subset of amount-like terms that signal a per-item
// price, the STATE half of the bouncer's admission rule.
var priceKeywords = []string{"price", "rate", "mrp", "cost", "amount"}

// matchAnchor returns the anchor category a normalized cell value belongs
// to, or "" when it matches none.
func matchAnchor(normalized string) string {
	if normalized == "" {
		return ""
	}
	for _, category := range []string{anchorDate, anchorAmount, anchorItem, anchorQty, anchorRef} {
		for _, kw := range anchorKeywords[category] {
			if strings.Contains(normalized, kw) {
				return category
			}
		}
	}
	return ""
}

// containsAnyKeyword reports whether the normalized name contains one of the
// given keywords.
func containsAnyKeyword(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
