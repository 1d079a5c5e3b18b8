package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeColumnName lowercases a raw column name and collapses hyphens,
// underscores and whitespace runs to single spaces.
func NormalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// currencyTokens are stripped from the front or back of amount cells.
// Symbol runes are handled separately below.
var currencyTokens = []string{"rs.", "rs", "inr", "usd", "eur", "gbp"}

// ParseAmount parses an amount cell: currency symbols and thousands
// separators are stripped, parenthesized values are negative.
// "Rs 1,500.50" parses to 1500.5 and "₹45,230" to 45230.
func ParseAmount(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '₹', '$', '€', '£', '¥', ',', ' ', ' ':
			return -1
		}
		return r
	}, s)

	lower := strings.ToLower(s)
	for _, tok := range currencyTokens {
		if strings.HasPrefix(lower, tok) {
			s = s[len(tok):]
			break
		}
		if strings.HasSuffix(lower, tok) {
			s = s[:len(s)-len(tok)]
			break
		}
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q: %w", cell, err)
	}

	if negative {
		value = -value
	}
	return value, nil
}

// timestampLayouts are tried in order; first match wins. Date-only layouts
// already default the time component to midnight.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// ParseTimestamp parses a date-like cell into a canonical UTC timestamp.
func ParseTimestamp(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	// Excel serial dates show up in exported sheets.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 20000 && serial < 80000 {
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		return epoch.Add(time.Duration(serial * 24 * float64(time.Hour))).Truncate(time.Second), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", cell)
}

// looksNumeric reports whether a cell parses as an amount. Used by the
// structure detective to confirm a header by the data row beneath it.
func looksNumeric(cell string) bool {
	_, err := ParseAmount(cell)
	return err == nil
}
