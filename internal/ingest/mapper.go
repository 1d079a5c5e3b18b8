package ingest

import (
	"sort"
	"strings"
	"time"

	"github.com/flowledger/ledgerd/internal/model"
)

// fieldKeywords are the per-field match lists, most specific first. A raw
// column satisfies at most one semantic field; when several fields want the
// same column the longest (most specific) keyword match wins.
var fieldKeywords = map[model.SemanticField][]string{
	model.FieldTimestamp: {"timestamp", "datetime", "date", "time", "day"},
	model.FieldAmount:    {"amount", "total", "price", "net", "gross", "revenue", "sales", "payment", "cost", "value", "subtotal"},
	model.FieldEntity:    {"entity", "item", "product", "description", "merchant", "vendor", "menu", "dish", "customer", "particulars", "name"},
	model.FieldReference: {"reference", "invoice", "order", "receipt", "transaction", "txn", "bill", "ref", "number", "id"},
}

// MappedRow is one source row after column mapping and cell normalization.
type MappedRow struct {
	Timestamp time.Time
	Residual  map[string]string
	Entity    string
	Reference string
	Amount    *float64
	Index     int // absolute row index in the source grid
}

// MapResult is the mapper's per-file outcome. Failed rows are excluded from
// Rows and counted, never silently coerced.
type MapResult struct {
	Rows   []MappedRow
	Failed int
}

// Mapper binds raw columns to semantic fields and normalizes cell values.
type Mapper struct{}

// NewMapper creates a column mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// columnBid is one (field, column) candidate pairing with its match score.
type columnBid struct {
	field  model.SemanticField
	column int
	score  int
}

// MapColumns selects at most one raw column per semantic field.
func (m *Mapper) MapColumns(header []string) model.ColumnMapping {
	normalized := make([]string, len(header))
	for i, col := range header {
		normalized[i] = NormalizeColumnName(col)
	}

	var bids []columnBid
	for field, keywords := range fieldKeywords {
		for col, name := range normalized {
			if name == "" {
				continue
			}
			if score := matchScore(name, keywords); score > 0 {
				bids = append(bids, columnBid{field: field, column: col, score: score})
			}
		}
	}

	// Highest score first; ties go to the leftmost column for determinism.
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].score != bids[j].score {
			return bids[i].score > bids[j].score
		}
		if bids[i].column != bids[j].column {
			return bids[i].column < bids[j].column
		}
		return bids[i].field < bids[j].field
	})

	mapping := make(model.ColumnMapping)
	usedColumns := make(map[int]bool)
	for _, bid := range bids {
		if mapping.Has(bid.field) || usedColumns[bid.column] {
			continue
		}
		mapping[bid.field] = model.MappedColumn{Name: strings.TrimSpace(header[bid.column]), Index: bid.column}
		usedColumns[bid.column] = true
	}

	return mapping
}

// matchScore scores how specifically a normalized column name matches a
// keyword list. An exact match dominates; otherwise the longest contained
// keyword wins.
func matchScore(name string, keywords []string) int {
	best := 0
	for _, kw := range keywords {
		switch {
		case name == kw:
			return 100 + len(kw)
		case strings.Contains(name, kw) && len(kw) > best:
			best = len(kw)
		}
	}
	return best
}

// MapRows normalizes every data row below the header. A row that fails to
// parse a mapped timestamp or amount cell is counted as failed and excluded;
// fully blank rows are skipped without counting.
func (m *Mapper) MapRows(grid *model.RawGrid, headerRow int, mapping model.ColumnMapping) MapResult {
	var result MapResult

	for idx := headerRow + 1; idx < len(grid.Rows); idx++ {
		row := grid.Rows[idx]
		if blankRow(row) {
			continue
		}

		mapped, ok := m.mapRow(row, idx, mapping, grid.Rows[headerRow])
		if !ok {
			result.Failed++
			continue
		}
		result.Rows = append(result.Rows, mapped)
	}

	return result
}

func (m *Mapper) mapRow(row []string, idx int, mapping model.ColumnMapping, header []string) (MappedRow, bool) {
	mapped := MappedRow{Index: idx, Residual: make(map[string]string)}

	if col, ok := mapping[model.FieldTimestamp]; ok {
		ts, err := ParseTimestamp(cellAt(row, col.Index))
		if err != nil {
			return MappedRow{}, false
		}
		mapped.Timestamp = ts
	}

	if col, ok := mapping[model.FieldAmount]; ok {
		amount, err := ParseAmount(cellAt(row, col.Index))
		if err != nil {
			return MappedRow{}, false
		}
		mapped.Amount = &amount
	}

	if col, ok := mapping[model.FieldEntity]; ok {
		mapped.Entity = strings.TrimSpace(cellAt(row, col.Index))
	}
	if col, ok := mapping[model.FieldReference]; ok {
		mapped.Reference = strings.TrimSpace(cellAt(row, col.Index))
	}

	// Residual fields ride along as an opaque payload.
	mappedColumns := make(map[int]bool, len(mapping))
	for _, col := range mapping {
		mappedColumns[col.Index] = true
	}
	for i, cell := range row {
		if mappedColumns[i] || strings.TrimSpace(cell) == "" {
			continue
		}
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			continue
		}
		mapped.Residual[name] = strings.TrimSpace(cell)
	}

	return mapped, true
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
