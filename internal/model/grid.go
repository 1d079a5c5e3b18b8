// Package model defines the core domain records used throughout the pipeline.
package model

// RawGrid is the untyped contents of an uploaded tabular file.
// It is immutable once read; every downstream stage works on views of it.
type RawGrid struct {
	SourceName string
	Rows       [][]string
}

// Empty reports whether the grid contains no non-blank cells at all.
func (g *RawGrid) Empty() bool {
	for _, row := range g.Rows {
		for _, cell := range row {
			if cell != "" {
				return false
			}
		}
	}
	return true
}

// Row returns the row at index i, or nil when out of range.
func (g *RawGrid) Row(i int) []string {
	if i < 0 || i >= len(g.Rows) {
		return nil
	}
	return g.Rows[i]
}

// DetectionMethod records how the header row was located.
type DetectionMethod string

// Detection method constants, surfaced in ingest results for observability.
const (
	DetectionGoldenPath        DetectionMethod = "golden_path"
	DetectionDeepScan          DetectionMethod = "deep_scan"
	DetectionDeepScanAmbiguous DetectionMethod = "deep_scan_ambiguous"
	DetectionAIJudge           DetectionMethod = "ai_judge"
)

// HeaderCandidate is a scored row considered as the header during detection.
type HeaderCandidate struct {
	Row     int
	Score   int
	Anchors []string // matched anchor keyword categories, e.g. "date", "amount"
}

// DetectedHeader is the selected header row plus how it was chosen.
type DetectedHeader struct {
	Method  DetectionMethod
	Columns []string
	Row     int
}

// SemanticField names one of the fixed fields the column mapper binds.
type SemanticField string

// Semantic fields recognized by the column mapper.
const (
	FieldTimestamp SemanticField = "timestamp"
	FieldAmount    SemanticField = "amount"
	FieldEntity    SemanticField = "entity"
	FieldReference SemanticField = "reference"
)

// MappedColumn binds a semantic field to a raw column.
type MappedColumn struct {
	Name  string
	Index int
}

// ColumnMapping is the chosen binding of semantic fields to raw columns.
// A field missing from the map is absent in the file.
type ColumnMapping map[SemanticField]MappedColumn

// Has reports whether the mapping binds the given field.
func (m ColumnMapping) Has(field SemanticField) bool {
	_, ok := m[field]
	return ok
}

// Names flattens the mapping for result payloads.
func (m ColumnMapping) Names() map[string]string {
	out := make(map[string]string, len(m))
	for field, col := range m {
		out[string(field)] = col.Name
	}
	return out
}
