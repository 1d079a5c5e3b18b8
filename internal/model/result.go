package model

// FileKind is Sherlock's determination of what the file represents.
type FileKind string

const (
	// FileKindStream marks files of discrete transactional events over time.
	FileKindStream FileKind = "STREAM"
	// FileKindState marks snapshot files of current entities and attributes.
	FileKindState FileKind = "STATE"
)

// IngestResult enumerates every outcome of an upload so callers can
// reconstruct "150 rows, 148 mapped, 2 failed, 12 quarantined" from the
// response alone.
type IngestResult struct {
	ColumnMapping      map[string]string `json:"column_mapping"`
	SourceFile         string            `json:"source_file"`
	DetectionMethod    DetectionMethod   `json:"detection_method"`
	FileKind           FileKind          `json:"file_kind"`
	KindConfidence     float64           `json:"kind_confidence"`
	TotalRows          int               `json:"total_rows"`
	HeaderRow          int               `json:"header_row"`
	MappedEvents       int               `json:"mapped_events"`
	FailedEvents       int               `json:"failed_events"`
	Accepted           int               `json:"accepted"`
	Quarantined        int               `json:"quarantined"`
	Duplicates         int               `json:"duplicates"`
	ProvisionalCreated int               `json:"provisional_entities_created"`
	Degenerate         bool              `json:"degenerate"`
}
