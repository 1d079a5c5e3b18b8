package oracle

import (
	"context"
	"time"

	"github.com/flowledger/ledgerd/internal/model"
)

// ClassificationRequest carries one mapped row plus the file-level context
// the oracle needs to assign a business category.
type ClassificationRequest struct {
	Timestamp  time.Time
	Payload    map[string]string
	TenantID   string
	Entity     string
	FileKind   model.FileKind
	Categories []string
	Amount     *float64
}

// ClassificationResponse contains the oracle's category judgment.
type ClassificationResponse struct {
	Category    string
	SubCategory string
	Confidence  int // 0-100
}

// HeaderCandidate is one of the tied rows submitted for header judgment.
type HeaderCandidate struct {
	Cells []string
	Row   int
}

// HeaderJudgeRequest asks the oracle to break a header-detection tie. The
// sample rows let it prefer a detail ledger over a summary table.
type HeaderJudgeRequest struct {
	SourceName string
	Candidates []HeaderCandidate
	Sample     [][]string
}

// HeaderJudgeResponse is the oracle's chosen header row index.
type HeaderJudgeResponse struct {
	Row int
}

// Client defines the disambiguation oracle interface. Every call carries an
// explicit timeout; the pipeline must function correctly with the oracle
// entirely absent, via deterministic fallbacks.
type Client interface {
	ClassifyRow(ctx context.Context, req ClassificationRequest) (ClassificationResponse, error)
	JudgeHeader(ctx context.Context, req HeaderJudgeRequest) (HeaderJudgeResponse, error)
}
