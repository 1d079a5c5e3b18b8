package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/oracle"
)

// DetectorConfig holds the header-detection tunables. The defaults are load
// bearing: changing GoldenPathAnchors or TiebreakMargin changes which files
// take the deep-scan path.
type DetectorConfig struct {
	MaxScanRows       int
	TiebreakMargin    int
	GoldenPathAnchors int
	OracleTimeout     time.Duration
	SampleRows        int
}

// DefaultDetectorConfig returns the default detection configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MaxScanRows:       500,
		TiebreakMargin:    2,
		GoldenPathAnchors: 3,
		OracleTimeout:     10 * time.Second,
		SampleRows:        5,
	}
}

// Detector locates the true header row inside a grid that may bury headers
// under titles, logos, blank rows or stacked tables.
type Detector struct {
	oracle oracle.Client // nil means fallback-only operation
	cfg    DetectorConfig
}

// NewDetector creates a structure detective. A nil oracle is valid; ties are
// then broken deterministically by score.
func NewDetector(cfg DetectorConfig, client oracle.Client) *Detector {
	if cfg.MaxScanRows <= 0 {
		cfg.MaxScanRows = 500
	}
	if cfg.GoldenPathAnchors <= 0 {
		cfg.GoldenPathAnchors = 3
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = 5
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 10 * time.Second
	}
	return &Detector{cfg: cfg, oracle: client}
}

// Detect selects the header row and reports how it was chosen.
func (d *Detector) Detect(ctx context.Context, grid *model.RawGrid) (model.DetectedHeader, error) {
	if grid.Empty() {
		return model.DetectedHeader{}, common.NewRejection(common.ErrEmptyFile, "EMPTY_FILE", "grid contains no data")
	}

	// Golden path: clean exports have the header in the first two rows, and
	// they are the common case. Accept immediately on strong anchor signal
	// so they never pay for a scan.
	for row := 0; row < 2 && row < len(grid.Rows); row++ {
		cand := d.scoreRow(grid, row, false)
		if len(cand.Anchors) >= d.cfg.GoldenPathAnchors {
			return model.DetectedHeader{
				Row:     cand.Row,
				Method:  model.DetectionGoldenPath,
				Columns: grid.Rows[cand.Row],
			}, nil
		}
	}

	best, second := d.deepScan(grid)
	if best.Score <= 0 {
		return model.DetectedHeader{}, common.NewRejection(common.ErrNoHeader, "NO_HEADER",
			"no row in the scanned range resembles a table header")
	}

	method := model.DetectionDeepScan
	selected := best

	if second.Score > 0 && second.Row != best.Row && best.Score-second.Score <= d.cfg.TiebreakMargin {
		// Ambiguous: two plausible headers, typically a summary table stacked
		// above the detail ledger. The oracle prefers the detail ledger; its
		// failure falls back to the higher heuristic score.
		method = model.DetectionDeepScanAmbiguous
		if choice, ok := d.judge(ctx, grid, best, second); ok {
			method = model.DetectionAIJudge
			if choice == second.Row {
				selected = second
			}
		}
	}

	return model.DetectedHeader{
		Row:     selected.Row,
		Method:  method,
		Columns: grid.Rows[selected.Row],
	}, nil
}

// deepScan scores up to MaxScanRows rows and returns the top two candidates.
func (d *Detector) deepScan(grid *model.RawGrid) (best, second model.HeaderCandidate) {
	limit := len(grid.Rows)
	if limit > d.cfg.MaxScanRows {
		limit = d.cfg.MaxScanRows
	}

	for row := 0; row < limit; row++ {
		cand := d.scoreRow(grid, row, true)
		switch {
		case cand.Score > best.Score || (cand.Score == best.Score && best.Score == 0):
			second = best
			best = cand
		case cand.Score > second.Score:
			second = cand
		}
	}
	return best, second
}

// scoreRow counts anchor keyword matches in a row. With bonuses enabled it
// adds +2 when the row carries both a date-like and an amount-like anchor (a
// strong transactional-header signal) and +1 when the row beneath is mostly
// numeric (data confirming a header above it).
func (d *Detector) scoreRow(grid *model.RawGrid, row int, bonuses bool) model.HeaderCandidate {
	cand := model.HeaderCandidate{Row: row}
	seen := make(map[string]bool)

	for _, cell := range grid.Rows[row] {
		category := matchAnchor(NormalizeColumnName(cell))
		if category == "" {
			continue
		}
		cand.Score++
		if !seen[category] {
			seen[category] = true
			cand.Anchors = append(cand.Anchors, category)
		}
	}

	if !bonuses || cand.Score == 0 {
		return cand
	}

	if seen[anchorDate] && seen[anchorAmount] {
		cand.Score += 2
	}
	if below := grid.Row(row + 1); mostlyNumeric(below) {
		cand.Score++
	}

	return cand
}

// judge asks the oracle to break the tie. Returns the chosen row and whether
// the judgment succeeded.
func (d *Detector) judge(ctx context.Context, grid *model.RawGrid, best, second model.HeaderCandidate) (int, bool) {
	if d.oracle == nil {
		return 0, false
	}

	later := best.Row
	if second.Row > later {
		later = second.Row
	}
	var sample [][]string
	for row := later + 1; row < len(grid.Rows) && len(sample) < d.cfg.SampleRows; row++ {
		sample = append(sample, grid.Rows[row])
	}

	judgeCtx, cancel := context.WithTimeout(ctx, d.cfg.OracleTimeout)
	defer cancel()

	resp, err := d.oracle.JudgeHeader(judgeCtx, oracle.HeaderJudgeRequest{
		SourceName: grid.SourceName,
		Candidates: []oracle.HeaderCandidate{
			{Row: best.Row, Cells: grid.Rows[best.Row]},
			{Row: second.Row, Cells: grid.Rows[second.Row]},
		},
		Sample: sample,
	})
	if err != nil {
		slog.Warn("header judge failed, falling back to heuristic score",
			"source", grid.SourceName,
			"error", err)
		return 0, false
	}

	return resp.Row, true
}

// mostlyNumeric reports whether at least half the non-empty cells in a row
// parse as numbers.
func mostlyNumeric(row []string) bool {
	var total, numeric int
	for _, cell := range row {
		if cell == "" {
			continue
		}
		total++
		if looksNumeric(cell) {
			numeric++
		}
	}
	return total > 0 && numeric*2 >= total
}
