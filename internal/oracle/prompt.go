package oracle

import (
	"fmt"
	"strings"
)

// buildClassifyPrompt renders one mapped row into a classification prompt.
func buildClassifyPrompt(req ClassificationRequest) string {
	var sb strings.Builder

	sb.WriteString("Classify this business ledger row into one of the known categories.\n\n")
	fmt.Fprintf(&sb, "File kind: %s\n", req.FileKind)
	fmt.Fprintf(&sb, "Entity: %s\n", req.Entity)
	if req.Amount != nil {
		fmt.Fprintf(&sb, "Amount: %.2f\n", *req.Amount)
	}
	if !req.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "Date: %s\n", req.Timestamp.Format("2006-01-02"))
	}
	for k, v := range req.Payload {
		fmt.Fprintf(&sb, "%s: %s\n", k, v)
	}

	sb.WriteString("\nKnown categories:\n")
	for _, cat := range req.Categories {
		fmt.Fprintf(&sb, "- %s\n", cat)
	}

	sb.WriteString(`
Respond with JSON only:
{"category": "<one of the known categories>", "sub_category": "<free-form or empty>", "confidence": <0-100>}
`)

	return sb.String()
}

// buildJudgePrompt renders a header tie-break request. The oracle is told to
// prefer a detail ledger over a summary table, because summary tables are
// actively misleading downstream.
func buildJudgePrompt(req HeaderJudgeRequest) string {
	var sb strings.Builder

	sb.WriteString("Two rows in this spreadsheet both look like a table header. ")
	sb.WriteString("Pick the one that heads a detail ledger (many transactional rows), ")
	sb.WriteString("not a summary table (few aggregated rows).\n\n")
	fmt.Fprintf(&sb, "File: %s\n\n", req.SourceName)

	for _, cand := range req.Candidates {
		fmt.Fprintf(&sb, "Candidate row %d: %s\n", cand.Row, strings.Join(cand.Cells, " | "))
	}

	if len(req.Sample) > 0 {
		sb.WriteString("\nRows following the later candidate:\n")
		for _, row := range req.Sample {
			fmt.Fprintf(&sb, "%s\n", strings.Join(row, " | "))
		}
	}

	sb.WriteString(`
Respond with JSON only:
{"row": <chosen candidate row index>}
`)

	return sb.String()
}
