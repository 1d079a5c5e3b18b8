package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseClassification extracts the category judgment from the model output.
// Models occasionally wrap JSON in fences or prose, so the parser finds the
// first JSON object rather than requiring a bare body.
func parseClassification(content string) (ClassificationResponse, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return ClassificationResponse{}, err
	}

	var parsed struct {
		Category    string `json:"category"`
		SubCategory string `json:"sub_category"`
		Confidence  int    `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to parse classification response: %w", err)
	}

	if parsed.Category == "" {
		return ClassificationResponse{}, fmt.Errorf("classification response missing category")
	}

	// Clamp out-of-range confidence instead of failing the row.
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 100 {
		parsed.Confidence = 100
	}

	return ClassificationResponse{
		Category:    parsed.Category,
		SubCategory: parsed.SubCategory,
		Confidence:  parsed.Confidence,
	}, nil
}

// parseHeaderJudgment extracts the chosen row and validates it against the
// submitted candidates.
func parseHeaderJudgment(content string, req HeaderJudgeRequest) (HeaderJudgeResponse, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return HeaderJudgeResponse{}, err
	}

	var parsed struct {
		Row int `json:"row"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return HeaderJudgeResponse{}, fmt.Errorf("failed to parse header judgment: %w", err)
	}

	for _, cand := range req.Candidates {
		if cand.Row == parsed.Row {
			return HeaderJudgeResponse{Row: parsed.Row}, nil
		}
	}

	return HeaderJudgeResponse{}, fmt.Errorf("oracle chose row %d, not among candidates", parsed.Row)
}

// extractJSONObject returns the first balanced {...} object in content.
func extractJSONObject(content string) (string, error) {
	start := strings.Index(content, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON object in response")
}
