package oracle

import (
	"strings"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"category":"Food","confidence":90}`,
			want:    `{"category":"Food","confidence":90}`,
		},
		{
			name:    "fenced object",
			content: "Here is the result:\n```json\n{\"category\": \"Food\"}\n```\nLet me know if you need anything else.",
			want:    `{"category": "Food"}`,
		},
		{
			name:    "nested braces",
			content: `prefix {"a": {"b": 1}, "c": 2} suffix`,
			want:    `{"a": {"b": 1}, "c": 2}`,
		},
		{
			name:    "braces inside strings ignored",
			content: `{"note": "a } b { c", "row": 3}`,
			want:    `{"note": "a } b { c", "row": 3}`,
		},
		{
			name:    "escaped quote inside string",
			content: `{"note": "say \"}\" loudly", "row": 1}`,
			want:    `{"note": "say \"}\" loudly", "row": 1}`,
		},
		{
			name:    "no object",
			content: "I could not determine a category.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			content: `{"category": "Food"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClassification(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		resp, err := parseClassification(`{"category":"Beverages","sub_category":"Coffee","confidence":92}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Category != "Beverages" || resp.SubCategory != "Coffee" || resp.Confidence != 92 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("confidence clamped high", func(t *testing.T) {
		resp, err := parseClassification(`{"category":"Food","confidence":250}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Confidence != 100 {
			t.Errorf("confidence = %d, want 100", resp.Confidence)
		}
	})

	t.Run("confidence clamped low", func(t *testing.T) {
		resp, err := parseClassification(`{"category":"Food","confidence":-5}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Confidence != 0 {
			t.Errorf("confidence = %d, want 0", resp.Confidence)
		}
	})

	t.Run("missing category", func(t *testing.T) {
		_, err := parseClassification(`{"confidence": 80}`)
		if err == nil {
			t.Fatal("expected error for missing category")
		}
	})

	t.Run("prose wrapped", func(t *testing.T) {
		content := "Based on the item name this looks like food.\n" +
			`{"category": "Food", "sub_category": "Snacks", "confidence": 75}` + "\nHope that helps."
		resp, err := parseClassification(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Category != "Food" || resp.Confidence != 75 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("non JSON garbage", func(t *testing.T) {
		_, err := parseClassification("no idea")
		if err == nil {
			t.Fatal("expected error for non-JSON content")
		}
		if !strings.Contains(err.Error(), "no JSON object") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestParseHeaderJudgment(t *testing.T) {
	req := HeaderJudgeRequest{
		SourceName: "sales.xlsx",
		Candidates: []HeaderCandidate{
			{Row: 0, Cells: []string{"Category", "Total"}},
			{Row: 3, Cells: []string{"Date", "Item", "Amount"}},
		},
	}

	t.Run("valid candidate", func(t *testing.T) {
		resp, err := parseHeaderJudgment(`{"row": 3}`, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Row != 3 {
			t.Errorf("row = %d, want 3", resp.Row)
		}
	})

	t.Run("row not among candidates", func(t *testing.T) {
		_, err := parseHeaderJudgment(`{"row": 7}`, req)
		if err == nil {
			t.Fatal("expected error for out-of-candidate row")
		}
	})

	t.Run("malformed content", func(t *testing.T) {
		_, err := parseHeaderJudgment("row three looks right", req)
		if err == nil {
			t.Fatal("expected error for malformed content")
		}
	})
}
