package classify

import (
	"testing"

	"github.com/flowledger/ledgerd/internal/model"
)

func streamMapping() model.ColumnMapping {
	return model.ColumnMapping{
		model.FieldTimestamp: {Name: "Date", Index: 0},
		model.FieldEntity:    {Name: "Item", Index: 1},
		model.FieldAmount:    {Name: "Amount", Index: 2},
	}
}

func stateMapping() model.ColumnMapping {
	return model.ColumnMapping{
		model.FieldEntity: {Name: "Item", Index: 0},
		model.FieldAmount: {Name: "Price", Index: 1},
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		mapping model.ColumnMapping
		want    model.FileKind
	}{
		{"dated amounts are a stream", "sales_march.csv", streamMapping(), model.FileKindStream},
		{"priced items without dates are state", "menu.xlsx", stateMapping(), model.FileKindState},
		{"filename alone cannot beat columns", "menu.csv", streamMapping(), model.FileKindStream},
		{"state columns beat stream filename", "daily_sales.csv", stateMapping(), model.FileKindState},
		{"contradictory filename falls back to columns", "sales_menu.csv", stateMapping(), model.FileKindState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := DetectKind(tt.source, tt.mapping)
			if verdict.Kind != tt.want {
				t.Errorf("DetectKind(%q) = %s, want %s", tt.source, verdict.Kind, tt.want)
			}
		})
	}
}

func TestDetectKindConfidence(t *testing.T) {
	t.Run("strong agreement scores high", func(t *testing.T) {
		verdict := DetectKind("daily_sales_transactions.csv", streamMapping())
		if verdict.Confidence <= 0.8 {
			t.Errorf("confidence = %.2f, want > 0.8", verdict.Confidence)
		}
	})

	t.Run("confidence is capped", func(t *testing.T) {
		verdict := DetectKind("daily_sales_orders_transactions_revenue_ledger.csv", streamMapping())
		if verdict.Confidence > 0.95 {
			t.Errorf("confidence = %.2f, want <= 0.95", verdict.Confidence)
		}
	})

	t.Run("no signal is a coin flip", func(t *testing.T) {
		verdict := DetectKind("upload.csv", model.ColumnMapping{})
		if verdict.Confidence != 0.5 {
			t.Errorf("confidence = %.2f, want 0.5", verdict.Confidence)
		}
		if verdict.Kind != model.FileKindStream {
			t.Errorf("tie should default to STREAM, got %s", verdict.Kind)
		}
	})
}
