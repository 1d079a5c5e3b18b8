package model

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	amount := 12.5
	base := func() *UniversalEvent {
		return &UniversalEvent{
			TenantID:  "tenant-a",
			Timestamp: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
			Amount:    &amount,
			Entity:    "Latte",
			Payload:   map[string]string{"Notes": "extra shot", "Register": "2"},
		}
	}

	t.Run("deterministic", func(t *testing.T) {
		a := base().GenerateID()
		b := base().GenerateID()
		if a != b {
			t.Errorf("identical content produced different ids: %s vs %s", a, b)
		}
		if len(a) != 64 {
			t.Errorf("id length = %d, want 64 hex chars", len(a))
		}
	})

	t.Run("payload order independent", func(t *testing.T) {
		a := base()
		b := base()
		b.Payload = map[string]string{"Register": "2", "Notes": "extra shot"}
		if a.GenerateID() != b.GenerateID() {
			t.Error("payload insertion order changed the id")
		}
	})

	t.Run("timezone normalized", func(t *testing.T) {
		a := base()
		b := base()
		loc := time.FixedZone("IST", 5*3600+1800)
		b.Timestamp = b.Timestamp.In(loc)
		if a.GenerateID() != b.GenerateID() {
			t.Error("same instant in another zone changed the id")
		}
	})

	t.Run("sensitive to content", func(t *testing.T) {
		a := base()
		seen := map[string]string{a.GenerateID(): "base"}

		variants := map[string]func(e *UniversalEvent){
			"tenant": func(e *UniversalEvent) { e.TenantID = "tenant-b" },
			"entity": func(e *UniversalEvent) { e.Entity = "Mocha" },
			"amount": func(e *UniversalEvent) { v := 12.51; e.Amount = &v },
			"time":   func(e *UniversalEvent) { e.Timestamp = e.Timestamp.Add(time.Minute) },
			"payload": func(e *UniversalEvent) {
				e.Payload = map[string]string{"Notes": "extra shot", "Register": "3"}
			},
			"nil amount": func(e *UniversalEvent) { e.Amount = nil },
		}
		for name, mutate := range variants {
			ev := base()
			mutate(ev)
			id := ev.GenerateID()
			if prev, dup := seen[id]; dup {
				t.Errorf("%s variant collided with %s", name, prev)
			}
			seen[id] = name
		}
	})

	t.Run("status does not affect id", func(t *testing.T) {
		a := base()
		b := base()
		b.Status = StatusQuarantined
		b.Confidence = 40
		b.Category = "Food"
		if a.GenerateID() != b.GenerateID() {
			t.Error("classification outcome changed the id")
		}
	})
}

func TestPatternSignature(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Latte", "latte"},
		{"  CAFFE   LATTE  ", "caffe latte"},
		{"latte-grande", "latte grande"},
		{"ITEM_42/B", "item 42 b"},
		{"Café au Lait", "café au lait"},
		{"Latte (large)!!", "latte large"},
		{"Latte(large)", "lattelarge"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := PatternSignature(tt.in); got != tt.want {
			t.Errorf("PatternSignature(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeEntityName(t *testing.T) {
	if got := NormalizeEntityName("  Double   ESPRESSO "); got != "double espresso" {
		t.Errorf("NormalizeEntityName = %q", got)
	}
}
