package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEvent(id, entity string) *model.UniversalEvent {
	amount := 42.5
	return &model.UniversalEvent{
		ID:         id,
		TenantID:   "t1",
		Timestamp:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Entity:     entity,
		Category:   "Supplies",
		Amount:     &amount,
		Confidence: 90,
		Status:     model.StatusAccepted,
		SourceFile: "test.csv",
		Payload:    map[string]string{"note": "hello"},
	}
}

func TestEventLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("append and read back", func(t *testing.T) {
		store := createTestStorage(t)

		event := testEvent("ev-1", "Acme")
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}

		got, err := store.GetEventByID(ctx, "t1", "ev-1")
		if err != nil {
			t.Fatalf("GetEventByID failed: %v", err)
		}
		if got.Entity != "Acme" || got.Category != "Supplies" {
			t.Errorf("unexpected event: %+v", got)
		}
		if got.Amount == nil || *got.Amount != 42.5 {
			t.Errorf("amount not preserved: %v", got.Amount)
		}
		if got.Payload["note"] != "hello" {
			t.Errorf("payload not preserved: %v", got.Payload)
		}
		if !got.Timestamp.Equal(event.Timestamp) {
			t.Errorf("timestamp mismatch: got %v want %v", got.Timestamp, event.Timestamp)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		store := createTestStorage(t)

		if err := store.AppendEvent(ctx, testEvent("ev-1", "Acme")); err != nil {
			t.Fatalf("first append failed: %v", err)
		}
		err := store.AppendEvent(ctx, testEvent("ev-1", "Acme"))
		if !errors.Is(err, common.ErrDuplicateEntry) {
			t.Errorf("expected ErrDuplicateEntry, got %v", err)
		}
	})

	t.Run("exists check", func(t *testing.T) {
		store := createTestStorage(t)

		exists, err := store.EventExists(ctx, "t1", "ev-1")
		if err != nil || exists {
			t.Fatalf("expected absent event, got exists=%v err=%v", exists, err)
		}
		if err := store.AppendEvent(ctx, testEvent("ev-1", "Acme")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		exists, err = store.EventExists(ctx, "t1", "ev-1")
		if err != nil || !exists {
			t.Fatalf("expected present event, got exists=%v err=%v", exists, err)
		}
		// Tenant isolation.
		exists, err = store.EventExists(ctx, "t2", "ev-1")
		if err != nil || exists {
			t.Fatalf("event leaked across tenants: exists=%v err=%v", exists, err)
		}
	})

	t.Run("supersede keeps original and links forward", func(t *testing.T) {
		store := createTestStorage(t)

		original := testEvent("ev-1", "Acme")
		original.Status = model.StatusQuarantined
		if err := store.AppendEvent(ctx, original); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		replacement := testEvent("ev-1-fix", "Acme")
		replacement.Category = "Equipment"
		replacement.Confidence = 100
		if err := store.SupersedeEvent(ctx, "t1", "ev-1", replacement); err != nil {
			t.Fatalf("SupersedeEvent failed: %v", err)
		}

		got, err := store.GetEventByID(ctx, "t1", "ev-1")
		if err != nil {
			t.Fatalf("GetEventByID failed: %v", err)
		}
		if got.Status != model.StatusSuperseded {
			t.Errorf("original status = %s, want SUPERSEDED", got.Status)
		}
		if got.SupersededBy != "ev-1-fix" {
			t.Errorf("SupersededBy = %q, want ev-1-fix", got.SupersededBy)
		}
		if got.Category != "Supplies" {
			t.Errorf("original category was rewritten to %q", got.Category)
		}

		fix, err := store.GetEventByID(ctx, "t1", "ev-1-fix")
		if err != nil {
			t.Fatalf("replacement lookup failed: %v", err)
		}
		if fix.Category != "Equipment" || fix.Confidence != 100 {
			t.Errorf("unexpected replacement: %+v", fix)
		}
	})

	t.Run("supersede is idempotent", func(t *testing.T) {
		store := createTestStorage(t)

		original := testEvent("ev-1", "Acme")
		if err := store.AppendEvent(ctx, original); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		replacement := testEvent("ev-1-fix", "Acme")
		if err := store.SupersedeEvent(ctx, "t1", "ev-1", replacement); err != nil {
			t.Fatalf("first supersede failed: %v", err)
		}
		if err := store.SupersedeEvent(ctx, "t1", "ev-1", replacement); err != nil {
			t.Fatalf("retried supersede failed: %v", err)
		}
	})

	t.Run("supersede missing event", func(t *testing.T) {
		store := createTestStorage(t)
		err := store.SupersedeEvent(ctx, "t1", "nope", testEvent("ev-x", "Acme"))
		if !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("filtered query", func(t *testing.T) {
		store := createTestStorage(t)

		for i := 0; i < 5; i++ {
			event := testEvent(fmt.Sprintf("ev-%d", i), "Acme")
			if i%2 == 0 {
				event.Status = model.StatusQuarantined
			}
			if err := store.AppendEvent(ctx, event); err != nil {
				t.Fatalf("append failed: %v", err)
			}
		}

		quarantined, err := store.GetEvents(ctx, "t1", service.EventFilter{Status: model.StatusQuarantined})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(quarantined) != 3 {
			t.Errorf("got %d quarantined events, want 3", len(quarantined))
		}

		limited, err := store.GetEvents(ctx, "t1", service.EventFilter{Limit: 2})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("got %d events with limit 2", len(limited))
		}
	})
}

func TestQuarantineLifecycle(t *testing.T) {
	ctx := context.Background()

	newRecord := func(id, eventID string) *model.QuarantineRecord {
		return &model.QuarantineRecord{
			ID:       id,
			TenantID: "t1",
			EventID:  eventID,
			Reason:   "low confidence",
		}
	}

	t.Run("create and list pending", func(t *testing.T) {
		store := createTestStorage(t)

		if err := store.CreateQuarantine(ctx, newRecord("q1", "ev-1")); err != nil {
			t.Fatalf("CreateQuarantine failed: %v", err)
		}
		if err := store.CreateQuarantine(ctx, newRecord("q2", "ev-2")); err != nil {
			t.Fatalf("CreateQuarantine failed: %v", err)
		}

		pending, err := store.GetPendingQuarantine(ctx, "t1")
		if err != nil {
			t.Fatalf("GetPendingQuarantine failed: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("got %d pending records, want 2", len(pending))
		}
		if pending[0].Resolution != model.ResolutionPending {
			t.Errorf("resolution = %s, want PENDING", pending[0].Resolution)
		}
	})

	t.Run("one record per event", func(t *testing.T) {
		store := createTestStorage(t)

		if err := store.CreateQuarantine(ctx, newRecord("q1", "ev-1")); err != nil {
			t.Fatalf("CreateQuarantine failed: %v", err)
		}
		err := store.CreateQuarantine(ctx, newRecord("q2", "ev-1"))
		if !errors.Is(err, common.ErrDuplicateEntry) {
			t.Errorf("expected ErrDuplicateEntry, got %v", err)
		}
	})

	t.Run("resolution is terminal", func(t *testing.T) {
		store := createTestStorage(t)

		if err := store.CreateQuarantine(ctx, newRecord("q1", "ev-1")); err != nil {
			t.Fatalf("CreateQuarantine failed: %v", err)
		}

		correction := &model.Correction{Category: "Equipment"}
		if err := store.MarkQuarantineResolved(ctx, "t1", "ev-1", model.ResolutionApproved, correction); err != nil {
			t.Fatalf("MarkQuarantineResolved failed: %v", err)
		}

		got, err := store.GetQuarantineByEventID(ctx, "t1", "ev-1")
		if err != nil {
			t.Fatalf("GetQuarantineByEventID failed: %v", err)
		}
		if got.Resolution != model.ResolutionApproved {
			t.Errorf("resolution = %s, want APPROVED", got.Resolution)
		}
		if got.Correction == nil || got.Correction.Category != "Equipment" {
			t.Errorf("correction not stored: %+v", got.Correction)
		}
		if got.ResolvedAt == nil {
			t.Error("resolved_at not set")
		}

		// Second resolution attempt reports the terminal state.
		err = store.MarkQuarantineResolved(ctx, "t1", "ev-1", model.ResolutionRejected, nil)
		if !errors.Is(err, common.ErrAlreadyResolved) {
			t.Errorf("expected ErrAlreadyResolved, got %v", err)
		}

		// The first resolution wins.
		got, err = store.GetQuarantineByEventID(ctx, "t1", "ev-1")
		if err != nil {
			t.Fatalf("re-read failed: %v", err)
		}
		if got.Resolution != model.ResolutionApproved {
			t.Errorf("resolution changed to %s after retry", got.Resolution)
		}
	})

	t.Run("resolving unknown event", func(t *testing.T) {
		store := createTestStorage(t)
		err := store.MarkQuarantineResolved(ctx, "t1", "nope", model.ResolutionApproved, nil)
		if !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLearnedPatterns(t *testing.T) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		store := createTestStorage(t)

		pattern := &model.LearnedPattern{
			TenantID:  "t1",
			Signature: "kryptonite",
			Category:  "Equipment",
		}
		if err := store.SavePattern(ctx, pattern); err != nil {
			t.Fatalf("SavePattern failed: %v", err)
		}

		got, err := store.GetPattern(ctx, "t1", "kryptonite")
		if err != nil {
			t.Fatalf("GetPattern failed: %v", err)
		}
		if got.Category != "Equipment" {
			t.Errorf("category = %q, want Equipment", got.Category)
		}
	})

	t.Run("upsert keeps use count", func(t *testing.T) {
		store := createTestStorage(t)

		pattern := &model.LearnedPattern{TenantID: "t1", Signature: "kryptonite", Category: "Equipment"}
		if err := store.SavePattern(ctx, pattern); err != nil {
			t.Fatalf("SavePattern failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := store.IncrementPatternUse(ctx, "t1", "kryptonite"); err != nil {
				t.Fatalf("IncrementPatternUse failed: %v", err)
			}
		}

		pattern.Category = "Supplies"
		if err := store.SavePattern(ctx, pattern); err != nil {
			t.Fatalf("re-save failed: %v", err)
		}

		got, err := store.GetPattern(ctx, "t1", "kryptonite")
		if err != nil {
			t.Fatalf("GetPattern failed: %v", err)
		}
		if got.Category != "Supplies" {
			t.Errorf("category = %q, want Supplies", got.Category)
		}
		if got.UseCount != 3 {
			t.Errorf("use count = %d, want 3", got.UseCount)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := createTestStorage(t)

		pattern := &model.LearnedPattern{TenantID: "t1", Signature: "kryptonite", Category: "Equipment"}
		if err := store.SavePattern(ctx, pattern); err != nil {
			t.Fatalf("SavePattern failed: %v", err)
		}
		if err := store.DeletePattern(ctx, "t1", "kryptonite"); err != nil {
			t.Fatalf("DeletePattern failed: %v", err)
		}
		if _, err := store.GetPattern(ctx, "t1", "kryptonite"); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestEntityRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("ensure provisional creates once", func(t *testing.T) {
		store := createTestStorage(t)

		created, err := store.EnsureProvisionalEntity(ctx, "t1", "Kryptonite")
		if err != nil {
			t.Fatalf("EnsureProvisionalEntity failed: %v", err)
		}
		if !created {
			t.Error("first call should create")
		}

		created, err = store.EnsureProvisionalEntity(ctx, "t1", "KRYPTONITE")
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}
		if created {
			t.Error("case variant should not create a second record")
		}

		entities, err := store.ListEntities(ctx, "t1")
		if err != nil {
			t.Fatalf("ListEntities failed: %v", err)
		}
		if len(entities) != 1 {
			t.Fatalf("got %d entities, want 1", len(entities))
		}
		if entities[0].Status != model.EntityProvisional {
			t.Errorf("status = %s, want PROVISIONAL", entities[0].Status)
		}
	})

	t.Run("concurrent ensure races to one winner", func(t *testing.T) {
		store := createTestStorage(t)

		const workers = 8
		results := make([]bool, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				created, err := store.EnsureProvisionalEntity(ctx, "t1", "Kryptonite")
				if err != nil {
					t.Errorf("worker %d failed: %v", i, err)
					return
				}
				results[i] = created
			}(i)
		}
		wg.Wait()

		var winners int
		for _, created := range results {
			if created {
				winners++
			}
		}
		if winners != 1 {
			t.Errorf("got %d winners, want exactly 1", winners)
		}
	})

	t.Run("promote provisional to official", func(t *testing.T) {
		store := createTestStorage(t)

		if _, err := store.EnsureProvisionalEntity(ctx, "t1", "Kryptonite"); err != nil {
			t.Fatalf("EnsureProvisionalEntity failed: %v", err)
		}

		price := 9.99
		err := store.PromoteEntity(ctx, &model.EntityRegistryRecord{
			TenantID: "t1",
			Name:     "Kryptonite",
			Category: "Equipment",
			Price:    &price,
		})
		if err != nil {
			t.Fatalf("PromoteEntity failed: %v", err)
		}

		got, err := store.GetEntity(ctx, "t1", model.NormalizeEntityName("Kryptonite"))
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if got.Status != model.EntityOfficial {
			t.Errorf("status = %s, want OFFICIAL", got.Status)
		}
		if got.Category != "Equipment" || got.Price == nil || *got.Price != 9.99 {
			t.Errorf("promotion did not carry fields: %+v", got)
		}
	})

	t.Run("promotion keeps stored fields when declaration is silent", func(t *testing.T) {
		store := createTestStorage(t)

		price := 5.0
		if err := store.PromoteEntity(ctx, &model.EntityRegistryRecord{
			TenantID: "t1",
			Name:     "Widget",
			Category: "Supplies",
			Price:    &price,
		}); err != nil {
			t.Fatalf("first promote failed: %v", err)
		}

		if err := store.PromoteEntity(ctx, &model.EntityRegistryRecord{
			TenantID: "t1",
			Name:     "Widget",
		}); err != nil {
			t.Fatalf("second promote failed: %v", err)
		}

		got, err := store.GetEntity(ctx, "t1", "widget")
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if got.Category != "Supplies" || got.Price == nil || *got.Price != 5.0 {
			t.Errorf("silent promote dropped fields: %+v", got)
		}
	})
}

func TestCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults seeded by migration", func(t *testing.T) {
		store := createTestStorage(t)

		categories, err := store.GetCategories(ctx)
		if err != nil {
			t.Fatalf("GetCategories failed: %v", err)
		}
		names := make(map[string]bool, len(categories))
		for _, c := range categories {
			names[c.Name] = true
		}
		for _, want := range []string{"Sales", "Food", "Beverages", "Equipment", "Uncategorized"} {
			if !names[want] {
				t.Errorf("default category %q missing", want)
			}
		}
	})

	t.Run("create and fetch", func(t *testing.T) {
		store := createTestStorage(t)

		created, err := store.CreateCategory(ctx, "Travel", "Flights and lodging")
		if err != nil {
			t.Fatalf("CreateCategory failed: %v", err)
		}
		if created.ID == 0 {
			t.Error("created category has no id")
		}

		got, err := store.GetCategoryByName(ctx, "Travel")
		if err != nil {
			t.Fatalf("GetCategoryByName failed: %v", err)
		}
		if got.Description != "Flights and lodging" {
			t.Errorf("description = %q", got.Description)
		}

		if _, err := store.CreateCategory(ctx, "Travel", ""); !errors.Is(err, common.ErrDuplicateEntry) {
			t.Errorf("expected ErrDuplicateEntry, got %v", err)
		}
	})
}

func TestStorageValidation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	if err := store.AppendEvent(ctx, nil); err == nil {
		t.Error("AppendEvent should reject nil event")
	}
	event := testEvent("ev-1", "Acme")
	event.Confidence = 101
	if err := store.AppendEvent(ctx, event); err == nil {
		t.Error("AppendEvent should reject out-of-range confidence")
	}
	if _, err := store.GetEventByID(ctx, "", "ev-1"); err == nil {
		t.Error("GetEventByID should reject empty tenant")
	}
	if _, err := store.GetPattern(ctx, "t1", ""); err == nil {
		t.Error("GetPattern should reject empty signature")
	}
	if _, err := store.EnsureProvisionalEntity(ctx, "t1", "  "); err == nil {
		t.Error("EnsureProvisionalEntity should reject blank name")
	}
}
