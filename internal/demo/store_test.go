package demo

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/kv"
)

func demoInput(amount int64, description string) core.TransactionInput {
	return core.TransactionInput{
		Amount:      decimal.NewFromInt(amount),
		Description: description,
		Category:    "supermercato",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:        core.TypeExpense,
	}
}

func TestAddRoundTripsThroughPersistence(t *testing.T) {
	local := kv.NewMemory()
	store := NewStore(local, nil)

	tx, err := store.Add(demoInput(50, "Groceries"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt.IsZero() {
		t.Fatalf("expected assigned id and timestamp, got %+v", tx)
	}
	if tx.IsSample {
		t.Fatalf("user records must not be samples")
	}

	// A fresh store over the same KV must see the identical list.
	reloaded := NewStore(local, nil)
	got := reloaded.List()
	if len(got) != 1 {
		t.Fatalf("expected 1 record after reload, got %d", len(got))
	}
	if got[0].ID != tx.ID || !got[0].Amount.Equal(tx.Amount) || got[0].Description != tx.Description {
		t.Fatalf("reload mismatch: %+v vs %+v", got[0], tx)
	}
	if !got[0].Date.Equal(tx.Date) {
		t.Fatalf("date not stable across reload: %v vs %v", got[0].Date, tx.Date)
	}
}

func TestQuotaRejectsEleventhAdd(t *testing.T) {
	local := kv.NewMemory()
	store := NewStore(local, nil)
	store.SeedSamples() // samples must not count against the quota

	for i := 0; i < MaxTransactions; i++ {
		if _, err := store.Add(demoInput(int64(i+1), fmt.Sprintf("tx %d", i))); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if store.CanAdd() {
		t.Fatalf("expected quota exhausted after %d adds", MaxTransactions)
	}

	_, err := store.Add(demoInput(99, "over quota"))
	if !errors.Is(err, core.ErrDemoLimitReached) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if got := store.UserCount(); got != MaxTransactions {
		t.Fatalf("expected user count to stay %d, got %d", MaxTransactions, got)
	}

	reloaded := NewStore(local, nil)
	if got := reloaded.UserCount(); got != MaxTransactions {
		t.Fatalf("persisted user count drifted: %d", got)
	}
}

func TestConcurrentAddsRespectQuota(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil)
	store.SeedSamples()

	// Twice the quota in parallel: exactly MaxTransactions adds may win.
	attempts := 2 * MaxTransactions
	var added atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(demoInput(int64(i+1), fmt.Sprintf("concurrent %d", i)))
			switch {
			case err == nil:
				added.Add(1)
			case !errors.Is(err, core.ErrDemoLimitReached):
				t.Errorf("add %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if added.Load() != MaxTransactions {
		t.Fatalf("expected exactly %d successful adds, got %d", MaxTransactions, added.Load())
	}
	if got := store.UserCount(); got != MaxTransactions {
		t.Fatalf("quota overshot: user count %d", got)
	}
	if store.CanAdd() {
		t.Fatalf("expected quota exhausted")
	}
}

func TestUpdateMergesFields(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil)
	tx, err := store.Add(demoInput(50, "Groceries"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	desc := "Weekly groceries"
	got, err := store.Update(tx.ID, core.TransactionPatch{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != desc || !got.Amount.Equal(tx.Amount) {
		t.Fatalf("unexpected merge result: %+v", got)
	}

	if _, err := store.Update("missing", core.TransactionPatch{Description: &desc}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil)
	tx, _ := store.Add(demoInput(50, "Groceries"))

	if err := store.Delete(tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty list after delete")
	}
	if err := store.Delete(tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestClearDropsPersistedRecord(t *testing.T) {
	local := kv.NewMemory()
	store := NewStore(local, nil)
	store.Add(demoInput(50, "Groceries"))

	store.Clear()
	if store.Count() != 0 {
		t.Fatalf("expected empty list after clear")
	}
	if _, ok, _ := local.Get(ListKey); ok {
		t.Fatalf("expected persisted record removed")
	}
}

func TestSeedSamplesIdempotentAndSkippedWhenNotEmpty(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil)
	store.SeedSamples()
	first := store.Count()
	if first == 0 {
		t.Fatalf("expected samples seeded into empty store")
	}

	store.SeedSamples()
	if store.Count() != first {
		t.Fatalf("seeding must be idempotent within a session")
	}
	for _, tx := range store.List() {
		if !tx.IsSample {
			t.Fatalf("seeded record not marked as sample: %+v", tx)
		}
	}
	if store.UserCount() != 0 {
		t.Fatalf("samples must not count against the quota")
	}

	occupied := NewStore(kv.NewMemory(), nil)
	occupied.Add(demoInput(50, "Groceries"))
	occupied.SeedSamples()
	if occupied.Count() != 1 {
		t.Fatalf("seeding must not replace existing records")
	}
}

func TestLoadSurvivesCorruption(t *testing.T) {
	local := kv.NewMemory()
	local.Set(ListKey, "{definitely not json")

	store := NewStore(local, nil)
	if store.Count() != 0 {
		t.Fatalf("expected empty list from corrupt persistence")
	}
	if _, err := store.Add(demoInput(50, "Groceries")); err != nil {
		t.Fatalf("store must stay writable after corruption: %v", err)
	}
}

func TestStatsIncludeSamples(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil)
	store.SeedSamples()

	now := time.Now()
	stats := store.Stats(now.AddDate(0, 0, -7), now)
	if stats.TransactionCount == 0 {
		t.Fatalf("expected sample records inside the stats window")
	}
	if !stats.TotalIncome.IsPositive() || !stats.TotalExpense.IsPositive() {
		t.Fatalf("expected both totals positive from samples, got %+v", stats)
	}
}
