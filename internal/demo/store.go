// Package demo is the anonymous fallback store: the same logical surface as
// the remote store, backed by the local KV collaborator, capped at
// MaxTransactions user records. In-memory state is authoritative for the
// running session; persistence failures are logged and non-fatal.
package demo

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
	"soldi/internal/kv"
	"soldi/internal/metrics"
)

// MaxTransactions is the hard quota on non-sample demo records.
const MaxTransactions = 10

// ListKey is where the JSON-serialized demo list lives in the KV store.
const ListKey = "demo:transactions"

// Store holds the demo transaction list. All methods are synchronous and
// safe for concurrent use; the KV collaborator is synchronous by contract.
type Store struct {
	local  kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	items  []core.Transaction
	seeded bool
}

func NewStore(local kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{local: local, logger: logger, now: time.Now}
	s.load()
	return s
}

// load reads the persisted list. Absence or corruption yields an empty list,
// never an error: the demo store must always come up.
func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []core.Transaction{}

	raw, ok, err := s.local.Get(ListKey)
	if err != nil {
		s.logger.Warn("read demo transactions", "error", err)
		return
	}
	if !ok {
		return
	}

	var items []core.Transaction
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("discarding corrupt demo transactions", "error", err)
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	s.items = items
}

// Add appends a user record unless the quota is exhausted. Sample records
// never count against the quota.
func (s *Store) Add(in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The quota check and the append must share one critical section, or
	// concurrent adds can both pass the check and overshoot the quota.
	if s.userCountLocked() >= MaxTransactions {
		metrics.StoreOp("demo", "add", core.ErrDemoLimitReached)
		return core.Transaction{}, core.ErrDemoLimitReached
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Date:        core.NormalizeDate(in.Date),
		CreatedAt:   s.now(),
	}
	s.items = append([]core.Transaction{tx}, s.items...)
	s.persistLocked()
	metrics.StoreOp("demo", "add", nil)
	return tx, nil
}

// Update merges the given fields into the matching record. The quota is not
// re-checked: updates never change the record count.
func (s *Store) Update(id string, patch core.TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID != id {
			continue
		}
		s.items[i] = patch.Apply(tx)
		s.persistLocked()
		return s.items[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

// Delete hard-removes the matching record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID != id {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.persistLocked()
		return nil
	}
	return core.ErrNotFound
}

// Clear empties the list and removes the persisted record entirely.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []core.Transaction{}
	s.seeded = false
	if err := s.local.Delete(ListKey); err != nil {
		s.logger.Warn("clear demo transactions", "error", err)
	}
}

// SeedSamples replaces the list with the fixed example set. It only takes
// effect when no records exist yet and at most once per session.
func (s *Store) SeedSamples() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded || len(s.items) > 0 {
		return
	}
	s.items = sampleTransactions(s.now())
	s.seeded = true
	s.persistLocked()
	s.logger.Info("Seeded demo sample transactions", "count", len(s.items))
}

// List returns a copy of the current list.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.items))
	copy(out, s.items)
	return out
}

// Count returns the full record count, samples included.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// UserCount returns the number of records counted against the quota:
// everything except samples.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCountLocked()
}

func (s *Store) userCountLocked() int {
	n := 0
	for _, tx := range s.items {
		if !tx.IsSample {
			n++
		}
	}
	return n
}

// CanAdd reports whether another user record fits under the quota.
func (s *Store) CanAdd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCountLocked() < MaxTransactions
}

// Stats aggregates the demo list over the range. Samples are included in the
// totals; only the quota ignores them.
func (s *Store) Stats(from, to time.Time) core.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CalculateStats(s.items, from, to)
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("marshal demo transactions", "error", err)
		return
	}
	if err := s.local.Set(ListKey, string(raw)); err != nil {
		// In-memory state stays authoritative for the session.
		s.logger.Warn("persist demo transactions", "error", err)
	}
}
