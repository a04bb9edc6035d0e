// Package tracker is the unified transaction facade: one surface whether the
// session is authenticated (remote store), anonymous with demo mode (local
// store) or anonymous without it (inert). The active backend is selected
// once per identity transition, never per call.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"soldi/internal/core"
	"soldi/internal/demo"
	"soldi/internal/kv"
)

// State names the facade's position in its lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateRemoteActive State = "remote_active"
	StateDemoActive   State = "demo_active"
	StateInert        State = "inert"
)

// DemoEnabledKey is where the persisted demo-mode flag lives in the KV store.
const DemoEnabledKey = "demo:enabled"

// DefaultSubscribeLimit caps the live subscription's recomputed list.
const DefaultSubscribeLimit = 50

// ErrDemoUnavailable rejects StartDemo outside an anonymous session.
var ErrDemoUnavailable = errors.New("demo mode requires a resolved anonymous session")

// FetchOptions tune a cache-aware bulk read through the facade.
type FetchOptions struct {
	TTL               time.Duration
	ForceRefresh      bool
	RevalidateIfFresh bool
}

// Identity is the slice of the identity manager the tracker observes.
type Identity interface {
	Current() (string, bool)
	Subscribe(func(ownerID string, signedIn bool)) func()
}

// Tracker is the facade. Construct with New, then call Start once.
type Tracker struct {
	remote   RemoteStore
	demo     *demo.Store
	local    kv.Store
	identity Identity
	logger   *slog.Logger

	mu            sync.Mutex
	baseCtx       context.Context
	cacheTTL      time.Duration
	state         State
	backend       backend
	transactions  []core.Transaction
	loading       bool
	nextListener  int
	listeners     map[int]func([]core.Transaction)
	unsubIdentity func()
}

func New(remoteStore RemoteStore, demoStore *demo.Store, local kv.Store, ids Identity, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		remote:    remoteStore,
		demo:      demoStore,
		local:     local,
		identity:  ids,
		logger:    logger,
		state:     StateInitializing,
		backend:   inertBackend{},
		loading:   true,
		listeners: map[int]func([]core.Transaction){},
	}
}

// Start applies the already-resolved identity and follows auth-state changes
// until Close. ctx bounds every live subscription the tracker opens.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.baseCtx = ctx
	t.mu.Unlock()

	t.unsubIdentity = t.identity.Subscribe(func(ownerID string, signedIn bool) {
		t.applyIdentity(ownerID, signedIn)
	})
	t.applyIdentity(t.identity.Current())
}

// Close stops the identity watch and the active backend.
func (t *Tracker) Close() {
	if t.unsubIdentity != nil {
		t.unsubIdentity()
	}
	t.mu.Lock()
	t.backend.close()
	t.backend = inertBackend{}
	t.state = StateInert
	t.mu.Unlock()
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Loading reports whether the facade is waiting for its first data delivery.
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// Transactions returns the last published list.
func (t *Tracker) Transactions() []core.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Transaction, len(t.transactions))
	copy(out, t.transactions)
	return out
}

// OnTransactions registers a listener for published list changes and returns
// its unsubscribe function.
func (t *Tracker) OnTransactions(fn func([]core.Transaction)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextListener
	t.nextListener++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// StartDemo enables demo mode for an anonymous session. The flag persists,
// so the next startup resolves straight into DemoActive.
func (t *Tracker) StartDemo() error {
	t.mu.Lock()
	if t.state == StateRemoteActive || t.state == StateInitializing {
		t.mu.Unlock()
		return ErrDemoUnavailable
	}
	if t.state == StateDemoActive {
		t.mu.Unlock()
		return nil
	}
	if err := t.local.Set(DemoEnabledKey, "true"); err != nil {
		t.logger.Warn("persist demo flag", "error", err)
	}
	notify := t.activateDemoLocked()
	t.mu.Unlock()
	notify()
	return nil
}

// StopDemo disables demo mode. Demo records stay persisted; only the flag
// and the active backend change.
func (t *Tracker) StopDemo() {
	t.mu.Lock()
	if err := t.local.Delete(DemoEnabledKey); err != nil {
		t.logger.Warn("clear demo flag", "error", err)
	}
	if t.state != StateDemoActive {
		t.mu.Unlock()
		return
	}
	notify := t.activateInertLocked()
	t.mu.Unlock()
	notify()
}

func (t *Tracker) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	tx, err := t.currentBackend().add(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.refreshDemoList()
	return tx, nil
}

func (t *Tracker) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	tx, err := t.currentBackend().update(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, err
	}
	t.refreshDemoList()
	return tx, nil
}

func (t *Tracker) DeleteTransaction(ctx context.Context, id string) error {
	if err := t.currentBackend().delete(ctx, id); err != nil {
		return err
	}
	t.refreshDemoList()
	return nil
}

// SetCacheTTL overrides the cache freshness window for bulk reads that do
// not request one. Call before Start.
func (t *Tracker) SetCacheTTL(ttl time.Duration) {
	t.mu.Lock()
	t.cacheTTL = ttl
	t.mu.Unlock()
}

// FetchAllTransactions is the cache-aware bulk read.
func (t *Tracker) FetchAllTransactions(ctx context.Context, opts FetchOptions) ([]core.Transaction, error) {
	if opts.TTL <= 0 {
		t.mu.Lock()
		opts.TTL = t.cacheTTL
		t.mu.Unlock()
	}
	return t.currentBackend().fetchAll(ctx, opts)
}

// GetTotalTransactionCount is the cheap count path.
func (t *Tracker) GetTotalTransactionCount(ctx context.Context) (int64, error) {
	return t.currentBackend().count(ctx)
}

// GetStats aggregates the active backend's transactions over the range.
func (t *Tracker) GetStats(ctx context.Context, from, to time.Time) (core.Stats, error) {
	return t.currentBackend().stats(ctx, from, to)
}

// CanAddMoreTransactions reports whether another add would be accepted.
func (t *Tracker) CanAddMoreTransactions(ctx context.Context) (bool, error) {
	return t.currentBackend().canAdd(ctx)
}

// MaxTransactions returns the active quota; zero means unlimited.
func (t *Tracker) MaxTransactions() int {
	return t.currentBackend().maxTransactions()
}

func (t *Tracker) currentBackend() backend {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.backend
}

func (t *Tracker) applyIdentity(ownerID string, signedIn bool) {
	t.mu.Lock()
	var notify func()
	switch {
	case signedIn:
		notify = t.activateRemoteLocked(ownerID)
	case t.demoEnabled():
		notify = t.activateDemoLocked()
	default:
		notify = t.activateInertLocked()
	}
	t.mu.Unlock()
	notify()
}

func (t *Tracker) activateRemoteLocked(ownerID string) func() {
	t.backend.close()

	rb := &remoteBackend{store: t.remote, ownerID: ownerID, onUpdate: t.setTransactions}
	ctx := t.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	unsubscribe, err := t.remote.SubscribeRecent(ctx, ownerID, DefaultSubscribeLimit,
		t.setTransactions,
		func(err error) {
			// No auto-retry; the next identity transition recreates it.
			t.logger.Error("live subscription failed", "owner_id", ownerID, "error", err)
			t.setLoading(false)
		})
	if err != nil {
		t.logger.Error("open live subscription", "owner_id", ownerID, "error", err)
	} else {
		rb.unsubscribe = unsubscribe
	}

	t.backend = rb
	t.state = StateRemoteActive
	t.transactions = nil
	t.loading = true
	t.logger.Info("Activated remote backend", "owner_id", ownerID)
	return t.notifyLocked()
}

func (t *Tracker) activateDemoLocked() func() {
	t.backend.close()
	t.demo.SeedSamples()
	t.backend = &demoBackend{store: t.demo}
	t.state = StateDemoActive
	t.transactions = t.demo.List()
	t.loading = false
	t.logger.Info("Activated demo backend", "count", len(t.transactions))
	return t.notifyLocked()
}

func (t *Tracker) activateInertLocked() func() {
	t.backend.close()
	t.backend = inertBackend{}
	t.state = StateInert
	t.transactions = nil
	t.loading = false
	t.logger.Info("Deactivated transaction backend")
	return t.notifyLocked()
}

func (t *Tracker) demoEnabled() bool {
	v, ok, err := t.local.Get(DemoEnabledKey)
	if err != nil {
		t.logger.Warn("read demo flag", "error", err)
		return false
	}
	return ok && v == "true"
}

// setTransactions publishes a new list. It feeds from the live subscription,
// background revalidation and demo mutations.
func (t *Tracker) setTransactions(txs []core.Transaction) {
	t.mu.Lock()
	t.transactions = txs
	t.loading = false
	notify := t.notifyLocked()
	t.mu.Unlock()
	notify()
}

func (t *Tracker) setLoading(v bool) {
	t.mu.Lock()
	t.loading = v
	t.mu.Unlock()
}

// refreshDemoList republishes the local list after a mutation. Remote
// mutations need nothing here: the live subscription redelivers.
func (t *Tracker) refreshDemoList() {
	t.mu.Lock()
	if t.state != StateDemoActive {
		t.mu.Unlock()
		return
	}
	t.transactions = t.demo.List()
	notify := t.notifyLocked()
	t.mu.Unlock()
	notify()
}

// notifyLocked snapshots the listeners and the list under the held lock and
// returns the closure that actually invokes them.
func (t *Tracker) notifyLocked() func() {
	listeners := make([]func([]core.Transaction), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	list := make([]core.Transaction, len(t.transactions))
	copy(list, t.transactions)
	return func() {
		for _, fn := range listeners {
			fn(list)
		}
	}
}
