package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/demo"
	"soldi/internal/kv"
	"soldi/internal/remote"
)

type fakeIdentity struct {
	mu        sync.Mutex
	ownerID   string
	signedIn  bool
	listeners []func(string, bool)
}

func (f *fakeIdentity) Current() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ownerID, f.signedIn
}

func (f *fakeIdentity) Subscribe(fn func(string, bool)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeIdentity) set(ownerID string, signedIn bool) {
	f.mu.Lock()
	f.ownerID = ownerID
	f.signedIn = signedIn
	listeners := append(([]func(string, bool))(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(ownerID, signedIn)
	}
}

type fakeRemote struct {
	mu           sync.Mutex
	subscribed   string
	unsubscribed bool
	onUpdate     func([]core.Transaction)
	addedOwner   string
	list         []core.Transaction
}

func (f *fakeRemote) Add(_ context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedOwner = ownerID
	return core.Transaction{ID: "r-1", OwnerID: ownerID, Type: in.Type, Amount: in.Amount}, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, _ core.TransactionPatch) (core.Transaction, error) {
	return core.Transaction{ID: id}, nil
}

func (f *fakeRemote) Delete(context.Context, string) error { return nil }

func (f *fakeRemote) FetchAll(_ context.Context, _ string, _ remote.FetchOptions) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

func (f *fakeRemote) TotalCount(_ context.Context, _ string, _ remote.CountOptions) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.list)), nil
}

func (f *fakeRemote) SubscribeRecent(_ context.Context, ownerID string, _ int, onUpdate func([]core.Transaction), _ func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = ownerID
	f.onUpdate = onUpdate
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed = true
	}, nil
}

func (f *fakeRemote) push(list []core.Transaction) {
	f.mu.Lock()
	onUpdate := f.onUpdate
	f.mu.Unlock()
	onUpdate(list)
}

func newTestTracker(t *testing.T, ids *fakeIdentity) (*Tracker, *fakeRemote, kv.Store) {
	t.Helper()
	local := kv.NewMemory()
	remoteStore := &fakeRemote{}
	tr := New(remoteStore, demo.NewStore(local, nil), local, ids, nil)
	return tr, remoteStore, local
}

func input(amount int64) core.TransactionInput {
	return core.TransactionInput{
		Amount:      decimal.NewFromInt(amount),
		Description: "Groceries",
		Category:    "supermercato",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:        core.TypeExpense,
	}
}

func TestInitializingRejectsMutations(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeIdentity{})

	if got := tr.State(); got != StateInitializing {
		t.Fatalf("expected initializing, got %s", got)
	}
	if !tr.Loading() {
		t.Fatalf("expected loading before identity resolution")
	}
	if _, err := tr.AddTransaction(context.Background(), input(50)); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestAnonymousWithoutDemoIsInert(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeIdentity{})
	tr.Start(context.Background())
	defer tr.Close()

	if got := tr.State(); got != StateInert {
		t.Fatalf("expected inert, got %s", got)
	}
	if tr.Loading() {
		t.Fatalf("inert state must not report loading")
	}
	if _, err := tr.AddTransaction(context.Background(), input(50)); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}

	list, err := tr.FetchAllTransactions(context.Background(), FetchOptions{})
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty read, got %v %v", list, err)
	}
	if ok, _ := tr.CanAddMoreTransactions(context.Background()); ok {
		t.Fatalf("inert state must not accept adds")
	}

	stats, err := tr.GetStats(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	if err != nil || stats.TransactionCount != 0 {
		t.Fatalf("expected empty stats, got %+v %v", stats, err)
	}
}

func TestStartDemoActivatesAndSeeds(t *testing.T) {
	tr, _, local := newTestTracker(t, &fakeIdentity{})
	tr.Start(context.Background())
	defer tr.Close()

	if err := tr.StartDemo(); err != nil {
		t.Fatalf("start demo: %v", err)
	}
	if got := tr.State(); got != StateDemoActive {
		t.Fatalf("expected demo active, got %s", got)
	}
	if len(tr.Transactions()) == 0 {
		t.Fatalf("expected seeded samples on first demo entry")
	}
	if got := tr.MaxTransactions(); got != demo.MaxTransactions {
		t.Fatalf("expected demo quota %d, got %d", demo.MaxTransactions, got)
	}
	if v, ok, _ := local.Get(DemoEnabledKey); !ok || v != "true" {
		t.Fatalf("expected persisted demo flag, got %q %v", v, ok)
	}

	before := len(tr.Transactions())
	if _, err := tr.AddTransaction(context.Background(), input(50)); err != nil {
		t.Fatalf("demo add: %v", err)
	}
	if got := len(tr.Transactions()); got != before+1 {
		t.Fatalf("expected published list to grow to %d, got %d", before+1, got)
	}
}

func TestPersistedDemoFlagResolvesIntoDemo(t *testing.T) {
	ids := &fakeIdentity{}
	tr, _, local := newTestTracker(t, ids)
	local.Set(DemoEnabledKey, "true")

	tr.Start(context.Background())
	defer tr.Close()

	if got := tr.State(); got != StateDemoActive {
		t.Fatalf("expected demo active from persisted flag, got %s", got)
	}
}

func TestStopDemoGoesInertAndClearsFlag(t *testing.T) {
	tr, _, local := newTestTracker(t, &fakeIdentity{})
	tr.Start(context.Background())
	defer tr.Close()

	tr.StartDemo()
	tr.StopDemo()

	if got := tr.State(); got != StateInert {
		t.Fatalf("expected inert after stop, got %s", got)
	}
	if _, ok, _ := local.Get(DemoEnabledKey); ok {
		t.Fatalf("expected demo flag removed")
	}
	if len(tr.Transactions()) != 0 {
		t.Fatalf("expected empty published list after stop")
	}
}

func TestSignInActivatesRemote(t *testing.T) {
	ids := &fakeIdentity{}
	tr, remoteStore, _ := newTestTracker(t, ids)
	tr.Start(context.Background())
	defer tr.Close()

	ids.set("user-1", true)
	if got := tr.State(); got != StateRemoteActive {
		t.Fatalf("expected remote active, got %s", got)
	}
	if !tr.Loading() {
		t.Fatalf("expected loading until first subscription delivery")
	}
	if remoteStore.subscribed != "user-1" {
		t.Fatalf("expected subscription for user-1, got %q", remoteStore.subscribed)
	}

	remoteStore.push([]core.Transaction{{ID: "r-1", OwnerID: "user-1"}})
	if tr.Loading() {
		t.Fatalf("expected loading cleared after first delivery")
	}
	if got := tr.Transactions(); len(got) != 1 || got[0].ID != "r-1" {
		t.Fatalf("unexpected published list: %+v", got)
	}

	if _, err := tr.AddTransaction(context.Background(), input(50)); err != nil {
		t.Fatalf("remote add: %v", err)
	}
	if remoteStore.addedOwner != "user-1" {
		t.Fatalf("expected add bound to user-1, got %q", remoteStore.addedOwner)
	}
	if ok, _ := tr.CanAddMoreTransactions(context.Background()); !ok {
		t.Fatalf("remote backend has no quota")
	}
	if got := tr.MaxTransactions(); got != 0 {
		t.Fatalf("expected unlimited quota, got %d", got)
	}
}

func TestSignOutStopsSubscription(t *testing.T) {
	ids := &fakeIdentity{ownerID: "user-1", signedIn: true}
	tr, remoteStore, _ := newTestTracker(t, ids)
	tr.Start(context.Background())
	defer tr.Close()

	if got := tr.State(); got != StateRemoteActive {
		t.Fatalf("expected remote active, got %s", got)
	}

	ids.set("", false)
	if got := tr.State(); got != StateInert {
		t.Fatalf("expected inert after sign-out, got %s", got)
	}
	if !remoteStore.unsubscribed {
		t.Fatalf("expected live subscription torn down on sign-out")
	}
	if len(tr.Transactions()) != 0 {
		t.Fatalf("expected published list cleared on sign-out")
	}
}

func TestStartDemoRejectedWhileSignedIn(t *testing.T) {
	ids := &fakeIdentity{ownerID: "user-1", signedIn: true}
	tr, _, _ := newTestTracker(t, ids)
	tr.Start(context.Background())
	defer tr.Close()

	if err := tr.StartDemo(); !errors.Is(err, ErrDemoUnavailable) {
		t.Fatalf("expected ErrDemoUnavailable, got %v", err)
	}
}

func TestOnTransactionsObservesPublishes(t *testing.T) {
	ids := &fakeIdentity{}
	tr, remoteStore, _ := newTestTracker(t, ids)
	tr.Start(context.Background())
	defer tr.Close()

	var published [][]core.Transaction
	unsubscribe := tr.OnTransactions(func(list []core.Transaction) {
		published = append(published, list)
	})

	ids.set("user-1", true)
	remoteStore.push([]core.Transaction{{ID: "r-1"}})
	unsubscribe()
	remoteStore.push([]core.Transaction{{ID: "r-2"}})

	if len(published) != 2 {
		t.Fatalf("expected 2 publishes before unsubscribe, got %d", len(published))
	}
	last := published[len(published)-1]
	if len(last) != 1 || last[0].ID != "r-1" {
		t.Fatalf("unexpected last publish: %+v", last)
	}
}
