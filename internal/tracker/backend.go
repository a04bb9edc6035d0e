package tracker

import (
	"context"
	"errors"
	"time"

	"soldi/internal/core"
	"soldi/internal/demo"
	"soldi/internal/remote"
)

// ErrInactive is returned by mutating operations while no backend is active
// (identity still resolving, or anonymous without demo mode).
var ErrInactive = errors.New("no active transaction backend")

// RemoteStore is the slice of the remote store the tracker drives.
type RemoteStore interface {
	Add(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
	FetchAll(ctx context.Context, ownerID string, opts remote.FetchOptions) ([]core.Transaction, error)
	TotalCount(ctx context.Context, ownerID string, opts remote.CountOptions) (int64, error)
	SubscribeRecent(ctx context.Context, ownerID string, limit int, onUpdate func([]core.Transaction), onError func(error)) (func(), error)
}

// backend is the capability union behind the facade. One implementation is
// selected per identity-state transition; operations never branch on state.
type backend interface {
	add(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error)
	delete(ctx context.Context, id string) error
	fetchAll(ctx context.Context, opts FetchOptions) ([]core.Transaction, error)
	count(ctx context.Context) (int64, error)
	stats(ctx context.Context, from, to time.Time) (core.Stats, error)
	canAdd(ctx context.Context) (bool, error)
	maxTransactions() int
	close()
}

// inertBackend serves the Initializing and Inert states: reads come back
// empty, mutations fail.
type inertBackend struct{}

func (inertBackend) add(context.Context, core.TransactionInput) (core.Transaction, error) {
	return core.Transaction{}, ErrInactive
}

func (inertBackend) update(context.Context, string, core.TransactionPatch) (core.Transaction, error) {
	return core.Transaction{}, ErrInactive
}

func (inertBackend) delete(context.Context, string) error { return ErrInactive }

func (inertBackend) fetchAll(context.Context, FetchOptions) ([]core.Transaction, error) {
	return []core.Transaction{}, nil
}

func (inertBackend) count(context.Context) (int64, error) { return 0, nil }

func (inertBackend) stats(_ context.Context, from, to time.Time) (core.Stats, error) {
	return core.CalculateStats(nil, from, to), nil
}

func (inertBackend) canAdd(context.Context) (bool, error) { return false, nil }

func (inertBackend) maxTransactions() int { return 0 }

func (inertBackend) close() {}

// remoteBackend binds the remote store to one owner for the lifetime of a
// RemoteActive state. onUpdate republishes data refreshed by background
// revalidation.
type remoteBackend struct {
	store       RemoteStore
	ownerID     string
	onUpdate    func([]core.Transaction)
	unsubscribe func()
}

func (b *remoteBackend) add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	return b.store.Add(ctx, b.ownerID, in)
}

func (b *remoteBackend) update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	return b.store.Update(ctx, id, patch)
}

func (b *remoteBackend) delete(ctx context.Context, id string) error {
	return b.store.Delete(ctx, id)
}

func (b *remoteBackend) fetchAll(ctx context.Context, opts FetchOptions) ([]core.Transaction, error) {
	return b.store.FetchAll(ctx, b.ownerID, remote.FetchOptions{
		TTL:               opts.TTL,
		ForceRefresh:      opts.ForceRefresh,
		RevalidateIfFresh: opts.RevalidateIfFresh,
		OnRevalidated:     b.onUpdate,
	})
}

func (b *remoteBackend) count(ctx context.Context) (int64, error) {
	return b.store.TotalCount(ctx, b.ownerID, remote.CountOptions{})
}

func (b *remoteBackend) stats(ctx context.Context, from, to time.Time) (core.Stats, error) {
	// Stats always aggregate the full live list; a stale window here would
	// contradict what the subscription already delivered.
	txs, err := b.store.FetchAll(ctx, b.ownerID, remote.FetchOptions{ForceRefresh: true})
	if err != nil {
		return core.Stats{}, err
	}
	return core.CalculateStats(txs, from, to), nil
}

func (b *remoteBackend) canAdd(context.Context) (bool, error) { return true, nil }

func (b *remoteBackend) maxTransactions() int { return 0 }

func (b *remoteBackend) close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// demoBackend wraps the synchronous local store.
type demoBackend struct {
	store *demo.Store
}

func (b *demoBackend) add(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	return b.store.Add(in)
}

func (b *demoBackend) update(_ context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	return b.store.Update(id, patch)
}

func (b *demoBackend) delete(_ context.Context, id string) error {
	return b.store.Delete(id)
}

func (b *demoBackend) fetchAll(context.Context, FetchOptions) ([]core.Transaction, error) {
	return b.store.List(), nil
}

func (b *demoBackend) count(context.Context) (int64, error) {
	return int64(b.store.Count()), nil
}

func (b *demoBackend) stats(_ context.Context, from, to time.Time) (core.Stats, error) {
	return b.store.Stats(from, to), nil
}

func (b *demoBackend) canAdd(context.Context) (bool, error) {
	return b.store.CanAdd(), nil
}

func (b *demoBackend) maxTransactions() int { return demo.MaxTransactions }

func (b *demoBackend) close() {}
