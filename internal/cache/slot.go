// Package cache implements the stale-while-revalidate layer in front of the
// remote store's bulk reads. Each Slot holds exactly one cached payload keyed
// by the owner that produced it: switching identities overwrites the slot
// rather than growing a multi-owner map, which is the intended trade-off for
// a single-profile tracker.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"soldi/internal/kv"
	"soldi/internal/metrics"
)

// DefaultTTL bounds how stale a cached bulk read may be served without a
// background refresh.
const DefaultTTL = 3 * time.Minute

type (
	// Entry is the persisted envelope around a cached payload. It is derived
	// data, never authoritative: a write for the owner deletes it.
	Entry[T any] struct {
		Payload  T         `json:"payload"`
		OwnerID  string    `json:"ownerId"`
		CachedAt time.Time `json:"cachedAt"`
	}

	// Fetch loads the live payload from the network.
	Fetch[T any] func(ctx context.Context) (T, error)

	// ReadOptions tune a single cache read.
	ReadOptions[T any] struct {
		TTL               time.Duration
		ForceRefresh      bool
		RevalidateIfFresh bool
		// OnRevalidated receives the live payload after a successful
		// background refresh; it runs on the revalidation goroutine.
		OnRevalidated func(T)
	}

	// Slot is a single-payload stale-while-revalidate cache persisted
	// through the local KV store.
	Slot[T any] struct {
		store  kv.Store
		key    string
		logger *slog.Logger
		group  singleflight.Group
		now    func() time.Time
	}
)

// IntegrityError marks a cached payload that could not be trusted: malformed
// JSON or a foreign owner. It is logged and treated as a miss, never
// propagated to callers.
type IntegrityError struct {
	Slot   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cache slot %s: %s", e.Slot, e.Reason)
}

func NewSlot[T any](store kv.Store, key string, logger *slog.Logger) *Slot[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slot[T]{store: store, key: key, logger: logger, now: time.Now}
}

// Read resolves a bulk read through the cache:
//
//  1. ForceRefresh always fetches and overwrites the slot.
//  2. A missing, malformed or foreign-owner entry is a miss and fetches.
//  3. Otherwise the cached payload returns immediately; if it is past the
//     TTL, or RevalidateIfFresh is set, a background fetch refreshes the
//     slot. Background errors are logged and swallowed.
func (s *Slot[T]) Read(ctx context.Context, ownerID string, opts ReadOptions[T], fetch Fetch[T]) (T, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if opts.ForceRefresh {
		metrics.CacheRead(s.key, "refresh")
		return s.fetchAndStore(ctx, ownerID, fetch)
	}

	entry, ok := s.load(ownerID)
	if !ok {
		metrics.CacheRead(s.key, "miss")
		return s.fetchAndStore(ctx, ownerID, fetch)
	}

	metrics.CacheRead(s.key, "hit")
	fresh := s.now().Sub(entry.CachedAt) < ttl
	if !fresh || opts.RevalidateIfFresh {
		s.revalidate(context.WithoutCancel(ctx), ownerID, fetch, opts.OnRevalidated)
	}
	return entry.Payload, nil
}

// Invalidate synchronously removes the slot. Called after every successful
// write so the TTL is never trusted across a mutation.
func (s *Slot[T]) Invalidate() error {
	return s.store.Delete(s.key)
}

func (s *Slot[T]) fetchAndStore(ctx context.Context, ownerID string, fetch Fetch[T]) (T, error) {
	payload, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.storeEntry(ownerID, payload)
	return payload, nil
}

// storeEntry persists the entry; persistence failures are logged and
// non-fatal, the caller already holds the live payload.
func (s *Slot[T]) storeEntry(ownerID string, payload T) {
	entry := Entry[T]{Payload: payload, OwnerID: ownerID, CachedAt: s.now()}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("marshal cache entry", "slot", s.key, "error", err)
		return
	}
	if err := s.store.Set(s.key, string(raw)); err != nil {
		s.logger.Warn("persist cache entry", "slot", s.key, "error", err)
	}
}

func (s *Slot[T]) load(ownerID string) (Entry[T], bool) {
	var entry Entry[T]

	raw, ok, err := s.store.Get(s.key)
	if err != nil {
		s.logger.Warn("read cache entry", "slot", s.key, "error", err)
		return entry, false
	}
	if !ok {
		return entry, false
	}

	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		ierr := &IntegrityError{Slot: s.key, Reason: "malformed payload"}
		metrics.CacheIntegrityFailure(s.key)
		s.logger.Warn("discarding cache entry", "error", ierr, "cause", err)
		_ = s.store.Delete(s.key)
		return entry, false
	}
	if entry.OwnerID != ownerID {
		ierr := &IntegrityError{Slot: s.key, Reason: "foreign owner"}
		metrics.CacheIntegrityFailure(s.key)
		s.logger.Debug("discarding cache entry", "error", ierr)
		return Entry[T]{}, false
	}
	return entry, true
}

func (s *Slot[T]) revalidate(ctx context.Context, ownerID string, fetch Fetch[T], onRevalidated func(T)) {
	go func() {
		_, err, _ := s.group.Do(ownerID, func() (interface{}, error) {
			payload, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			s.storeEntry(ownerID, payload)
			if onRevalidated != nil {
				onRevalidated(payload)
			}
			return payload, nil
		})
		if err != nil {
			metrics.CacheRevalidation(s.key, "error")
			s.logger.Warn("background revalidation failed", "slot", s.key, "error", err)
			return
		}
		metrics.CacheRevalidation(s.key, "ok")
	}()
}
