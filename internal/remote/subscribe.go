package remote

import (
	"context"

	"soldi/internal/core"
)

// SubscribeRecent opens a live query over the owner's most recent limit
// transactions. The full recomputed list is delivered to onUpdate once at
// start and again after every observed change for that owner. The
// subscription runs until the returned unsubscribe function is called; on
// failure it reports through onError and stops. It never retries on its
// own, the caller decides whether to recreate it.
func (s *Store) SubscribeRecent(ctx context.Context, ownerID string, limit int, onUpdate func([]core.Transaction), onError func(error)) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "subscribe", Err: err}
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, &core.StoreError{Op: "subscribe", Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer conn.Release()

		deliver := func() bool {
			txs, err := s.queryRecent(subCtx, ownerID, limit)
			if err != nil {
				if subCtx.Err() == nil {
					onError(err)
				}
				return false
			}
			onUpdate(txs)
			return true
		}

		if !deliver() {
			return
		}

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					// Unsubscribed; not an error.
					return
				}
				onError(&core.StoreError{Op: "subscribe", Err: err})
				return
			}
			if notification.Payload != ownerID {
				continue
			}
			if !deliver() {
				return
			}
		}
	}()

	s.logger.Info("Opened live transaction subscription", "owner_id", ownerID, "limit", limit)
	return cancel, nil
}
