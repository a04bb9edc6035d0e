// Package remote is the authenticated transaction store: CRUD plus a live
// subscription against Postgres, always scoped by owner. Bulk reads go
// through the stale-while-revalidate cache; every successful mutation
// invalidates the owner's cache slots before returning.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"soldi/internal/amqp"
	"soldi/internal/cache"
	"soldi/internal/core"
	"soldi/internal/kv"
	"soldi/internal/metrics"
)

const (
	listCacheKey  = "cache:transactions"
	countCacheKey = "cache:count"

	// Channel mutations notify and subscriptions listen on. The payload is
	// the owner id, so a subscription only refetches for its own owner.
	notifyChannel = "soldi_transactions"
)

const transactionColumns = `id, owner_id, type, amount::text, description, category, date, created_at`

type (
	// FetchOptions tune a cache-aware bulk read.
	FetchOptions struct {
		TTL               time.Duration
		ForceRefresh      bool
		RevalidateIfFresh bool
		OnRevalidated     func([]core.Transaction)
	}

	// CountOptions tune the cache-aware count path.
	CountOptions struct {
		TTL               time.Duration
		ForceRefresh      bool
		RevalidateIfFresh bool
		OnRevalidated     func(int64)
	}

	// Store is the remote transaction store. The AMQP client is optional;
	// when absent, change events are simply not published.
	Store struct {
		pool      *pgxpool.Pool
		events    *amqp.Client
		listSlot  *cache.Slot[[]core.Transaction]
		countSlot *cache.Slot[int64]
		logger    *slog.Logger
	}
)

func New(pool *pgxpool.Pool, local kv.Store, events *amqp.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:      pool,
		events:    events,
		listSlot:  cache.NewSlot[[]core.Transaction](local, listCacheKey, logger),
		countSlot: cache.NewSlot[int64](local, countCacheKey, logger),
		logger:    logger,
	}
}

// Add validates the input, persists it with a server-assigned creation
// timestamp and invalidates the owner's cache slots.
func (s *Store) Add(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	query := `
		INSERT INTO transactions (id, owner_id, type, amount, description, category, date)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		RETURNING ` + transactionColumns
	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(), ownerID, in.Type, in.Amount.String(),
		strings.TrimSpace(in.Description), in.Category, core.NormalizeDate(in.Date))

	tx, err := scanTransaction(row)
	metrics.StoreOp("remote", "add", err)
	if err != nil {
		return core.Transaction{}, &core.StoreError{Op: "add", Err: err}
	}

	s.invalidate(ctx, tx.OwnerID)
	s.publish(ctx, amqp.ActionCreated, tx.ID, tx.OwnerID)
	return tx, nil
}

// Update merges only the given fields into the stored record. The id and
// owner are immutable.
func (s *Store) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Type != nil {
		set = append(set, "type = "+arg(*patch.Type))
	}
	if patch.Amount != nil {
		set = append(set, "amount = "+arg(patch.Amount.String())+"::numeric")
	}
	if patch.Description != nil {
		set = append(set, "description = "+arg(strings.TrimSpace(*patch.Description)))
	}
	if patch.Category != nil {
		set = append(set, "category = "+arg(*patch.Category))
	}
	if patch.Date != nil {
		set = append(set, "date = "+arg(core.NormalizeDate(*patch.Date)))
	}

	if len(set) == 0 {
		return s.getByID(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE transactions SET %s WHERE id = %s RETURNING %s`,
		strings.Join(set, ", "), arg(id), transactionColumns)

	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, args...))
	metrics.StoreOp("remote", "update", err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, &core.StoreError{Op: "update", Err: err}
	}

	s.invalidate(ctx, tx.OwnerID)
	s.publish(ctx, amqp.ActionUpdated, tx.ID, tx.OwnerID)
	return tx, nil
}

// Delete hard-removes the record; there are no tombstones.
func (s *Store) Delete(ctx context.Context, id string) error {
	var ownerID string
	err := s.pool.QueryRow(ctx, `DELETE FROM transactions WHERE id = $1 RETURNING owner_id`, id).Scan(&ownerID)
	metrics.StoreOp("remote", "delete", err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		return &core.StoreError{Op: "delete", Err: err}
	}

	s.invalidate(ctx, ownerID)
	s.publish(ctx, amqp.ActionDeleted, id, ownerID)
	return nil
}

// FetchAll returns the owner's full list ordered by creation time descending,
// resolved through the cache.
func (s *Store) FetchAll(ctx context.Context, ownerID string, opts FetchOptions) ([]core.Transaction, error) {
	return s.listSlot.Read(ctx, ownerID, cache.ReadOptions[[]core.Transaction]{
		TTL:               opts.TTL,
		ForceRefresh:      opts.ForceRefresh,
		RevalidateIfFresh: opts.RevalidateIfFresh,
		OnRevalidated:     opts.OnRevalidated,
	}, func(ctx context.Context) ([]core.Transaction, error) {
		return s.queryRecent(ctx, ownerID, 0)
	})
}

// TotalCount is the cheap count path, independent of a full fetch.
func (s *Store) TotalCount(ctx context.Context, ownerID string, opts CountOptions) (int64, error) {
	return s.countSlot.Read(ctx, ownerID, cache.ReadOptions[int64]{
		TTL:               opts.TTL,
		ForceRefresh:      opts.ForceRefresh,
		RevalidateIfFresh: opts.RevalidateIfFresh,
		OnRevalidated:     opts.OnRevalidated,
	}, func(ctx context.Context) (int64, error) {
		var count int64
		err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE owner_id = $1`, ownerID).Scan(&count)
		metrics.StoreOp("remote", "count", err)
		if err != nil {
			return 0, &core.StoreError{Op: "count", Err: err}
		}
		return count, nil
	})
}

func (s *Store) getByID(ctx context.Context, id string) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, &core.StoreError{Op: "get", Err: err}
	}
	return tx, nil
}

// queryRecent loads the owner's transactions ordered by created_at desc;
// limit 0 means unlimited.
func (s *Store) queryRecent(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	metrics.StoreOp("remote", "list", err)
	if err != nil {
		return nil, &core.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, &core.StoreError{Op: "list", Err: err}
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: "list", Err: err}
	}
	return txs, nil
}

// invalidate synchronously drops both cache slots and wakes listeners on the
// notify channel. The TTL is never trusted across a write.
func (s *Store) invalidate(ctx context.Context, ownerID string) {
	if err := s.listSlot.Invalidate(); err != nil {
		s.logger.Warn("invalidate list cache", "error", err)
	}
	if err := s.countSlot.Invalidate(); err != nil {
		s.logger.Warn("invalidate count cache", "error", err)
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, ownerID); err != nil {
		s.logger.Warn("notify listeners", "owner_id", ownerID, "error", err)
	}
}

func (s *Store) publish(ctx context.Context, action, id, ownerID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(action, id, ownerID)); err != nil {
		// The mutation already succeeded; event delivery is best effort.
		s.logger.Error("publish transaction event", "action", action, "transaction_id", id, "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		amount    string
		date      time.Time
		createdAt time.Time
	)
	if err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Type, &amount, &tx.Description, &tx.Category, &date, &createdAt); err != nil {
		return core.Transaction{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Amount = parsed
	tx.Date = core.NormalizeDate(date)
	tx.CreatedAt = createdAt
	return tx, nil
}
