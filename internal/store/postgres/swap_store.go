package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defidash/exchange/internal/domain"
)

// SwapStore implements domain.SwapStore using PostgreSQL.
//
// ApplySwap commits the reserve mutation and the trade record in a single
// transaction so a partially applied trade can never be observed.
type SwapStore struct {
	pool *pgxpool.Pool
}

// NewSwapStore creates a new SwapStore backed by the given connection pool.
func NewSwapStore(pool *pgxpool.Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// ApplySwap updates the pool's reserves under an optimistic version check and
// inserts the trade record, atomically. A lost version race returns
// domain.ErrConcurrencyConflict (the caller re-quotes and retries); any other
// write failure rolls the transaction back and is reported as a persistence
// failure with nothing applied.
func (s *SwapStore) ApplySwap(ctx context.Context, m domain.SwapMutation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin swap tx: %w: %w", domain.ErrPersistenceFailure, err)
	}
	defer tx.Rollback(ctx)

	const updateQuery = `
		UPDATE pools
		SET reserve_a = $2::numeric, reserve_b = $3::numeric,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4 AND active`

	tag, err := tx.Exec(ctx, updateQuery,
		m.PoolID, m.NewReserveA.String(), m.NewReserveB.String(), m.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: swap reserve update %s: %w: %w", m.PoolID, domain.ErrPersistenceFailure, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM pools WHERE id = $1 AND active)", m.PoolID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: swap conflict check %s: %w: %w", m.PoolID, domain.ErrPersistenceFailure, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConcurrencyConflict
	}

	const insertQuery = `
		INSERT INTO trade_records (id, user_id, pool_id, token_in, token_out, amount_in, amount_out, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9)`

	rec := m.Record
	if _, err := tx.Exec(ctx, insertQuery,
		rec.ID, rec.UserID, rec.PoolID, rec.TokenIn, rec.TokenOut,
		rec.AmountIn.String(), rec.AmountOut.String(), rec.Status, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: swap record insert %s: %w: %w", rec.ID, domain.ErrPersistenceFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit swap tx: %w: %w", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SwapStore = (*SwapStore)(nil)
