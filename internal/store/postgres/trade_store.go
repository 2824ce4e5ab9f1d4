package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defidash/exchange/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Records are
// written by SwapStore inside the swap transaction; this store only reads
// and prunes them.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, user_id, pool_id, token_in, token_out,
	amount_in::text, amount_out::text, status, created_at`

func scanTrade(row rowScanner) (domain.TradeRecord, error) {
	var (
		t                   domain.TradeRecord
		amountIn, amountOut string
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.PoolID, &t.TokenIn, &t.TokenOut,
		&amountIn, &amountOut, &t.Status, &t.CreatedAt,
	); err != nil {
		return domain.TradeRecord{}, err
	}

	var err error
	if t.AmountIn, err = parseAmount(amountIn); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade %s amount_in: %w", t.ID, err)
	}
	if t.AmountOut, err = parseAmount(amountOut); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade %s amount_out: %w", t.ID, err)
	}
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetByID returns the trade record with the given id, or domain.ErrNotFound.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	const query = `SELECT ` + tradeSelectCols + ` FROM trade_records WHERE id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByUser returns trades for a user with pagination and optional time
// filtering, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(ctx, "user_id", userID, opts)
}

// ListByPool returns trades against a pool with pagination and optional time
// filtering, newest first.
func (s *TradeStore) ListByPool(ctx context.Context, poolID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return s.list(ctx, "pool_id", poolID, opts)
}

func (s *TradeStore) list(ctx context.Context, col, val string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trade_records WHERE ` + col + ` = $1`
	args := []any{val}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by %s: %w", col, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by %s: %w", col, err)
	}
	return trades, nil
}

// ListBefore returns all trades created strictly before the given time, in
// chronological order (for archiving).
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	const query = `SELECT ` + tradeSelectCols + ` FROM trade_records
		WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteBefore deletes all trades created before the given time. Returns the
// number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_records WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
