package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defidash/exchange/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
//
// Reserves are stored as NUMERIC(78,0) and moved across the wire as text so
// arbitrary-precision integers round-trip without loss.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

const poolSelectCols = `id, token_a, token_b, reserve_a::text, reserve_b::text,
	fee_rate_bps, creator_id, version, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (domain.Pool, error) {
	var (
		p                  domain.Pool
		reserveA, reserveB string
	)
	if err := row.Scan(
		&p.ID, &p.TokenA, &p.TokenB, &reserveA, &reserveB,
		&p.FeeRateBps, &p.CreatorID, &p.Version, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Pool{}, err
	}

	var err error
	if p.ReserveA, err = parseAmount(reserveA); err != nil {
		return domain.Pool{}, fmt.Errorf("pool %s reserve_a: %w", p.ID, err)
	}
	if p.ReserveB, err = parseAmount(reserveB); err != nil {
		return domain.Pool{}, fmt.Errorf("pool %s reserve_b: %w", p.ID, err)
	}
	return p, nil
}

func scanPoolRows(rows pgx.Rows) ([]domain.Pool, error) {
	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// parseAmount converts a NUMERIC(78,0) rendered as text into a big integer.
func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric %q", s)
	}
	return n, nil
}

// Create inserts a new pool row and returns it with database-assigned
// timestamps and the initial version.
func (s *PoolStore) Create(ctx context.Context, pool domain.Pool) (domain.Pool, error) {
	const query = `
		INSERT INTO pools (id, token_a, token_b, reserve_a, reserve_b, fee_rate_bps, creator_id)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
		RETURNING ` + poolSelectCols

	created, err := scanPool(s.pool.QueryRow(ctx, query,
		pool.ID, pool.TokenA, pool.TokenB,
		pool.ReserveA.String(), pool.ReserveB.String(),
		pool.FeeRateBps, pool.CreatorID,
	))
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: create pool: %w", err)
	}
	return created, nil
}

// GetByID returns the pool with the given id, or domain.ErrNotFound.
func (s *PoolStore) GetByID(ctx context.Context, id string) (domain.Pool, error) {
	const query = `SELECT ` + poolSelectCols + ` FROM pools WHERE id = $1`

	p, err := scanPool(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pool{}, domain.ErrNotFound
		}
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", id, err)
	}
	return p, nil
}

// ListActive returns all active pools ordered by id.
func (s *PoolStore) ListActive(ctx context.Context) ([]domain.Pool, error) {
	const query = `SELECT ` + poolSelectCols + ` FROM pools WHERE active ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active pools: %w", err)
	}
	defer rows.Close()

	pools, err := scanPoolRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active pools: %w", err)
	}
	return pools, nil
}

// ListByPair returns all active pools holding both tokens, in either slot,
// ordered by id.
func (s *PoolStore) ListByPair(ctx context.Context, tokenX, tokenY string) ([]domain.Pool, error) {
	const query = `SELECT ` + poolSelectCols + ` FROM pools
		WHERE active
		  AND ((token_a = $1 AND token_b = $2) OR (token_a = $2 AND token_b = $1))
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, tokenX, tokenY)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools by pair: %w", err)
	}
	defer rows.Close()

	pools, err := scanPoolRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pools by pair: %w", err)
	}
	return pools, nil
}

// UpdateReserves applies an optimistic reserve write: the update only lands
// when the stored version still equals expectedVersion. A lost race returns
// domain.ErrConcurrencyConflict; a missing pool returns domain.ErrNotFound.
func (s *PoolStore) UpdateReserves(ctx context.Context, id string, newReserveA, newReserveB *big.Int, expectedVersion int64) (domain.Pool, error) {
	const query = `
		UPDATE pools
		SET reserve_a = $2::numeric, reserve_b = $3::numeric,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4 AND active
		RETURNING ` + poolSelectCols

	p, err := scanPool(s.pool.QueryRow(ctx, query,
		id, newReserveA.String(), newReserveB.String(), expectedVersion,
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, fmt.Errorf("postgres: update reserves %s: %w", id, err)
	}

	// Zero rows: distinguish a lost race from a missing pool.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pools WHERE id = $1 AND active)", id,
	).Scan(&exists); err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: update reserves %s: %w", id, err)
	}
	if !exists {
		return domain.Pool{}, domain.ErrNotFound
	}
	return domain.Pool{}, domain.ErrConcurrencyConflict
}

// Deactivate retires a pool. Deactivated pools are excluded from routing and
// refuse further reserve writes.
func (s *PoolStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pools SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("postgres: deactivate pool %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
