package domain

import (
	"context"
	"math/big"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PoolStore persists liquidity pools.
//
// UpdateReserves is the single mutation entry point for a pool's reserves: it
// applies only when the stored version still equals expectedVersion, bumps the
// version, and returns the updated row. A lost race returns
// ErrConcurrencyConflict; the caller re-reads and retries, nothing is retried
// inside the store.
type PoolStore interface {
	Create(ctx context.Context, pool Pool) (Pool, error)
	GetByID(ctx context.Context, id string) (Pool, error)
	ListActive(ctx context.Context) ([]Pool, error)
	ListByPair(ctx context.Context, tokenX, tokenY string) ([]Pool, error)
	UpdateReserves(ctx context.Context, id string, newReserveA, newReserveB *big.Int, expectedVersion int64) (Pool, error)
	Deactivate(ctx context.Context, id string) error
}

// SwapMutation is the unit of work committed by a swap: one optimistic
// reserve update plus the trade record that realizes it. Both apply together
// or not at all.
type SwapMutation struct {
	PoolID          string
	ExpectedVersion int64
	NewReserveA     *big.Int
	NewReserveB     *big.Int
	Record          TradeRecord
}

// SwapStore commits swap mutations atomically.
type SwapStore interface {
	ApplySwap(ctx context.Context, m SwapMutation) error
}

// TradeStore persists executed trade records.
type TradeStore interface {
	GetByID(ctx context.Context, id string) (TradeRecord, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]TradeRecord, error)
	ListByPool(ctx context.Context, poolID string, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
