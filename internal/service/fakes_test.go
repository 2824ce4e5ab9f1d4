package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/defidash/exchange/internal/domain"
)

// In-memory fakes for the domain ports. Each exposes injectable errors and
// records calls so tests can assert on side effects.

type fakePoolStore struct {
	mu    sync.Mutex
	pools map[string]domain.Pool

	createErr  error
	getErr     error
	listErr    error
	updateErr  error
	updateCall int

	// getHook, when set, rewrites the pool returned by GetByID. Tests use it
	// to move reserves between the quote and the locked re-read.
	getHook func(domain.Pool) domain.Pool
}

func newFakePoolStore(pools ...domain.Pool) *fakePoolStore {
	s := &fakePoolStore{pools: make(map[string]domain.Pool)}
	for _, p := range pools {
		s.pools[p.ID] = p
	}
	return s
}

func (s *fakePoolStore) Create(_ context.Context, pool domain.Pool) (domain.Pool, error) {
	if s.createErr != nil {
		return domain.Pool{}, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.ID] = pool
	return pool, nil
}

func (s *fakePoolStore) GetByID(_ context.Context, id string) (domain.Pool, error) {
	if s.getErr != nil {
		return domain.Pool{}, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	if s.getHook != nil {
		pool = s.getHook(pool)
	}
	return pool, nil
}

func (s *fakePoolStore) ListActive(_ context.Context) ([]domain.Pool, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Pool
	for _, p := range s.pools {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePoolStore) ListByPair(_ context.Context, tokenX, tokenY string) ([]domain.Pool, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Pool
	for _, p := range s.pools {
		if p.Active && p.HasPair(tokenX, tokenY) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePoolStore) UpdateReserves(_ context.Context, id string, newA, newB *big.Int, expectedVersion int64) (domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCall++
	if s.updateErr != nil {
		return domain.Pool{}, s.updateErr
	}
	pool, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	if pool.Version != expectedVersion {
		return domain.Pool{}, domain.ErrConcurrencyConflict
	}
	pool.ReserveA = new(big.Int).Set(newA)
	pool.ReserveB = new(big.Int).Set(newB)
	pool.Version++
	pool.UpdatedAt = time.Now().UTC()
	s.pools[id] = pool
	return pool, nil
}

func (s *fakePoolStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.pools[id]
	if !ok {
		return domain.ErrNotFound
	}
	pool.Active = false
	s.pools[id] = pool
	return nil
}

type fakeSwapStore struct {
	mu      sync.Mutex
	applied []domain.SwapMutation
	err     error

	// commitTo mirrors committed reserves into the pool store so follow-up
	// reads see them, matching the transactional store.
	commitTo *fakePoolStore
}

func (s *fakeSwapStore) ApplySwap(_ context.Context, m domain.SwapMutation) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.applied = append(s.applied, m)
	s.mu.Unlock()
	if s.commitTo != nil {
		s.commitTo.mu.Lock()
		pool := s.commitTo.pools[m.PoolID]
		pool.ReserveA = new(big.Int).Set(m.NewReserveA)
		pool.ReserveB = new(big.Int).Set(m.NewReserveB)
		pool.Version++
		s.commitTo.pools[m.PoolID] = pool
		s.commitTo.mu.Unlock()
	}
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	sets        []string
	invalidated []string
}

func (c *fakeCache) Set(_ context.Context, pool domain.Pool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, pool.ID)
	return nil
}

func (c *fakeCache) Get(_ context.Context, _ string) (domain.Pool, error) {
	return domain.Pool{}, domain.ErrNotFound
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	return nil
}

type fakeLocks struct {
	mu       sync.Mutex
	acquired []string
	err      error
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func() {}, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(_ context.Context, _ string, _ string, _ int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}
