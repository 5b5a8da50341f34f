package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Gateway keeps snapshots in process memory. It backs local-only mode and tests.
type Gateway struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
	expiries  map[string][]domain.ProductExpiry
	saves     map[string]int
	failWith  error
	now       func() time.Time
}

func New() *Gateway {
	return &Gateway{
		snapshots: make(map[string]domain.Snapshot),
		expiries:  make(map[string][]domain.ProductExpiry),
		saves:     make(map[string]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FailWith makes every subsequent call fail with err wrapped as a
// persistence failure. Pass nil to recover.
func (g *Gateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

func (g *Gateway) Load(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.failWith != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", store.ErrPersistenceFailure, g.failWith)
	}
	snap, ok := g.snapshots[identity]
	if !ok {
		return domain.Snapshot{}, store.ErrNoRecord
	}
	return snap.Clone(), nil
}

func (g *Gateway) Save(ctx context.Context, identity string, snapshot domain.Snapshot) error {
	if err := auth.Require(ctx, identity); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWith != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistenceFailure, g.failWith)
	}
	saved := snapshot.Normalize().Clone()
	saved.UpdatedAt = g.now()
	g.snapshots[identity] = saved
	g.saves[identity]++
	return nil
}

func (g *Gateway) CreateEmpty(ctx context.Context, identity string) (domain.Snapshot, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return domain.Snapshot{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWith != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", store.ErrPersistenceFailure, g.failWith)
	}
	if existing, ok := g.snapshots[identity]; ok {
		return existing.Clone(), nil
	}
	empty := domain.EmptySnapshot()
	empty.UpdatedAt = g.now()
	g.snapshots[identity] = empty
	return empty.Clone(), nil
}

func (g *Gateway) LoadExpiries(ctx context.Context, identity string) ([]domain.ProductExpiry, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.failWith != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistenceFailure, g.failWith)
	}
	result := slices.Clone(g.expiries[identity])
	if result == nil {
		result = []domain.ProductExpiry{}
	}
	return result, nil
}

// PutExpiry stores an expiry record for identity, keeping expiry-date order.
func (g *Gateway) PutExpiry(identity string, expiry domain.ProductExpiry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	list := append(g.expiries[identity], expiry)
	slices.SortStableFunc(list, func(a, b domain.ProductExpiry) int {
		return a.ExpiryDate.Compare(b.ExpiryDate)
	})
	g.expiries[identity] = list
}

// Seed stores snap for identity without an auth check.
func (g *Gateway) Seed(identity string, snap domain.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[identity] = snap.Normalize().Clone()
}

func (g *Gateway) SaveCount(identity string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.saves[identity]
}

func (g *Gateway) Stored(identity string) (domain.Snapshot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	snap, ok := g.snapshots[identity]
	return snap.Clone(), ok
}
