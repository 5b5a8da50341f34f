package cache

import (
	"context"
	"log"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Gateway serves expiry side data from a cache in front of another gateway.
// Snapshot calls pass straight through.
type Gateway struct {
	store.Gateway
	cache ExpiryCache
	ttl   time.Duration
}

func NewGateway(inner store.Gateway, cache ExpiryCache, ttl time.Duration) *Gateway {
	if cache == nil {
		cache = NoopExpiryCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Gateway{Gateway: inner, cache: cache, ttl: ttl}
}

func expiryKey(identity string) string {
	return "invex:expiries:" + identity
}

func (g *Gateway) LoadExpiries(ctx context.Context, identity string) ([]domain.ProductExpiry, error) {
	if err := auth.Require(ctx, identity); err != nil {
		return nil, err
	}

	key := expiryKey(identity)
	cached, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[cache] WARN: get %s: %v", key, err)
	}
	if ok {
		return cached, nil
	}

	expiries, err := g.Gateway.LoadExpiries(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, expiries, g.ttl); err != nil {
		log.Printf("[cache] WARN: set %s: %v", key, err)
	}
	return expiries, nil
}

// InvalidateExpiries drops the cached list so the next load hits the store.
func (g *Gateway) InvalidateExpiries(ctx context.Context, identity string) error {
	return g.cache.Delete(ctx, expiryKey(identity))
}
