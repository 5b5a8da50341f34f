package cache

import (
	"context"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
)

type ExpiryCache interface {
	Get(ctx context.Context, key string) ([]domain.ProductExpiry, bool, error)
	Set(ctx context.Context, key string, value []domain.ProductExpiry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopExpiryCache struct{}

func (NoopExpiryCache) Get(_ context.Context, _ string) ([]domain.ProductExpiry, bool, error) {
	return nil, false, nil
}

func (NoopExpiryCache) Set(_ context.Context, _ string, _ []domain.ProductExpiry, _ time.Duration) error {
	return nil
}

func (NoopExpiryCache) Delete(_ context.Context, _ string) error {
	return nil
}
