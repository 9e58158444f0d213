package backend

import (
	"context"
	"time"

	"janpos/terminal/internal/domain"
)

// ProductCache is a read-through cache of canonical products keyed by JAN
// code. A hit skips both backend endpoints entirely.
type ProductCache interface {
	Get(ctx context.Context, code string) (*domain.Product, bool, error)
	Set(ctx context.Context, code string, product *domain.Product, ttl time.Duration) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ string, _ *domain.Product, _ time.Duration) error {
	return nil
}
