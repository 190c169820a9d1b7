package cache

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

var ErrCacheMiss = errors.New("cart not in cache")

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}
