package cart

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// nopCache always misses. Used when no Redis is configured.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (nopCache) Set(context.Context, string, *domain.Cart) error   { return nil }
func (nopCache) Delete(context.Context, string) error              { return nil }
