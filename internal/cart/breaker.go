package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// BreakerCache wraps a CartCache in a circuit breaker so a Redis outage
// degrades to repository reads instead of stalling every cart call on a dead
// connection. A cache miss is not a failure and never trips the breaker.
type BreakerCache struct {
	inner CartCache
	cb    *gobreaker.CircuitBreaker[*domain.Cart]
}

func NewBreakerCache(inner CartCache) *BreakerCache {
	settings := gobreaker.Settings{
		Name:    "cart-cache",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	}
	return &BreakerCache{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*domain.Cart](settings),
	}
}

func (b *BreakerCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := b.cb.Execute(func() (*domain.Cart, error) {
		return b.inner.Get(ctx, userID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// Open breaker reads as a miss; the caller falls through to the
		// repository.
		return nil, ErrCacheMiss
	}
	return cart, err
}

func (b *BreakerCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.inner.Set(ctx, userID, cart)
	})
	return err
}

func (b *BreakerCache) Delete(ctx context.Context, userID string) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.inner.Delete(ctx, userID)
	})
	return err
}
