package mq

import "context"

// FetchLimiter bounds how many fetched messages may be in flight at once.
// The weighted consumer acquires a token before fetching and releases it
// when the handler finishes, so the broker read rate follows downstream
// processing capacity instead of running ahead of it.
type FetchLimiter interface {
	// Acquire blocks until a token is available or the context is done
	Acquire(ctx context.Context) error

	// Release returns a token to the pool
	Release()
}

// TokenLimiter is a channel-based FetchLimiter with a fixed token count.
type TokenLimiter struct {
	tokens chan struct{}
}

var _ FetchLimiter = (*TokenLimiter)(nil)

// NewTokenLimiter creates a limiter with a fixed capacity.
// A capacity <= 0 is treated as 1.
func NewTokenLimiter(size int) *TokenLimiter {
	if size <= 0 {
		size = 1
	}
	tokens := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		tokens <- struct{}{}
	}
	return &TokenLimiter{tokens: tokens}
}

// Acquire blocks until a token is available or ctx is canceled.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

// Release returns a token to the limiter. Releasing more than was
// acquired is a no-op.
func (l *TokenLimiter) Release() {
	select {
	case l.tokens <- struct{}{}:
	default:
	}
}
