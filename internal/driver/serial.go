package driver

import (
	"context"
	"sync"

	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// Serialized wraps a Driver with a mutex so concurrently dispatched tool
// calls never interleave navigation and extraction against the shared page
// context. The underlying driver owns a single browsing context; two
// in-flight operations against it would corrupt each other's state.
type Serialized struct {
	mu    sync.Mutex
	inner Driver
}

// Serialize wraps a driver with run-to-completion semantics.
func Serialize(inner Driver) *Serialized {
	return &Serialized{inner: inner}
}

func (s *Serialized) Search(ctx context.Context, query string) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Search(ctx, query)
}

func (s *Serialized) AddToCart(ctx context.Context, req AddToCartRequest) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.AddToCart(ctx, req)
}

func (s *Serialized) ViewCart(ctx context.Context) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ViewCart(ctx)
}

func (s *Serialized) CheckLogin(ctx context.Context) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.CheckLogin(ctx)
}

func (s *Serialized) Cookies(ctx context.Context) ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Cookies(ctx)
}

func (s *Serialized) SetCookies(ctx context.Context, cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SetCookies(ctx, cookies)
}
