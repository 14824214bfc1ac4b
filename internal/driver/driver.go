// Package driver defines the capability boundary to the retail site.
//
// The relay core depends only on this contract; the concrete page
// navigation and extraction live behind it.
package driver

import (
	"context"

	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// Cookie is one durable authentication token.
//
// Expires is absolute seconds since epoch; zero or negative means a
// session-only cookie with no stored expiry.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	SameSite string `json:"sameSite,omitempty"`
}

// SessionOnly reports whether the cookie carries no stored expiry.
func (c Cookie) SessionOnly() bool {
	return c.Expires <= 0
}

// AddToCartRequest selects a product either by identifier (ASIN) or by
// search query. Exactly one of the two must be set.
type AddToCartRequest struct {
	Identifier string
	Query      string
	Quantity   int
}

// Driver performs page operations against the retail site.
//
// Every call may block for the duration of a real page load and honors the
// supplied context deadline. Operation-level failure (element not found,
// navigation timeout, ambiguous page state) is reported inside the Result,
// never as a returned error; the error return is reserved for a driver that
// cannot operate at all.
type Driver interface {
	// Search returns the top results for a query: title, identifier,
	// price, rating, image URL.
	Search(ctx context.Context, query string) (*types.Result, error)

	// AddToCart puts a product into the cart and reports title and
	// quantity added.
	AddToCart(ctx context.Context, req AddToCartRequest) (*types.Result, error)

	// ViewCart returns the cart items and subtotal.
	ViewCart(ctx context.Context) (*types.Result, error)

	// CheckLogin probes an authenticated-only page affordance.
	CheckLogin(ctx context.Context) (*types.Result, error)

	// Cookies returns the live token set from the driver's context.
	Cookies(ctx context.Context) ([]Cookie, error)

	// SetCookies applies persisted tokens to the driver's context.
	SetCookies(ctx context.Context, cookies []Cookie) error
}
