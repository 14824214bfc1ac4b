package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// ForDriver builds the retail tool catalog over a capability driver.
// Handlers are pure dispatch shims; all page logic lives in the driver.
func ForDriver(d driver.Driver) *Registry {
	r := New()

	mustRegister(r, Tool{
		Name:        "search_amazon",
		Description: "Search Amazon for products and return the top results",
		Schema: types.ObjectSchema(map[string]types.Property{
			"query": {Type: "string", Description: "Product search query"},
		}, "query"),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			query, _ := types.GetString(args, "query")
			if strings.TrimSpace(query) == "" {
				return types.Failure("query must not be empty"), nil
			}
			return d.Search(ctx, query)
		},
	})

	mustRegister(r, Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart by ASIN or by search query",
		Schema: types.ObjectSchema(map[string]types.Property{
			"identifier": {Type: "string", Description: "Product ASIN"},
			"query":      {Type: "string", Description: "Search query; the first result is added"},
			"quantity":   {Type: "integer", Description: "Quantity to add", Default: 1},
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			identifier, _ := types.GetString(args, "identifier")
			query, _ := types.GetString(args, "query")
			if (identifier == "") == (query == "") {
				return types.Failure("exactly one of identifier or query must be supplied"), nil
			}

			quantity := types.GetIntDefault(args, "quantity", 1)
			if quantity < 1 {
				return types.Failure("quantity must be at least 1"), nil
			}

			return d.AddToCart(ctx, driver.AddToCartRequest{
				Identifier: identifier,
				Query:      query,
				Quantity:   quantity,
			})
		},
	})

	mustRegister(r, Tool{
		Name:        "view_cart",
		Description: "List the current cart contents and subtotal",
		Schema:      types.ObjectSchema(map[string]types.Property{}),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			return d.ViewCart(ctx)
		},
	})

	mustRegister(r, Tool{
		Name:        "check_login",
		Description: "Check whether the browsing session is logged in to Amazon",
		Schema:      types.ObjectSchema(map[string]types.Property{}),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			return d.CheckLogin(ctx)
		},
	})

	return r
}

// mustRegister panics on registration failure. The catalog is static, so a
// failure here is a programming error caught at wiring time.
func mustRegister(r *Registry, t Tool) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("tool registration failed: %v", err))
	}
}
