package amazon

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// AddToCart resolves the target product (by identifier or by search query)
// and adds it through the cart-add endpoint.
func (d *Driver) AddToCart(ctx context.Context, req driver.AddToCartRequest) (*types.Result, error) {
	if (req.Identifier == "") == (req.Query == "") {
		return types.Failure("exactly one of identifier or query must be supplied"), nil
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	asin := req.Identifier
	if asin == "" {
		resolved, err := d.firstASIN(ctx, req.Query)
		if err != nil {
			return types.Failuref("could not resolve product", err.Error()), nil
		}
		asin = resolved
	}

	title, err := d.productTitle(ctx, asin)
	if err != nil {
		return types.Failuref("could not load product page", err.Error()), nil
	}

	if _, err := d.fetch(ctx, "/gp/aws/cart/add.html", map[string]string{
		"ASIN.1":     asin,
		"Quantity.1": strconv.Itoa(quantity),
	}); err != nil {
		return types.Failuref("add to cart failed", err.Error()), nil
	}

	d.logger.Info("Added to cart",
		zap.String("asin", asin),
		zap.Int("quantity", quantity),
	)

	return types.Success(
		fmt.Sprintf("added %q to cart", title),
		map[string]interface{}{"title": title, "quantity": quantity},
	), nil
}

// ViewCart loads the cart page and extracts items and subtotal.
func (d *Driver) ViewCart(ctx context.Context) (*types.Result, error) {
	doc, err := d.fetch(ctx, "/gp/cart/view.html", nil)
	if err != nil {
		return types.Failuref("cart load failed", err.Error()), nil
	}

	items := extractCartItems(doc)
	subtotal := firstText(doc.Selection,
		"#sc-subtotal-amount-activecart .sc-price",
		"#sc-subtotal-amount-buybox .sc-price",
		".sc-subtotal .sc-price",
	)

	d.logger.Info("Cart viewed", zap.Int("items", len(items)))

	return types.Success(
		fmt.Sprintf("cart has %d items", len(items)),
		map[string]interface{}{"items": items, "subtotal": subtotal},
	), nil
}

func (d *Driver) productTitle(ctx context.Context, asin string) (string, error) {
	doc, err := d.fetch(ctx, "/dp/"+asin, nil)
	if err != nil {
		return "", err
	}

	title := firstText(doc.Selection, "#productTitle", "span#title", "h1")
	if title == "" {
		return "", fmt.Errorf("product title not found for %s", asin)
	}
	return title, nil
}

func extractCartItems(doc *goquery.Document) []map[string]interface{} {
	items := make([]map[string]interface{}, 0)

	doc.Find("div.sc-list-item[data-asin]").Each(func(_ int, sel *goquery.Selection) {
		asin, _ := sel.Attr("data-asin")
		if asin == "" {
			return
		}

		title := firstText(sel, ".sc-product-title", ".a-truncate-full", "span.a-list-item")
		if title == "" {
			return
		}

		quantity := 1
		if qstr, ok := sel.Attr("data-quantity"); ok {
			if q, err := strconv.Atoi(strings.TrimSpace(qstr)); err == nil && q > 0 {
				quantity = q
			}
		} else if qtext := firstText(sel, ".sc-quantity-textfield", "select[name='quantity'] option[selected]"); qtext != "" {
			if q, err := strconv.Atoi(strings.TrimSpace(qtext)); err == nil && q > 0 {
				quantity = q
			}
		}

		items = append(items, map[string]interface{}{
			"title":      title,
			"identifier": asin,
			"price":      firstText(sel, ".sc-product-price", ".a-price .a-offscreen"),
			"quantity":   quantity,
			"imageUrl":   firstAttr(sel, "src", "img.sc-product-image"),
		})
	})

	return items
}
