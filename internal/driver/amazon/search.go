package amazon

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// Search loads the search results page and extracts the top listings.
func (d *Driver) Search(ctx context.Context, query string) (*types.Result, error) {
	doc, err := d.fetch(ctx, "/s", map[string]string{"k": query})
	if err != nil {
		return types.Failuref("search failed", err.Error()), nil
	}

	results := extractSearchResults(doc)
	d.logger.Info("Search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)

	return types.Success(
		fmt.Sprintf("found %d results for %q", len(results), query),
		map[string]interface{}{"results": results},
	), nil
}

// firstASIN returns the identifier of the top search result for query.
func (d *Driver) firstASIN(ctx context.Context, query string) (string, error) {
	doc, err := d.fetch(ctx, "/s", map[string]string{"k": query})
	if err != nil {
		return "", err
	}

	results := extractSearchResults(doc)
	if len(results) == 0 {
		return "", fmt.Errorf("no results found for %q", query)
	}
	return results[0]["identifier"].(string), nil
}

func extractSearchResults(doc *goquery.Document) []map[string]interface{} {
	results := make([]map[string]interface{}, 0, maxSearchResults)

	doc.Find("div[data-component-type='s-search-result']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		asin, _ := sel.Attr("data-asin")
		if asin == "" {
			return true
		}

		title := firstText(sel, "h2 a span", "h2 span", "h2")
		if title == "" {
			return true
		}

		entry := map[string]interface{}{
			"title":      title,
			"identifier": asin,
			"price":      firstText(sel, ".a-price .a-offscreen", ".a-price-whole"),
			"rating":     strings.TrimSpace(firstText(sel, "span.a-icon-alt")),
			"imageUrl":   firstAttr(sel, "src", "img.s-image"),
		}

		results = append(results, entry)
		return len(results) < maxSearchResults
	})

	return results
}
