// Package amazon implements the capability driver contract against the
// retail site over plain HTTP: browser-like requests, cookie continuity,
// and goquery extraction with layered selector fallbacks.
package amazon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
	"github.com/cartbridge/cartbridge/internal/infrastructure/resilience"
)

// maxSearchResults bounds the search listing to a small fixed count.
const maxSearchResults = 5

// Config holds driver configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Driver drives the retail site over HTTP. It owns the cookie continuity
// of the browsing context: cookies are captured from every response and
// replayed on every request, so an externally-established login session
// survives as long as its tokens do.
type Driver struct {
	client  *resty.Client
	baseURL *url.URL
	logger  *logging.Logger
	breaker *resilience.Breaker

	mu      sync.RWMutex
	cookies map[string]driver.Cookie // keyed by domain|path|name
}

// New creates a driver against cfg.BaseURL.
func New(cfg Config, logger *logging.Logger) (*Driver, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeaders(map[string]string{
			"User-Agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
		})

	breaker := resilience.New("amazon", resilience.Settings{
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Site breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Driver{
		client:  client,
		baseURL: base,
		logger:  logger,
		breaker: breaker,
		cookies: make(map[string]driver.Cookie),
	}, nil
}

// fetch performs one page load and returns the parsed document. Cookie
// state is replayed on the request and refreshed from the response.
func (d *Driver) fetch(ctx context.Context, path string, query map[string]string) (*goquery.Document, error) {
	req := d.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	d.mu.RLock()
	for _, c := range d.cookies {
		req.SetCookie(&http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	d.mu.RUnlock()

	// Transport failures and server errors feed the breaker; a 4xx is a
	// site answer, not unavailability, and does not count against it.
	var resp *resty.Response
	if berr := d.breaker.Execute(func() error {
		r, err := req.Get(path)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode() >= 500 {
			return fmt.Errorf("HTTP %d", r.StatusCode())
		}
		return nil
	}); berr != nil {
		return nil, fmt.Errorf("page load failed for %s: %w", path, berr)
	}

	d.ingest(resp.Cookies())

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, fmt.Errorf("page load failed for %s: HTTP %d", path, status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// ingest merges Set-Cookie results into the driver's cookie state.
func (d *Driver) ingest(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = d.baseURL.Hostname()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		key := domain + "|" + path + "|" + c.Name

		if c.MaxAge < 0 {
			delete(d.cookies, key)
			continue
		}

		var expires int64
		switch {
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
		case !c.Expires.IsZero():
			expires = c.Expires.Unix()
		}

		d.cookies[key] = driver.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: sameSiteName(c.SameSite),
		}
	}
}

// Cookies returns a snapshot of the live token set.
func (d *Driver) Cookies(ctx context.Context) ([]driver.Cookie, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]driver.Cookie, 0, len(d.cookies))
	for _, c := range d.cookies {
		out = append(out, c)
	}
	return out, nil
}

// SetCookies applies persisted tokens to the browsing context.
func (d *Driver) SetCookies(ctx context.Context, cookies []driver.Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		d.cookies[c.Domain+"|"+path+"|"+c.Name] = c
	}

	d.logger.Debug("Cookies applied to driver context", zap.Int("count", len(cookies)))
	return nil
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if found := sel.Find(s).First(); found.Length() > 0 {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first selector that matches.
func firstAttr(sel *goquery.Selection, attr string, selectors ...string) string {
	for _, s := range selectors {
		if found := sel.Find(s).First(); found.Length() > 0 {
			if val, ok := found.Attr(attr); ok && val != "" {
				return val
			}
		}
	}
	return ""
}
