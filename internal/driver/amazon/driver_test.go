package amazon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
)

const searchPage = `<!DOCTYPE html><html><body>
<div class="s-main-slot">
  <div data-component-type="s-search-result" data-asin="B0CABLE01">
    <h2><a href="/dp/B0CABLE01"><span>USB-C Cable 2m Braided</span></a></h2>
    <span class="a-price"><span class="a-offscreen">$9.99</span></span>
    <span class="a-icon-alt">4.7 out of 5 stars</span>
    <img class="s-image" src="https://img.example/cable.jpg"/>
  </div>
  <div data-component-type="s-search-result" data-asin="B0CABLE02">
    <h2><span>USB-C Cable Short</span></h2>
    <span class="a-price"><span class="a-offscreen">$5.49</span></span>
  </div>
  <div data-component-type="s-search-result" data-asin="">
    <h2><span>Sponsored placeholder</span></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0CABLE03">
    <h2><span>Cable Three</span></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0CABLE04">
    <h2><span>Cable Four</span></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0CABLE05">
    <h2><span>Cable Five</span></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0CABLE06">
    <h2><span>Cable Six Should Be Cut</span></h2>
  </div>
</div>
</body></html>`

const productPage = `<!DOCTYPE html><html><body>
<span id="productTitle"> USB-C Cable 2m Braided </span>
</body></html>`

const cartPage = `<!DOCTYPE html><html><body>
<div class="sc-list-item" data-asin="B0CABLE01" data-quantity="2">
  <span class="sc-product-title">USB-C Cable 2m Braided</span>
  <span class="sc-product-price">$9.99</span>
  <img class="sc-product-image" src="https://img.example/cable.jpg"/>
</div>
<div id="sc-subtotal-amount-activecart"><span class="sc-price">$19.98</span></div>
</body></html>`

const homeLoggedIn = `<!DOCTYPE html><html><body>
<a id="nav-link-accountList"><span id="nav-link-accountList-nav-line-1">Hello, Pat</span></a>
</body></html>`

const homeLoggedOut = `<!DOCTYPE html><html><body>
<a id="nav-link-accountList"><span id="nav-link-accountList-nav-line-1">Hello, sign in</span></a>
</body></html>`

type fixtureServer struct {
	*httptest.Server
	loggedIn bool
	addCalls []string
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{loggedIn: true}

	mux := http.NewServeMux()
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session-id", Value: "fixture-session", Path: "/"})
		w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/dp/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(productPage))
	})
	mux.HandleFunc("/gp/aws/cart/add.html", func(w http.ResponseWriter, r *http.Request) {
		fs.addCalls = append(fs.addCalls, r.URL.RawQuery)
		w.Write([]byte("<html><body>Added to Cart</body></html>"))
	})
	mux.HandleFunc("/gp/cart/view.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cartPage))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if fs.loggedIn {
			w.Write([]byte(homeLoggedIn))
		} else {
			w.Write([]byte(homeLoggedOut))
		}
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestDriver(t *testing.T, baseURL string) *Driver {
	t.Helper()
	d, err := New(Config{BaseURL: baseURL, Timeout: 5 * time.Second}, logging.NewNop())
	if err != nil {
		t.Fatalf("New driver failed: %v", err)
	}
	return d
}

func TestSearchExtraction(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)

	result, err := d.Search(context.Background(), "usb cable")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("Search failed: %s", result.Message)
	}

	results := result.Data["results"].([]map[string]interface{})
	if len(results) != maxSearchResults {
		t.Fatalf("got %d results, want %d (bounded)", len(results), maxSearchResults)
	}

	first := results[0]
	if first["title"] != "USB-C Cable 2m Braided" {
		t.Errorf("title = %v", first["title"])
	}
	if first["identifier"] != "B0CABLE01" {
		t.Errorf("identifier = %v", first["identifier"])
	}
	if first["price"] != "$9.99" {
		t.Errorf("price = %v", first["price"])
	}
	if first["rating"] != "4.7 out of 5 stars" {
		t.Errorf("rating = %v", first["rating"])
	}
	if first["imageUrl"] != "https://img.example/cable.jpg" {
		t.Errorf("imageUrl = %v", first["imageUrl"])
	}
}

func TestSearchSkipsEmptyASIN(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)

	result, _ := d.Search(context.Background(), "usb cable")
	for _, r := range result.Data["results"].([]map[string]interface{}) {
		if r["identifier"] == "" {
			t.Error("results must not contain entries without an identifier")
		}
	}
}

func TestAddToCartByIdentifier(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)

	result, err := d.AddToCart(context.Background(), driver.AddToCartRequest{
		Identifier: "B0CABLE01",
		Quantity:   2,
	})
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("AddToCart failed: %s", result.Message)
	}

	if result.Data["title"] != "USB-C Cable 2m Braided" {
		t.Errorf("title = %v", result.Data["title"])
	}
	if result.Data["quantity"] != 2 {
		t.Errorf("quantity = %v", result.Data["quantity"])
	}

	if len(fs.addCalls) != 1 {
		t.Fatalf("expected 1 cart-add request, got %d", len(fs.addCalls))
	}
}

func TestAddToCartByQuery(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)

	result, err := d.AddToCart(context.Background(), driver.AddToCartRequest{
		Query:    "usb cable",
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("AddToCart by query failed: %s", result.Message)
	}
}

func TestAddToCartValidation(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)
	ctx := context.Background()

	both, _ := d.AddToCart(ctx, driver.AddToCartRequest{Identifier: "B0X", Query: "cable"})
	if both.Success {
		t.Error("identifier and query together should fail validation")
	}

	neither, _ := d.AddToCart(ctx, driver.AddToCartRequest{})
	if neither.Success {
		t.Error("neither identifier nor query should fail validation")
	}
}

func TestViewCartExtraction(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)

	result, err := d.ViewCart(context.Background())
	if err != nil {
		t.Fatalf("ViewCart returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("ViewCart failed: %s", result.Message)
	}

	items := result.Data["items"].([]map[string]interface{})
	if len(items) != 1 {
		t.Fatalf("got %d cart items, want 1", len(items))
	}
	item := items[0]
	if item["title"] != "USB-C Cable 2m Braided" {
		t.Errorf("title = %v", item["title"])
	}
	if item["quantity"] != 2 {
		t.Errorf("quantity = %v", item["quantity"])
	}
	if item["price"] != "$9.99" {
		t.Errorf("price = %v", item["price"])
	}
	if result.Data["subtotal"] != "$19.98" {
		t.Errorf("subtotal = %v", result.Data["subtotal"])
	}
}

func TestCheckLogin(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)
	ctx := context.Background()

	result, _ := d.CheckLogin(ctx)
	if result.Data["loggedIn"] != true {
		t.Error("greeting with a name should report logged in")
	}

	fs.loggedIn = false
	result, _ = d.CheckLogin(ctx)
	if result.Data["loggedIn"] != false {
		t.Error("sign-in greeting should report logged out")
	}
}

func TestCheckLoginFailsClosed(t *testing.T) {
	d := newTestDriver(t, "http://127.0.0.1:1") // nothing listens here

	result, err := d.CheckLogin(context.Background())
	if err != nil {
		t.Fatalf("CheckLogin should not return an error: %v", err)
	}
	if result.Data["loggedIn"] != false {
		t.Error("unreachable site must report logged out")
	}
}

func TestSearchFailureIsResultNotError(t *testing.T) {
	d := newTestDriver(t, "http://127.0.0.1:1")

	result, err := d.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("navigation failure must surface as data, got error: %v", err)
	}
	if result.Success {
		t.Error("unreachable site should yield a failed result")
	}
	if result.Error == nil {
		t.Error("failed result should carry error detail")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	d := newTestDriver(t, "http://127.0.0.1:1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d.Search(ctx, "anything")
	}

	result, err := d.Search(ctx, "anything")
	if err != nil {
		t.Fatalf("breaker rejection must surface as data, got error: %v", err)
	}
	if result.Success {
		t.Fatal("search should fail while breaker is open")
	}
	if result.Error == nil || !strings.Contains(*result.Error, "circuit breaker is open") {
		t.Errorf("error detail = %v, want breaker rejection", result.Error)
	}
}

func TestCookieCaptureAndReplay(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)
	ctx := context.Background()

	if _, err := d.Search(ctx, "usb cable"); err != nil {
		t.Fatal(err)
	}

	cookies, err := d.Cookies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range cookies {
		if c.Name == "session-id" && c.Value == "fixture-session" {
			found = true
		}
	}
	if !found {
		t.Error("Set-Cookie from the site should be captured")
	}
}

func TestSetCookies(t *testing.T) {
	fs := newFixtureServer(t)
	d := newTestDriver(t, fs.URL)
	ctx := context.Background()

	restored := []driver.Cookie{
		{Name: "at-main", Value: "token", Domain: "amazon.com", Path: "/", Expires: time.Now().Add(time.Hour).Unix()},
	}
	if err := d.SetCookies(ctx, restored); err != nil {
		t.Fatal(err)
	}

	cookies, _ := d.Cookies(ctx)
	if len(cookies) != 1 || cookies[0].Name != "at-main" {
		t.Errorf("applied cookies not reflected: %v", cookies)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "://bad"}, logging.NewNop()); err == nil {
		t.Error("invalid base URL should fail construction")
	}
}

func TestDriverTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()

	d := newTestDriver(t, slow.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := d.ViewCart(ctx)
	if err != nil {
		t.Fatalf("timeout must surface as data, got error: %v", err)
	}
	if result.Success {
		t.Error("timed-out call should yield a failed result")
	}
}
