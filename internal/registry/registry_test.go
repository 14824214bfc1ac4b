package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// fakeDriver records the last call made against it.
type fakeDriver struct {
	lastCall   string
	lastQuery  string
	lastAdd    driver.AddToCartRequest
	loginState bool
}

func (f *fakeDriver) Search(ctx context.Context, query string) (*types.Result, error) {
	f.lastCall, f.lastQuery = "search", query
	return types.Success("found", map[string]interface{}{"results": []interface{}{}}), nil
}

func (f *fakeDriver) AddToCart(ctx context.Context, req driver.AddToCartRequest) (*types.Result, error) {
	f.lastCall, f.lastAdd = "add", req
	return types.Success("added", map[string]interface{}{"quantity": req.Quantity}), nil
}

func (f *fakeDriver) ViewCart(ctx context.Context) (*types.Result, error) {
	f.lastCall = "view"
	return types.Success("cart", map[string]interface{}{"items": []interface{}{}, "subtotal": "$0.00"}), nil
}

func (f *fakeDriver) CheckLogin(ctx context.Context) (*types.Result, error) {
	f.lastCall = "login"
	return types.Success("checked", map[string]interface{}{"loggedIn": f.loginState}), nil
}

func (f *fakeDriver) Cookies(ctx context.Context) ([]driver.Cookie, error) { return nil, nil }
func (f *fakeDriver) SetCookies(ctx context.Context, cookies []driver.Cookie) error {
	return nil
}

func TestForDriverRegistersRetailTools(t *testing.T) {
	r := ForDriver(&fakeDriver{})

	descriptors := r.List()
	if len(descriptors) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(descriptors))
	}

	want := []string{"search_amazon", "add_to_cart", "view_cart", "check_login"}
	for i, name := range want {
		if descriptors[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, descriptors[i].Name, name)
		}
	}
}

func TestSchemaSurfacedVerbatim(t *testing.T) {
	r := ForDriver(&fakeDriver{})

	var search *Descriptor
	for _, d := range r.List() {
		if d.Name == "search_amazon" {
			desc := d
			search = &desc
		}
	}
	if search == nil {
		t.Fatal("search_amazon not listed")
	}

	if search.InputSchema.Type != "object" {
		t.Errorf("schema type = %s, want object", search.InputSchema.Type)
	}
	if _, ok := search.InputSchema.Properties["query"]; !ok {
		t.Error("schema should declare query property")
	}
	if len(search.InputSchema.Required) != 1 || search.InputSchema.Required[0] != "query" {
		t.Errorf("schema required = %v, want [query]", search.InputSchema.Required)
	}
}

func TestCallUnknownTool(t *testing.T) {
	r := ForDriver(&fakeDriver{})

	result := r.Call(context.Background(), "does_not_exist", nil)
	if result.Success {
		t.Error("unknown tool should yield a failed result")
	}
	if result.Message != "tool not found: does_not_exist" {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestCallValidatesRequired(t *testing.T) {
	d := &fakeDriver{}
	r := ForDriver(d)

	result := r.Call(context.Background(), "search_amazon", map[string]interface{}{})
	if result.Success {
		t.Error("missing required query should fail validation")
	}
	if d.lastCall != "" {
		t.Error("handler should not be invoked on validation failure")
	}
}

func TestCallValidatesTypes(t *testing.T) {
	r := ForDriver(&fakeDriver{})

	result := r.Call(context.Background(), "search_amazon", map[string]interface{}{"query": 42.0})
	if result.Success {
		t.Error("numeric query should fail string validation")
	}
}

func TestAddToCartExclusiveSelector(t *testing.T) {
	r := ForDriver(&fakeDriver{})
	ctx := context.Background()

	both := r.Call(ctx, "add_to_cart", map[string]interface{}{
		"identifier": "B0TEST", "query": "usb cable",
	})
	if both.Success {
		t.Error("supplying both identifier and query should fail")
	}

	neither := r.Call(ctx, "add_to_cart", map[string]interface{}{})
	if neither.Success {
		t.Error("supplying neither identifier nor query should fail")
	}
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	d := &fakeDriver{}
	r := ForDriver(d)

	result := r.Call(context.Background(), "add_to_cart", map[string]interface{}{"identifier": "B0TEST"})
	if !result.Success {
		t.Fatalf("add_to_cart failed: %s", result.Message)
	}
	if d.lastAdd.Quantity != 1 {
		t.Errorf("quantity = %d, want default 1", d.lastAdd.Quantity)
	}
}

func TestCallDispatchesToDriver(t *testing.T) {
	d := &fakeDriver{loginState: true}
	r := ForDriver(d)
	ctx := context.Background()

	r.Call(ctx, "search_amazon", map[string]interface{}{"query": "mechanical keyboard"})
	if d.lastCall != "search" || d.lastQuery != "mechanical keyboard" {
		t.Errorf("search dispatch mismatch: call=%s query=%s", d.lastCall, d.lastQuery)
	}

	result := r.Call(ctx, "check_login", nil)
	if !result.Success || result.Data["loggedIn"] != true {
		t.Errorf("check_login result mismatch: %+v", result)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New()
	tool := Tool{
		Name:    "x",
		Schema:  types.ObjectSchema(nil),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) { return nil, nil },
	}
	if err := r.Register(tool); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("duplicate register should fail")
	}
}

func TestCallWrapsHandlerError(t *testing.T) {
	r := New()
	r.Register(Tool{
		Name:   "boom",
		Schema: types.ObjectSchema(nil),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			return nil, errors.New("driver exploded")
		},
	})

	result := r.Call(context.Background(), "boom", nil)
	if result.Success {
		t.Error("handler error should surface as failed result")
	}
	if result.Error == nil || *result.Error != "driver exploded" {
		t.Errorf("error detail not preserved: %+v", result)
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := New()
	tool := Tool{
		Name:        "dup",
		Description: "first",
		Schema:      types.ObjectSchema(map[string]types.Property{}),
		Handler: func(ctx context.Context, args map[string]interface{}) (*types.Result, error) {
			return types.Success("", nil), nil
		},
	}
	mustRegister(r, tool)

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic at wiring time")
		}
	}()
	mustRegister(r, tool)
}
