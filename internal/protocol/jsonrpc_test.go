package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNotificationDetection(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		notification bool
	}{
		{"no id key", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, true},
		{"id zero", `{"jsonrpc":"2.0","id":0,"method":"ping"}`, false},
		{"id null", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, false},
		{"id string", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, false},
		{"id empty string", `{"jsonrpc":"2.0","id":"","method":"ping"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseRequest failed: %v", err)
			}
			if got := req.IsNotification(); got != tt.notification {
				t.Errorf("IsNotification() = %v, want %v", got, tt.notification)
			}
		})
	}
}

func TestResponseIDEchoesRawID(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":0,"method":"ping"}`))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	if string(req.ResponseID()) != "0" {
		t.Errorf("ResponseID() = %s, want 0", req.ResponseID())
	}
}

func TestResponseIDNullForNullID(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	if string(req.ResponseID()) != "null" {
		t.Errorf("ResponseID() = %s, want null", req.ResponseID())
	}
}

func TestParseRequestRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseRequest([]byte(`{"jsonrpc":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestParamsMap(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"view_cart","arguments":{}}}`))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	params, err := req.ParamsMap()
	if err != nil {
		t.Fatalf("ParamsMap failed: %v", err)
	}
	if params["name"] != "view_cart" {
		t.Errorf("params name = %v, want view_cart", params["name"])
	}
}

func TestParamsMapAbsent(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}

	params, err := req.ParamsMap()
	if err != nil {
		t.Fatalf("ParamsMap failed: %v", err)
	}
	if len(params) != 0 {
		t.Errorf("expected empty params, got %v", params)
	}
}

func TestResultAndErrorMutuallyExclusive(t *testing.T) {
	res := NewResult(json.RawMessage("1"), map[string]string{"ok": "yes"})
	errRes := NewError(json.RawMessage("2"), CodeMethodNotFound, "method not found")

	resJSON, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if strings.Contains(string(resJSON), `"error"`) {
		t.Errorf("success response should not carry error: %s", resJSON)
	}

	errJSON, err := json.Marshal(errRes)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if strings.Contains(string(errJSON), `"result"`) {
		t.Errorf("error response should not carry result: %s", errJSON)
	}
	if !strings.Contains(string(errJSON), `-32601`) {
		t.Errorf("error response should carry the code: %s", errJSON)
	}
}

func TestNewResultNormalizesNilID(t *testing.T) {
	res := NewResult(nil, nil)
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"id":null`) {
		t.Errorf("nil id should marshal as null: %s", data)
	}
}
