// Package protocol defines the JSON-RPC 2.0 message shapes carried over the
// relay: inbound request envelopes and outbound response envelopes.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version tag.
const Version = "2.0"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var nullID = json.RawMessage("null")

// Request is one inbound protocol message.
//
// ID is the raw id token as received: nil when the id key was absent
// entirely, the literal bytes "null" for an explicit null id, and the raw
// number or string otherwise. Keeping the raw bytes is what makes id:0 and
// id-absent distinguishable.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      json.RawMessage `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message expects no reply.
//
// Only a message with no id key at all is a notification. An id of literal
// zero, empty string, or explicit null still expects a reply.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// ResponseID returns the id to echo in the paired response, normalizing an
// absent id to null.
func (r *Request) ResponseID() json.RawMessage {
	if r.ID == nil {
		return nullID
	}
	return r.ID
}

// ParseRequest decodes one request envelope from raw bytes.
func ParseRequest(raw []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	return &req, nil
}

// ParamsMap decodes the params payload into a generic map. A missing or
// null params field yields an empty map.
func (r *Request) ParamsMap() (map[string]interface{}, error) {
	if len(r.Params) == 0 || bytes.Equal(r.Params, nullID) {
		return map[string]interface{}{}, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return params, nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is one outbound protocol message, paired to a request by id.
// Result and Error are mutually exclusive.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response echoing the request id.
func NewResult(id json.RawMessage, result interface{}) *Response {
	if id == nil {
		id = nullID
	}
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response echoing the request id.
func NewError(id json.RawMessage, code int, message string) *Response {
	if id == nil {
		id = nullID
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}
