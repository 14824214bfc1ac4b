package types

// Result represents the outcome of a driver or tool operation.
//
// Driver-level failure is data, not an error: a failed page extraction is
// reported with Success=false inside an otherwise successful protocol
// response.
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Success creates a successful result
func Success(message string, data map[string]interface{}) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

// Failure creates a failed result
func Failure(message string) *Result {
	msg := message
	return &Result{Success: false, Message: message, Error: &msg}
}

// Failuref creates a failed result with separate message and error detail
func Failuref(message, detail string) *Result {
	return &Result{Success: false, Message: message, Error: &detail}
}

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// Schema is the declarative parameter schema surfaced verbatim by tool
// discovery. It follows the JSON Schema object shape the remote caller
// expects.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema builds an object schema from properties and required names.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	return Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// GetString extracts string from params with validation
func GetString(params map[string]interface{}, key string) (string, bool) {
	val, ok := params[key].(string)
	if !ok {
		return "", false
	}
	return val, true
}

// GetInt extracts int from params with validation
func GetInt(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetIntDefault extracts int from params with default
func GetIntDefault(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := GetInt(params, key); ok {
		return v
	}
	return defaultVal
}
