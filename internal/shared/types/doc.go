// Package types provides shared data structures for the bridge.
//
// Core Types:
//   - Result: Standard operation outcome (success flag, payload, detail)
//   - Property, Schema: Declarative tool parameter schemas
//
// Example Usage:
//
//	return types.Success("found 3 results", map[string]interface{}{
//	    "results": results,
//	})
package types
