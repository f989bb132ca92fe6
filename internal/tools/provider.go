// Package tools implements the external capabilities the workflow can
// invoke: weather, geocoding/POI, rail schedules, time and date, knowledge
// search, file reads and order lookups. Every provider degrades to
// deterministic mock data when its upstream API is unconfigured or down, and
// never lets an error escape its boundary.
package tools

import "context"

// Result is the uniform outcome of one provider invocation.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Ok builds a successful result.
func Ok(data map[string]interface{}) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed result carrying the error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Provider is one invocable capability. Kind names the result namespace its
// outcomes are stored under (e.g. "weather", "train_tickets"); it identifies
// the semantic kind of the result, not the backing integration.
type Provider interface {
	Kind() string
	Invoke(ctx context.Context, args map[string]string) Result
}
