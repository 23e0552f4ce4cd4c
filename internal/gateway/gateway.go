// Package gateway is the request/response boundary to the privileged
// backend. Every call returns a structured Result; transport and handler
// failures are folded into the envelope, never surfaced as raw errors.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the envelope every command invocation returns. Call sites must
// handle OK=false; no call is assumed to succeed.
type Result struct {
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ElapsedMs int64           `json:"elapsed_ms"`
	// Stale marks a result synthesized from cached data after a soft
	// timeout or transport failure.
	Stale bool `json:"stale,omitempty"`
}

// Gateway dispatches named commands to the backend.
type Gateway interface {
	Invoke(ctx context.Context, command string, args any) Result
}

// Fail builds a failed Result from an error.
func Fail(err error) Result {
	return Result{Error: err.Error()}
}

// Failf builds a failed Result from a format string.
func Failf(format string, a ...any) Result {
	return Result{Error: fmt.Sprintf(format, a...)}
}

// Succeed builds a successful Result, marshaling v as the payload.
// A marshal failure becomes a failed Result.
func Succeed(v any) Result {
	if v == nil {
		return Result{OK: true}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Failf("encode result: %v", err)
	}
	return Result{OK: true, Data: data}
}

// Decode unmarshals a Result payload into out. It fails on OK=false so
// callers can collapse the two checks.
func Decode(res Result, out any) error {
	if !res.OK {
		return fmt.Errorf("command failed: %s", res.Error)
	}
	if len(res.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
