package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing        = "ping"
	MethodStatus      = "status"
	MethodAfterCreate = "after_create"
	MethodAfterUpdate = "after_update"
	MethodAfterDelete = "after_delete"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{JSONRPC: "2.0", Result: data, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// HookParams are the parameters of the after_* methods.
// Entry is an object for create and update, and an object or an array of
// objects for delete.
type HookParams struct {
	Collection string          `json:"collection"`
	Entry      json.RawMessage `json:"entry"`
}

// Validate checks that required fields are present.
func (p HookParams) Validate() error {
	if p.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	trimmed := bytes.TrimSpace(p.Entry)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("entry is required")
	}
	return nil
}

// AcceptedResult is returned by every hook method once params validate.
// Index failures are logged by the daemon, never reported to the caller.
type AcceptedResult struct {
	Accepted bool `json:"accepted"`
}

// WatcherStatus describes the content-directory watcher.
type WatcherStatus struct {
	Root           string `json:"root"`
	Mode           string `json:"mode"`
	Running        bool   `json:"running"`
	DroppedBatches uint64 `json:"dropped_batches"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running  bool                        `json:"running"`
	PID      int                         `json:"pid"`
	Uptime   string                      `json:"uptime"`
	Backend  string                      `json:"backend"`
	Watcher  *WatcherStatus              `json:"watcher,omitempty"`
	Outcomes map[string]map[string]int64 `json:"outcomes"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
