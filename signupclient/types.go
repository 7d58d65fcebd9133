package signupclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActionResult is the body of a successful signup or unregister call.
type ActionResult struct {
	Message string `json:"message"`
}

// errorBody is the body of a rejected call. FastAPI style backends may put
// a structured validation report in detail; only string details are used.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (b errorBody) text() string {
	var s string
	if len(b.Detail) == 0 || json.Unmarshal(b.Detail, &s) != nil {
		return ""
	}
	return s
}

// NetworkError is returned when a request could not complete at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is returned when listing activities answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.StatusCode)
}

// ActionError is returned when the backend rejects a signup or unregister.
// Detail holds the backend's human readable reason and may be empty.
type ActionError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *ActionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.StatusCode, e.Detail)
}

type requestIDKey struct{}

// ContextWithRequestID attaches an ID sent as the X-Request-ID header.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
