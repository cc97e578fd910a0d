package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a structured rejection from a reachable scoring engine.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("engine: status %d: %s (%s)", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("engine: status %d: %s", e.StatusCode, e.Message)
}

// ClientError reports whether the engine rejected the input (4xx).
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ServerError reports whether the engine failed internally (5xx).
func (e *APIError) ServerError() bool {
	return e.StatusCode >= 500
}

// TransportError means the engine could not be reached at all; no response
// body exists.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorBody is the engine's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func newAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || (eb.Message == "" && eb.Error == "") {
		return &APIError{
			StatusCode: status,
			Message:    fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
		}
	}
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	return &APIError{StatusCode: status, Message: msg, Detail: eb.Detail}
}
