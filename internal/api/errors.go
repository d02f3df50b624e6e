// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error variables for the documented failure classes. HTTP-status-derived
// errors are mapped before any body parsing; transport and timeout failures
// are mapped from the underlying request error.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (HTTP 401).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidRequest indicates the server rejected the request (HTTP 400).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout indicates the whole call exceeded the configured duration.
	ErrTimeout = errors.New("request timed out")

	// ErrConnection indicates a transport-level failure.
	ErrConnection = errors.New("connection error")
)

// APIError is the catch-all for unexpected statuses and malformed protocol
// responses. It carries the HTTP status code (0 for protocol errors detected
// after a 200) and a best-effort message.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// errorBody is the error envelope some backends return on 4xx responses.
// The message may be a bare string or an object with a message field.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// serverMessage extracts a human-readable error message from a response
// body. Extraction is best-effort: it never fails the error path itself.
func serverMessage(body []byte) string {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil {
		return obj.Message
	}

	return ""
}

// statusError maps a non-200 HTTP status to the error taxonomy. The body is
// whatever could be read; read failures upstream degrade to an empty body
// rather than failing the error path.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrAuthFailed)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limit exceeded", ErrRateLimited)
	case http.StatusBadRequest:
		if msg := serverMessage(body); msg != "" {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
		}
		return ErrInvalidRequest
	default:
		msg := string(body)
		if msg == "" {
			msg = "no response body"
		}
		return &APIError{Status: status, Message: msg}
	}
}
