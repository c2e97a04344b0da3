// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ServerError is a server-class failure: the server was reached and rejected
// the request (any 4xx/5xx). Server-class failures are terminal for a queued
// mutation and are never retried.
type ServerError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerError) Error() string {
	msg := ExtractErrorMessage(e.Body, "")
	if msg == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, msg)
}

// Message returns the human-readable message from the error body, or fallback.
func (e *ServerError) Message(fallback string) string {
	return ExtractErrorMessage(e.Body, fallback)
}

// IsServerError reports whether err is a server-class failure.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsNetworkError reports whether err is a network-class failure: the server
// could not be reached or did not answer in time (no HTTP status at all).
// Timeouts are treated identically to connectivity loss.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if IsServerError(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	// url.Error, net.OpError, DNS failures etc. all land here: any transport
	// error without an HTTP status is network-class by the wire contract.
	return true
}

// ExtractErrorMessage pulls a readable message out of an API error body,
// preferring `message`, then joined `errors[]`, then the fallback.
func ExtractErrorMessage(body []byte, fallback string) string {
	if len(body) == 0 {
		return fallback
	}
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	if len(envelope.Errors) > 0 {
		return strings.Join(envelope.Errors, ". ")
	}
	return fallback
}
