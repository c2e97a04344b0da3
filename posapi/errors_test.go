// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package posapi

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	srv := &ServerError{StatusCode: 409, Body: []byte(`{"message":"insufficient stock"}`)}
	if !IsServerError(srv) {
		t.Fatalf("409 must be server-class")
	}
	if IsNetworkError(srv) {
		t.Fatalf("server-class is never network-class")
	}

	wrapped := fmt.Errorf("replaying request: %w", srv)
	if !IsServerError(wrapped) {
		t.Fatalf("wrapping must not hide the server error")
	}

	if !IsNetworkError(errors.New("dial tcp: connection refused")) {
		t.Fatalf("transport errors without a status are network-class")
	}
	if !IsNetworkError(context.DeadlineExceeded) {
		t.Fatalf("timeouts are network-class")
	}
	if IsNetworkError(nil) {
		t.Fatalf("nil is not an error at all")
	}
}

func TestServerErrorMessage(t *testing.T) {
	srv := &ServerError{StatusCode: 422, Body: []byte(`{"errors":["name required","price required"]}`)}
	if got := srv.Message("fallback"); got != "name required. price required" {
		t.Fatalf("got %q", got)
	}

	empty := &ServerError{StatusCode: 500}
	if got := empty.Message("fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	if got := empty.Error(); got != "server returned status 500" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractErrorMessage(t *testing.T) {
	if got := ExtractErrorMessage([]byte(`{"message":"boom"}`), "x"); got != "boom" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractErrorMessage([]byte(`not json`), "x"); got != "x" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractErrorMessage(nil, "x"); got != "x" {
		t.Fatalf("got %q", got)
	}
}
