// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package tamalisync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AmadouLah/tamali-sync/posapi"
)

// Transport executes API calls against the remote server. It applies the
// per-request timeout, attaches the bearer token, and classifies failures:
// a reachable server answering 4xx/5xx yields *posapi.ServerError; anything
// without an HTTP status (DNS, refused connection, timeout) surfaces as a
// plain error that posapi.IsNetworkError recognizes.
type Transport struct {
	BaseURL string
	HTTP    *http.Client
	Token   func(ctx context.Context) (string, error) // optional bearer source
	Timeout time.Duration
}

// NewTransport creates a transport with the default per-request timeout.
func NewTransport(baseURL string, httpClient *http.Client) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Transport{
		BaseURL: baseURL,
		HTTP:    httpClient,
		Timeout: 10 * time.Second,
	}
}

// Do executes a single request and returns the response body on any 2xx.
func (t *Transport) Do(ctx context.Context, method, path string, body json.RawMessage, headers map[string]string) (json.RawMessage, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if len(body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if t.Token != nil {
		token, err := t.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get auth token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &posapi.ServerError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// Probe performs the lightweight liveness check (any 2xx within the timeout
// means reachable). Suitable as the monitor's ProbeFunc.
func (t *Transport) Probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+posapi.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := t.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("liveness probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("liveness probe returned status %d", resp.StatusCode)
	}
	return nil
}
