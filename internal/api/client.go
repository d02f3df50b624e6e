// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the chat backend: streaming and
// single-shot chat completions, web-search answers, and model listing.
// All failures map onto a small sentinel taxonomy (see errors.go) so
// callers can branch on error kind without inspecting HTTP details.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT
// =============================================================================

const (
	// DefaultBaseURL is the OpenRouter-compatible endpoint used when the
	// config does not override it.
	DefaultBaseURL = "https://openrouter.ai/api"

	// DefaultTimeout bounds a whole request, including streaming reads.
	DefaultTimeout = 120 * time.Second

	// requestsPerSecond is a soft client-side ceiling that keeps bursty
	// callers (title generation racing a new send) under provider limits.
	requestsPerSecond = 4
)

// Client talks to one backend. The zero value is not usable; construct with
// NewClient.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a client with defaults applied. The key may be empty;
// calls will then fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// WithBaseURL overrides the backend base URL. Trailing slashes are trimmed.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithModel sets the default model used when a request does not name one.
func (c *Client) WithModel(m string) *Client {
	if m != "" {
		c.model = m
	}
	return c
}

// WithTimeout sets the per-call deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithHTTPClient substitutes the transport, used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Model returns the client's default model.
func (c *Client) Model() string { return c.model }

// =============================================================================
// SEND
// =============================================================================

// SendMessage issues one chat turn and returns a Stream of response chunks.
//
// Endpoint selection:
//   - UseWebSearch: POST {base}/web, always yielding one terminal chunk
//     regardless of req.Stream.
//   - Stream: POST {base}/v1/chat/completions with stream=true, parsed as SSE.
//   - Otherwise the same endpoint non-streaming, buffered into one chunk.
//
// The caller owns the returned Stream and must Close it on every path.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*Stream, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	if req.UseWebSearch {
		return c.sendWebSearch(ctx, req)
	}
	if req.Stream {
		return c.sendStreaming(ctx, req)
	}
	return c.sendOnce(ctx, req)
}

func (c *Client) sendStreaming(ctx context.Context, req SendRequest) (*Stream, error) {
	body := chatRequest{
		Model:       c.resolveModel(req.Model),
		Messages:    req.messages(),
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.post(callCtx, "/v1/chat/completions", body)
	if err != nil {
		cancel()
		return nil, err
	}
	// The stream takes ownership of resp.Body and cancel.
	return newSSEStream(callCtx, cancel, resp.Body), nil
}

func (c *Client) sendOnce(ctx context.Context, req SendRequest) (*Stream, error) {
	content, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return newBufferedStream(StreamChunk{Content: content, Done: true}), nil
}

func (c *Client) sendWebSearch(ctx context.Context, req SendRequest) (*Stream, error) {
	body := webSearchRequest{
		Query:      req.Message,
		Depth:      "standard",
		OutputType: "sourcedAnswer",
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(callCtx, "/web", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.mapTransportError(callCtx, err)
	}

	var frame rawFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, &APIError{Message: "invalid web search response: " + err.Error()}
	}
	chunk, _, err := normalizeFrame(&frame)
	if err != nil {
		return nil, err
	}
	// Web search is a single-shot answer even when the caller asked for
	// streaming.
	chunk.Done = true
	return newBufferedStream(chunk), nil
}

// Complete issues a non-streaming chat completion and returns the full
// assistant message. Used for title generation and by sendOnce.
func (c *Client) Complete(ctx context.Context, req SendRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := chatRequest{
		Model:       c.resolveModel(req.Model),
		Messages:    req.messages(),
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(callCtx, "/v1/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &APIError{Message: "invalid completion response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &APIError{Message: "completion response has no choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels fetches the model IDs the backend advertises, sorted as served.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.get(callCtx, "/v1/models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &APIError{Message: "invalid models response: " + err.Error()}
	}

	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// TestConnection verifies credentials and reachability with a models call.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) resolveModel(m string) string {
	if m != "" {
		return m
	}
	return c.model
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(raw))
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// do performs one authenticated request and maps non-2xx statuses onto the
// error taxonomy, consuming the body on failure.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.mapTransportError(ctx, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.mapTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, raw)
	}
	return resp, nil
}

// mapTransportError distinguishes a deadline from every other transport
// failure; cancellation passes through for callers that initiated it.
func (c *Client) mapTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return context.Canceled
	default:
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
}
