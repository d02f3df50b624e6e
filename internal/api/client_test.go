// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key").WithBaseURL(srv.URL).WithModel("test/model")
}

func TestSendMessageStreaming(t *testing.T) {
	var gotPath string
	var gotBody chatRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"},\"finish_reason\":null}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.SendMessage(context.Background(), SendRequest{
		Message: "hello",
		History: []ChatMessage{NewUserMessage("prior"), NewAssistantMessage("reply")},
		Stream:  true,
	})
	require.NoError(t, err)

	content, _, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "hi", content)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, "test/model", gotBody.Model)
	require.Len(t, gotBody.Messages, 3)
	assert.Equal(t, "prior", gotBody.Messages[0].Content)
	assert.Equal(t, "hello", gotBody.Messages[2].Content)
}

func TestSendMessageSystemPromptFirst(t *testing.T) {
	var gotBody chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "ok"}}},
		})
	})

	stream, err := client.SendMessage(context.Background(), SendRequest{
		Message:      "q",
		SystemPrompt: "be brief",
	})
	require.NoError(t, err)
	defer stream.Close()

	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "be brief", gotBody.Messages[0].Content)
}

func TestSendMessageNonStreamingBuffersOneChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "full answer"},
				"finish_reason": "stop",
			}},
		})
	})

	stream, err := client.SendMessage(context.Background(), SendRequest{Message: "q"})
	require.NoError(t, err)

	content, _, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "full answer", content)
}

func TestSendMessageWebSearch(t *testing.T) {
	var gotPath string
	var gotBody webSearchRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"answer":  "the answer",
				"sources": []map[string]string{{"url": "https://s.example", "title": "S"}},
			},
		})
	})

	// Stream:true must not matter: web search is single-shot.
	stream, err := client.SendMessage(context.Background(), SendRequest{
		Message:      "search me",
		UseWebSearch: true,
		Stream:       true,
	})
	require.NoError(t, err)

	content, sources, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://s.example", sources[0].URL)

	assert.Equal(t, "/web", gotPath)
	assert.Equal(t, "search me", gotBody.Query)
	assert.Equal(t, "standard", gotBody.Depth)
	assert.Equal(t, "sourcedAnswer", gotBody.OutputType)
}

func TestSendMessageWebSearchMissingAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})

	_, err := client.SendMessage(context.Background(), SendRequest{
		Message:      "q",
		UseWebSearch: true,
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestSendMessageNotConfigured(t *testing.T) {
	client := NewClient("")
	_, err := client.SendMessage(context.Background(), SendRequest{Message: "q"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthFailed)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
			},
		},
		{
			name:   "bad request with message",
			status: http.StatusBadRequest,
			body:   `{"error":{"message":"model not found"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				assert.Contains(t, err.Error(), "model not found")
			},
		},
		{
			name:   "bad request with string error",
			status: http.StatusBadRequest,
			body:   `{"error":"bad payload"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				assert.Contains(t, err.Error(), "bad payload")
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "backend exploded",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
				assert.Contains(t, apiErr.Message, "backend exploded")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.SendMessage(context.Background(), SendRequest{Message: "q", Stream: true})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSendMessageTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}).WithTimeout(20 * time.Millisecond)

	_, err := client.SendMessage(context.Background(), SendRequest{Message: "q", Stream: true})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendMessageConnectionError(t *testing.T) {
	client := NewClient("test-key").WithBaseURL("http://127.0.0.1:1") // nothing listening
	_, err := client.SendMessage(context.Background(), SendRequest{Message: "q", Stream: true})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestComplete(t *testing.T) {
	var gotBody chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "A Title"}}},
		})
	})

	content, err := client.Complete(context.Background(), SendRequest{
		Message: "summarize",
		Model:   "other/model",
	})
	require.NoError(t, err)
	assert.Equal(t, "A Title", content)
	assert.False(t, gotBody.Stream)
	assert.Equal(t, "other/model", gotBody.Model)
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), SendRequest{Message: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/models", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "a/one"}, {"id": "b/two"}, {"id": ""}},
		})
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two"}, models)
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := client.TestConnection(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}
