// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/nanochat/internal/api"
)

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{api.ErrNotConfigured, "no API key configured; set NANOCHAT_API_KEY or api.key in config"},
		{fmt.Errorf("wrapped: %w", api.ErrAuthFailed), "authentication failed; check your API key"},
		{api.ErrRateLimited, "rate limited; wait a moment and try again"},
		{api.ErrTimeout, "request timed out"},
		{api.ErrConnection, "could not reach the backend"},
		{errors.New("something else"), "something else"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeError(tt.err))
	}
}

func TestDescribeErrorAPIError(t *testing.T) {
	err := &api.APIError{Status: 500, Message: "internal"}
	assert.Contains(t, describeError(err), "HTTP 500")
}

// feed pushes text through the filter in chunks of n bytes and returns the
// visible output plus the flush tail.
func feed(text string, n int) string {
	var f thinkingFilter
	var out strings.Builder
	for i := 0; i < len(text); i += n {
		end := i + n
		if end > len(text) {
			end = len(text)
		}
		out.WriteString(f.Write(text[i:end]))
	}
	out.WriteString(f.Flush())
	return out.String()
}

func TestThinkingFilter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "plain answer", "plain answer"},
		{"closed block", "<think>reasoning</think>Answer", "Answer"},
		{"thought variant", "<thought>hmm</thought>ok", "ok"},
		{"text around block", "Before<think>x</think>After", "BeforeAfter"},
		{"unterminated hides tail", "Visible<think>never closed", "Visible"},
		{"two blocks", "<think>a</think>1<think>b</think>2", "12"},
		{"angle bracket not a tag", "a < b and a <b> c", "a < b and a <b> c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Split points must not matter.
			for _, n := range []int{1, 3, 7, len(tt.in)} {
				assert.Equal(t, tt.want, feed(tt.in, n), "chunk size %d", n)
			}
		})
	}
}
