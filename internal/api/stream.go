// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/nanochat/internal/model"
)

// =============================================================================
// FRAME NORMALIZATION
// =============================================================================

// ssePrefix frames every payload-carrying line of the event stream.
// Lines without it (comments, keep-alives, unknown fields) are skipped.
const ssePrefix = "data: "

// sseDone is the literal terminator payload ending a well-formed stream.
const sseDone = "[DONE]"

// rawFrame is the superset of the backend response shapes: delta-based
// chat-completion chunks, the alternate {content, done} shape, and the
// web-search {data: {answer, sources}} envelope. Pointer fields distinguish
// an absent key from a zero value during classification.
type rawFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`

	Content *string `json:"content"`
	Done    bool    `json:"done"`

	WebSources []model.WebSource `json:"web_sources"`

	Data *struct {
		Answer  *string           `json:"answer"`
		Sources []model.WebSource `json:"sources"`
	} `json:"data"`
}

// normalizeFrame classifies one decoded response object into a StreamChunk.
// Rules apply in order, first match wins:
//
//  1. Non-empty choices: delta content + finish_reason, emitted only when
//     the content is non-empty or the chunk is terminal (suppresses empty
//     keep-alive deltas).
//  2. A content key: the alternate {content, done} shape.
//  3. Otherwise the web-search shape is expected; a missing data.answer is
//     a protocol error.
//
// The bool result reports whether a chunk should be emitted at all.
func normalizeFrame(frame *rawFrame) (StreamChunk, bool, error) {
	if len(frame.Choices) > 0 {
		choice := frame.Choices[0]
		chunk := StreamChunk{
			Content:    choice.Delta.Content,
			Done:       choice.FinishReason != nil,
			WebSources: frame.WebSources,
		}
		if chunk.Content == "" && !chunk.Done {
			return StreamChunk{}, false, nil
		}
		return chunk, true, nil
	}

	if frame.Content != nil {
		return StreamChunk{
			Content:    *frame.Content,
			Done:       frame.Done,
			WebSources: frame.WebSources,
		}, true, nil
	}

	if frame.Data == nil || frame.Data.Answer == nil {
		return StreamChunk{}, false, &APIError{Message: "response missing data.answer"}
	}

	sources := frame.Data.Sources
	if sources == nil {
		sources = []model.WebSource{}
	}
	return StreamChunk{
		Content:    *frame.Data.Answer,
		Done:       true,
		WebSources: sources,
	}, true, nil
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite, forward-only sequence of StreamChunk values
// produced by one API call.
//
// Close is a hard contract, not an optimization: each call opens a fresh
// connection, so an abandoned Stream that is not closed leaks it. Callers
// must arrange Close on every exit path, typically with defer.
type Stream struct {
	mu sync.Mutex

	// Live SSE state. body and reader are nil for buffered streams.
	body   io.ReadCloser
	reader *bufio.Reader

	// cancel releases the per-call context (and with it the connection).
	cancel context.CancelFunc

	// ctx is consulted to distinguish timeout from transport errors.
	ctx context.Context

	// buffered holds the chunks of a single-shot response (non-streaming
	// chat or web search), drained by Recv in order.
	buffered []StreamChunk

	done   bool
	closed bool
}

// newBufferedStream wraps pre-computed chunks in the Stream interface so
// single-shot code paths look identical to the consumer.
func newBufferedStream(chunks ...StreamChunk) *Stream {
	return &Stream{buffered: chunks}
}

// newSSEStream takes ownership of an open response body and its context.
func newSSEStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Recv returns the next chunk. After the terminal chunk (or natural end of
// stream) it returns io.EOF. Receiving a Done chunk ends the stream: no
// further frames are read.
func (s *Stream) Recv() (StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffered) > 0 {
		chunk := s.buffered[0]
		s.buffered = s.buffered[1:]
		if chunk.Done {
			s.done = true
		}
		return chunk, nil
	}

	if s.done || s.closed || s.reader == nil {
		return StreamChunk{}, io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				s.finishLocked()
				return StreamChunk{}, io.EOF
			}
			if err != io.EOF {
				s.finishLocked()
				return StreamChunk{}, s.mapReadError(err)
			}
			// Final line without a trailing newline: fall through and
			// process it, the next Recv returns EOF.
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ssePrefix) {
			// Unknown framing (comments, keep-alives) is silently ignored.
			continue
		}

		payload := strings.TrimSpace(line[len(ssePrefix):])
		if payload == sseDone {
			s.finishLocked()
			return StreamChunk{Done: true}, nil
		}

		var frame rawFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// A single malformed frame must not abort an otherwise-good
			// response: log and keep reading.
			log.Printf("skipping malformed stream frame: %v", err)
			continue
		}

		chunk, emit, nerr := normalizeFrame(&frame)
		if nerr != nil {
			s.finishLocked()
			return StreamChunk{}, nerr
		}
		if !emit {
			continue
		}
		if chunk.Done {
			s.done = true
			s.releaseLocked() //nolint:errcheck // body close error is not actionable here
		}
		return chunk, nil
	}
}

// Close releases the underlying connection. Safe to call multiple times and
// after the stream has ended.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.releaseLocked()
}

// finishLocked marks the stream done and releases the connection. Callers
// must hold s.mu.
func (s *Stream) finishLocked() {
	s.done = true
	s.releaseLocked() //nolint:errcheck // body close error is not actionable here
}

// releaseLocked closes the body and cancels the per-call context.
func (s *Stream) releaseLocked() error {
	var err error
	if s.body != nil {
		err = s.body.Close()
		s.body = nil
		s.reader = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return err
}

// mapReadError converts a mid-stream read failure into the error taxonomy.
func (s *Stream) mapReadError(err error) error {
	if s.ctx != nil {
		if errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		if errors.Is(s.ctx.Err(), context.Canceled) {
			return context.Canceled
		}
	}
	return &APIError{Message: "stream read failed: " + err.Error()}
}

// Collect drains the stream, concatenating content deltas and keeping the
// last non-nil source list. The stream is closed when Collect returns.
func (s *Stream) Collect() (string, []model.WebSource, error) {
	defer s.Close()

	var content strings.Builder
	var sources []model.WebSource
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return content.String(), sources, nil
		}
		if err != nil {
			return "", nil, err
		}
		content.WriteString(chunk.Content)
		if chunk.WebSources != nil {
			sources = chunk.WebSources
		}
		if chunk.Done {
			return content.String(), sources, nil
		}
	}
}
