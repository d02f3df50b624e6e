// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state coordinates the message send lifecycle: persisting the user
// message, streaming the assistant response, and persisting the final
// assistant message exactly once.
//
// The package owns the single-consumer event channel contract: each send
// returns a channel that delivers content deltas as they stream, then either
// one Done event carrying the persisted assistant message or one Err event,
// and is closed. Nothing from a failed or stopped stream is persisted.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/nanochat/internal/api"
	"github.com/jeranaias/nanochat/internal/config"
	"github.com/jeranaias/nanochat/internal/model"
	"github.com/jeranaias/nanochat/internal/storage"
	"github.com/jeranaias/nanochat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy indicates the conversation already has an active send.
	ErrBusy = errors.New("a message is already being sent in this conversation")

	// ErrStopped indicates the send was cancelled by Stop.
	ErrStopped = errors.New("generation stopped")

	// ErrNoUserMessage indicates regenerate found nothing to re-send.
	ErrNoUserMessage = errors.New("conversation has no user message to regenerate from")
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is one update from an in-flight send. Exactly one terminal event is
// delivered per send (Done or Err), after which the channel is closed.
type Event struct {
	// Delta is an incremental slice of assistant content.
	Delta string

	// Sources carries web citations when the backend attaches them.
	Sources []model.WebSource

	// Done marks successful completion; Message is the persisted assistant
	// message.
	Done    bool
	Message *model.Message

	// Err marks failed completion. Nothing was persisted for the
	// assistant turn.
	Err error
}

// =============================================================================
// APP STATE
// =============================================================================

// titleMaxRunes caps generated conversation titles.
const titleMaxRunes = 100

// titlePrompt asks the model for a conversation title after the first
// exchange.
const titlePrompt = "Generate a short title (at most a few words) for a conversation " +
	"that starts with the following exchange. Reply with the title only, no quotes " +
	"and no trailing punctuation."

// AppState drives conversation sends. One send may be active per
// conversation; a second SendMessage on the same conversation fails with
// ErrBusy while the first is still streaming.
type AppState struct {
	store  *storage.Store
	client *api.Client
	cfg    *config.Config

	mu     sync.Mutex
	active map[int64]*sendOp
}

// sendOp tracks one in-flight send.
type sendOp struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	stopMu  sync.Mutex
	stopped bool
}

func (op *sendOp) stop() {
	op.stopMu.Lock()
	op.stopped = true
	op.stopMu.Unlock()
	op.cancel()
}

func (op *sendOp) wasStopped() bool {
	op.stopMu.Lock()
	defer op.stopMu.Unlock()
	return op.stopped
}

// New creates an AppState on top of an open store and configured client.
func New(store *storage.Store, client *api.Client, cfg *config.Config) *AppState {
	return &AppState{
		store:  store,
		client: client,
		cfg:    cfg,
		active: make(map[int64]*sendOp),
	}
}

// Store exposes the underlying store for read paths (listing conversations
// and messages).
func (a *AppState) Store() *storage.Store { return a.store }

// Client exposes the API client for non-send calls (model listing).
func (a *AppState) Client() *api.Client { return a.client }

// Busy reports whether a send is active in the given conversation.
func (a *AppState) Busy(conversationID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.active[conversationID]
	return ok
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage persists the user message, then streams the assistant
// response, delivering events on the returned channel. The channel is closed
// after the terminal event. The user message stays persisted even when the
// response later fails; the assistant message is persisted only on success.
func (a *AppState) SendMessage(ctx context.Context, conversationID int64, text string) (<-chan Event, error) {
	conv, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// History must exclude the message being sent; snapshot before append.
	prior, err := a.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	op, err := a.claim(conversationID)
	if err != nil {
		return nil, err
	}

	if _, err := a.store.AppendMessage(ctx, conversationID, model.RoleUser, text, false, nil); err != nil {
		a.release(conversationID, op)
		return nil, err
	}

	return a.startStream(ctx, conv, op, text, prior), nil
}

// Regenerate discards the last assistant message and re-sends the last user
// message. No new user message is persisted.
func (a *AppState) Regenerate(ctx context.Context, conversationID int64) (<-chan Event, error) {
	conv, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	op, err := a.claim(conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := a.store.ListMessages(ctx, conversationID)
	if err != nil {
		a.release(conversationID, op)
		return nil, err
	}

	// Only an assistant message that ends the conversation is replaced.
	// After a failed send the conversation ends on the user message, and
	// answers from earlier exchanges must not be touched.
	if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
		if err := a.store.DeleteLastAssistantMessage(ctx, conversationID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.release(conversationID, op)
			return nil, err
		}
		msgs = msgs[:n-1]
	}

	// The message to re-send is the trailing user message; everything
	// before it is history.
	last := len(msgs) - 1
	for last >= 0 && msgs[last].Role != model.RoleUser {
		last--
	}
	if last < 0 {
		a.release(conversationID, op)
		return nil, ErrNoUserMessage
	}

	return a.startStream(ctx, conv, op, msgs[last].Content, msgs[:last]), nil
}

// Stop cancels the active send in a conversation, if any, and waits for its
// teardown so the caller can immediately start another send.
func (a *AppState) Stop(conversationID int64) {
	a.mu.Lock()
	op := a.active[conversationID]
	a.mu.Unlock()
	if op == nil {
		return
	}
	log.Printf("stopping send %s in conversation %d", op.id, conversationID)
	op.stop()
	<-op.done
}

// StopAll cancels every active send. Used at shutdown.
func (a *AppState) StopAll() {
	a.mu.Lock()
	ops := make([]*sendOp, 0, len(a.active))
	for _, op := range a.active {
		ops = append(ops, op)
	}
	a.mu.Unlock()

	for _, op := range ops {
		log.Printf("stopping send %s", op.id)
		op.stop()
		<-op.done
	}
}

func (a *AppState) claim(conversationID int64) (*sendOp, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.active[conversationID]; ok {
		return nil, ErrBusy
	}
	op := &sendOp{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	a.active[conversationID] = op
	return op, nil
}

func (a *AppState) release(conversationID int64, op *sendOp) {
	a.mu.Lock()
	if a.active[conversationID] == op {
		delete(a.active, conversationID)
	}
	a.mu.Unlock()
	if op.cancel != nil {
		op.cancel()
	}
	close(op.done)
}

// =============================================================================
// STREAMING PIPELINE
// =============================================================================

// startStream launches the response goroutine and returns its event channel.
// prior is the conversation history excluding the message being sent.
func (a *AppState) startStream(ctx context.Context, conv *model.Conversation, op *sendOp, text string, prior []*model.Message) <-chan Event {
	events := make(chan Event, 64)

	streamCtx, cancel := context.WithCancel(ctx)
	op.cancel = cancel

	req := a.buildRequest(conv, text, prior)

	go func() {
		defer close(events)
		defer a.release(conv.ID, op)

		msg, err := a.runStream(streamCtx, conv, op, req, events)
		if err != nil {
			if !errors.Is(err, ErrStopped) {
				log.Printf("send %s in conversation %d failed: %v", op.id, conv.ID, err)
			}
			events <- Event{Err: err}
			return
		}
		events <- Event{Done: true, Message: msg}

		a.maybeGenerateTitle(conv, text, msg.Content)
	}()

	return events
}

// buildRequest assembles the API request from the conversation settings and
// the configured mode.
func (a *AppState) buildRequest(conv *model.Conversation, text string, prior []*model.Message) api.SendRequest {
	history := make([]api.ChatMessage, 0, len(prior))
	for _, m := range prior {
		switch m.Role {
		case model.RoleUser:
			history = append(history, api.NewUserMessage(m.Content))
		case model.RoleAssistant:
			history = append(history, api.NewAssistantMessage(m.Content))
		}
	}

	req := api.SendRequest{
		Message:      text,
		History:      history,
		UseWebSearch: conv.WebSearchEnabled,
		Stream:       a.cfg.Chat.Stream,
		MaxTokens:    a.cfg.Chat.MaxTokens,
		Model:        conv.Model,
	}
	if mode, ok := config.ModeByName(a.cfg.Chat.Mode); ok {
		req.SystemPrompt = mode.SystemPrompt
		req.Temperature = mode.Temperature
	}
	return req
}

// runStream consumes the response stream, accumulating content, and persists
// the assistant message once the stream completes. On any error the
// accumulated text is discarded.
func (a *AppState) runStream(ctx context.Context, conv *model.Conversation, op *sendOp, req api.SendRequest, events chan<- Event) (*model.Message, error) {
	stream, err := a.client.SendMessage(ctx, req)
	if err != nil {
		return nil, a.mapStreamError(op, err)
	}
	defer stream.Close()

	var content strings.Builder
	var sources []model.WebSource

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, a.mapStreamError(op, err)
		}

		if chunk.WebSources != nil {
			sources = chunk.WebSources
		}
		if chunk.Content != "" || chunk.WebSources != nil {
			select {
			case events <- Event{Delta: chunk.Content, Sources: chunk.WebSources}:
			case <-ctx.Done():
				return nil, a.mapStreamError(op, ctx.Err())
			}
		}
		content.WriteString(chunk.Content)
		if chunk.Done {
			break
		}
	}

	// Reasoning blocks are display-only; persist just the visible text.
	split := model.SplitThinking(content.String())

	// Persist with a fresh context: the send may have raced shutdown, but
	// a completed stream must still be recorded.
	msg, err := a.store.AppendMessage(context.Background(), conv.ID,
		model.RoleAssistant, split.Visible, len(sources) > 0, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	return msg, nil
}

// mapStreamError distinguishes a user-initiated stop from other failures.
func (a *AppState) mapStreamError(op *sendOp, err error) error {
	if op.wasStopped() || errors.Is(err, context.Canceled) {
		return ErrStopped
	}
	return err
}

// =============================================================================
// TITLE GENERATION
// =============================================================================

// maybeGenerateTitle asynchronously generates a conversation title after the
// first exchange. Failures only log; the conversation keeps its default
// title.
func (a *AppState) maybeGenerateTitle(conv *model.Conversation, userText, assistantText string) {
	if conv.Title != model.DefaultTitle {
		return
	}
	n, err := a.store.CountMessages(context.Background(), conv.ID)
	if err != nil || n != 2 {
		return
	}

	go func() {
		title, err := a.generateTitle(userText, assistantText)
		if err != nil {
			log.Printf("title generation failed for conversation %d: %v", conv.ID, err)
			return
		}
		if title == "" {
			return
		}
		if err := a.store.RenameConversation(context.Background(), conv.ID, title); err != nil {
			log.Printf("failed to save generated title for conversation %d: %v", conv.ID, err)
		}
	}()
}

// generateTitle asks the title model for a name and normalizes the result.
func (a *AppState) generateTitle(userText, assistantText string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nUser: %s\n\nAssistant: %s",
		titlePrompt,
		util.TruncateRunesNoEllipsis(userText, 500),
		util.TruncateRunesNoEllipsis(assistantText, 500))

	raw, err := a.client.Complete(context.Background(), api.SendRequest{
		Message: prompt,
		Model:   a.cfg.TitleModel(),
	})
	if err != nil {
		return "", err
	}

	title := util.StripQuotes(util.CollapseLine(raw))
	return util.TruncateRunes(title, titleMaxRunes), nil
}
