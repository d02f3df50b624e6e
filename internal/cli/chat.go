// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive chat REPL for nanochat.
//
// Handles the interactive loop: prompting with history support, streaming
// assistant output, and slash commands for managing conversations, modes,
// models, and projects.
//
// Interactive commands:
//
//	/help, /h            Show available commands
//	/new [title]         Start a new conversation
//	/list, /ls           List conversations
//	/open N              Switch to conversation N
//	/rename TITLE        Rename the current conversation
//	/delete [N]          Delete a conversation (current if N omitted)
//	/web [on|off]        Show or toggle web search for this conversation
//	/regen, /r           Regenerate the last assistant response
//	/mode [name]         Show or switch the conversation mode
//	/models              List available models
//	/model [name]        Show or switch the model for this conversation
//	/projects            List projects
//	/project ...         Manage projects (new, delete, assign)
//	/quit, /q            Exit
//	Ctrl+C               Stop the current generation
//	Ctrl+D               Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/nanochat/internal/api"
	"github.com/jeranaias/nanochat/internal/config"
	"github.com/jeranaias/nanochat/internal/model"
	"github.com/jeranaias/nanochat/internal/state"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.Dir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.loadHistory()
	return c
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Non-empty input is
// added to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

func (c *ChatCLI) saveHistory() {
	if err := config.EnsureDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession holds the state for one interactive session.
type ChatSession struct {
	app  *state.AppState
	cfg  *config.Config
	conv *model.Conversation

	input    *ChatCLI
	renderer *glamour.TermRenderer
}

// NewChatSession creates a session around an AppState, opening or creating
// the most recent conversation.
func NewChatSession(app *state.AppState, cfg *config.Config) (*ChatSession, error) {
	renderer, err := newMarkdownRenderer(cfg.UI.Theme)
	if err != nil {
		return nil, err
	}

	s := &ChatSession{
		app:      app,
		cfg:      cfg,
		input:    NewChatCLI(),
		renderer: renderer,
	}

	if err := s.openLatestOrCreate(); err != nil {
		s.input.Close()
		return nil, err
	}
	return s, nil
}

func newMarkdownRenderer(theme string) (*glamour.TermRenderer, error) {
	if theme == "auto" {
		return glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme),
		glamour.WithWordWrap(100),
	)
}

// openLatestOrCreate resumes the most recently updated conversation or
// starts a fresh one.
func (s *ChatSession) openLatestOrCreate() error {
	ctx := context.Background()
	convs, err := s.app.Store().ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) > 0 {
		s.conv = convs[0]
		return nil
	}
	return s.newConversation("")
}

func (s *ChatSession) newConversation(title string) error {
	ctx := context.Background()
	conv, err := s.app.Store().CreateConversation(ctx, title, s.cfg.Chat.Model)
	if err != nil {
		return err
	}
	if s.cfg.Chat.WebSearchDefault {
		if err := s.app.Store().SetWebSearchEnabled(ctx, conv.ID, true); err == nil {
			conv.WebSearchEnabled = true
		}
	}
	s.conv = conv
	return nil
}

// reloadConversation refreshes the cached conversation row (title, toggles).
func (s *ChatSession) reloadConversation() {
	if conv, err := s.app.Store().GetConversation(context.Background(), s.conv.ID); err == nil {
		s.conv = conv
	}
}

// Close releases session resources.
func (s *ChatSession) Close() {
	s.app.StopAll()
	s.input.Close()
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run starts the interactive loop and blocks until the user exits.
func (s *ChatSession) Run() error {
	fmt.Println(welcomeStyle.Render("nanochat"))
	fmt.Println(infoStyle.Render(fmt.Sprintf("conversation: %s | model: %s | /help for commands",
		s.conv.Title, s.conv.Model)))
	fmt.Println()

	for {
		input, err := s.input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			// Ctrl+D or terminal closed.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := s.dispatch(input)
			if err != nil {
				fmt.Println(errorStyle.Render("error: " + err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		s.send(input)
	}
}

// send streams one message exchange to the terminal.
func (s *ChatSession) send(text string) {
	events, err := s.app.SendMessage(context.Background(), s.conv.ID, text)
	if err != nil {
		fmt.Println(errorStyle.Render("error: " + describeError(err)))
		return
	}
	s.consume(events)
}

// consume drains one send's event channel, stopping on Ctrl+C.
func (s *ChatSession) consume(events <-chan Event) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()

	go func() {
		if _, ok := <-sigs; ok {
			s.app.Stop(s.conv.ID)
		}
	}()

	fmt.Println(assistantStyle.Render("assistant"))

	var sources []model.WebSource
	var streamed strings.Builder
	var filter *thinkingFilter
	if !s.cfg.UI.ShowThinking {
		filter = &thinkingFilter{}
	}
	for ev := range events {
		switch {
		case ev.Err != nil:
			fmt.Println()
			if errors.Is(ev.Err, state.ErrStopped) {
				fmt.Println(warningStyle.Render("generation stopped"))
			} else {
				fmt.Println(errorStyle.Render("error: " + describeError(ev.Err)))
			}
			return

		case ev.Done:
			if filter != nil {
				tail := filter.Flush()
				fmt.Print(tail)
				streamed.WriteString(tail)
			}
			fmt.Println()
			s.renderFinal(ev.Message, streamed.Len())
			if len(sources) == 0 && ev.Message != nil {
				sources = ev.Message.WebSources
			}
			s.printSources(sources)
			s.reloadConversation()
			return

		default:
			if ev.Sources != nil {
				sources = ev.Sources
			}
			delta := ev.Delta
			if filter != nil {
				delta = filter.Write(delta)
			}
			fmt.Print(delta)
			streamed.WriteString(delta)
		}
	}
}

// Event aliases the state package's event for the consume helper.
type Event = state.Event

// renderFinal re-renders the persisted assistant message as markdown below
// the raw stream. Rendering failures keep the raw stream output.
func (s *ChatSession) renderFinal(msg *model.Message, streamedLen int) {
	if msg == nil || msg.Content == "" {
		return
	}
	rendered, err := s.renderer.Render(msg.Content)
	if err != nil {
		return
	}
	// When the persisted content differs from what streamed (reasoning
	// stripped), or markdown adds structure, show the rendered form.
	if streamedLen > 0 {
		fmt.Println()
	}
	fmt.Print(rendered)
}

func (s *ChatSession) printSources(sources []model.WebSource) {
	if !s.cfg.UI.ShowSources || len(sources) == 0 {
		return
	}
	fmt.Println(infoStyle.Render("sources:"))
	for _, src := range sources {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		fmt.Println(sourceStyle.Render(fmt.Sprintf("  - %s (%s)", title, src.URL)))
	}
}

// describeError flattens the API error taxonomy into user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, api.ErrNotConfigured):
		return "no API key configured; set NANOCHAT_API_KEY or api.key in config"
	case errors.Is(err, api.ErrAuthFailed):
		return "authentication failed; check your API key"
	case errors.Is(err, api.ErrRateLimited):
		return "rate limited; wait a moment and try again"
	case errors.Is(err, api.ErrTimeout):
		return "request timed out"
	case errors.Is(err, api.ErrConnection):
		return "could not reach the backend"
	default:
		return err.Error()
	}
}
