// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - slash command handlers for the interactive chat loop.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/nanochat/internal/api"
	"github.com/jeranaias/nanochat/internal/config"
	"github.com/jeranaias/nanochat/internal/model"
	"github.com/jeranaias/nanochat/internal/storage"
)

// dispatch routes one slash command. The bool result requests exit.
func (s *ChatSession) dispatch(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/h":
		s.printHelp()
	case "/quit", "/q", "/exit":
		return true, nil
	case "/new":
		return false, s.cmdNew(strings.TrimSpace(strings.TrimPrefix(input, fields[0])))
	case "/list", "/ls":
		return false, s.cmdList()
	case "/open":
		return false, s.cmdOpen(args)
	case "/rename":
		return false, s.cmdRename(strings.TrimSpace(strings.TrimPrefix(input, fields[0])))
	case "/delete", "/rm":
		return false, s.cmdDelete(args)
	case "/web":
		return false, s.cmdWeb(args)
	case "/regen", "/r", "/regenerate":
		s.cmdRegenerate()
	case "/mode":
		return false, s.cmdMode(args)
	case "/models":
		return false, s.cmdModels()
	case "/model":
		return false, s.cmdModel(args)
	case "/projects":
		return false, s.cmdProjects()
	case "/project":
		return false, s.cmdProject(args)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (s *ChatSession) printHelp() {
	rows := [][2]string{
		{"/new [title]", "start a new conversation"},
		{"/list", "list conversations"},
		{"/open N", "switch to conversation N"},
		{"/rename TITLE", "rename the current conversation"},
		{"/delete [N]", "delete a conversation (current if N omitted)"},
		{"/web [on|off]", "show or toggle web search"},
		{"/regen", "regenerate the last assistant response"},
		{"/mode [name]", "show or switch the conversation mode"},
		{"/models", "list available models"},
		{"/model [name]", "show or switch the model"},
		{"/projects", "list projects"},
		{"/project new NAME", "create a project"},
		{"/project delete N", "delete a project (conversations are kept)"},
		{"/project assign N", "assign the current conversation to project N"},
		{"/quit", "exit"},
	}
	for _, row := range rows {
		fmt.Printf("  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-18s", row[0])), infoStyle.Render(row[1]))
	}
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func (s *ChatSession) cmdNew(title string) error {
	if err := s.newConversation(title); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("started conversation: " + s.conv.Title))
	return nil
}

func (s *ChatSession) cmdList() error {
	convs, err := s.app.Store().ListConversations(context.Background())
	if err != nil {
		return err
	}
	for _, c := range convs {
		marker := "  "
		if c.ID == s.conv.ID {
			marker = promptStyle.Render("* ")
		}
		web := ""
		if c.WebSearchEnabled {
			web = " [web]"
		}
		fmt.Printf("%s%-4d %s%s %s\n", marker, c.ID, c.Title, web,
			infoStyle.Render(fmt.Sprintf("(%d messages, %s)", c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	}
	return nil
}

func (s *ChatSession) cmdOpen(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /open N")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", args[0])
	}
	conv, err := s.app.Store().GetConversation(context.Background(), id)
	if err != nil {
		return err
	}
	s.conv = conv
	fmt.Println(infoStyle.Render("switched to: " + conv.Title))
	return s.printTranscriptTail()
}

// printTranscriptTail shows the last exchange when resuming a conversation.
func (s *ChatSession) printTranscriptTail() error {
	msgs, err := s.app.Store().ListMessages(context.Background(), s.conv.ID)
	if err != nil {
		return err
	}
	start := len(msgs) - 2
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		label := userStyle.Render(m.Role.DisplayName())
		if m.Role == model.RoleAssistant {
			label = assistantStyle.Render(m.Role.DisplayName())
		}
		fmt.Println(label)
		if rendered, err := s.renderer.Render(m.Content); err == nil {
			fmt.Print(rendered)
		} else {
			fmt.Println(m.Content)
		}
	}
	return nil
}

func (s *ChatSession) cmdRename(title string) error {
	if title == "" {
		return errors.New("usage: /rename TITLE")
	}
	if err := s.app.Store().RenameConversation(context.Background(), s.conv.ID, title); err != nil {
		return err
	}
	s.conv.Title = title
	fmt.Println(infoStyle.Render("renamed to: " + title))
	return nil
}

func (s *ChatSession) cmdDelete(args []string) error {
	ctx := context.Background()
	id := s.conv.ID
	if len(args) == 1 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id %q", args[0])
		}
		id = parsed
	}

	if err := s.app.Store().DeleteConversation(ctx, id); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("deleted conversation %d", id)))

	if id == s.conv.ID {
		return s.openLatestOrCreate()
	}
	return nil
}

func (s *ChatSession) cmdWeb(args []string) error {
	ctx := context.Background()
	switch {
	case len(args) == 0:
		onOff := "off"
		if s.conv.WebSearchEnabled {
			onOff = "on"
		}
		fmt.Println(infoStyle.Render("web search is " + onOff))
		return nil
	case args[0] == "on" || args[0] == "off":
		enabled := args[0] == "on"
		if err := s.app.Store().SetWebSearchEnabled(ctx, s.conv.ID, enabled); err != nil {
			return err
		}
		s.conv.WebSearchEnabled = enabled
		fmt.Println(infoStyle.Render("web search " + args[0]))
		return nil
	default:
		return errors.New("usage: /web [on|off]")
	}
}

func (s *ChatSession) cmdRegenerate() {
	events, err := s.app.Regenerate(context.Background(), s.conv.ID)
	if err != nil {
		fmt.Println(errorStyle.Render("error: " + describeError(err)))
		return
	}
	s.consume(events)
}

// =============================================================================
// MODE AND MODEL COMMANDS
// =============================================================================

func (s *ChatSession) cmdMode(args []string) error {
	if len(args) == 0 {
		mode, _ := config.ModeByName(s.cfg.Chat.Mode)
		fmt.Println(infoStyle.Render("mode: " + mode.Label))
		for _, m := range config.Modes() {
			marker := "  "
			if m.Name == mode.Name {
				marker = promptStyle.Render("* ")
			}
			fmt.Printf("%s%-10s %s\n", marker, m.Name,
				infoStyle.Render(fmt.Sprintf("temperature %.1f", m.Temperature)))
		}
		return nil
	}

	mode, ok := config.ModeByName(args[0])
	if !ok {
		return fmt.Errorf("unknown mode %q (valid: %s)", args[0], strings.Join(config.ModeNames(), ", "))
	}
	s.cfg.Chat.Mode = mode.Name
	fmt.Println(infoStyle.Render("mode set to " + mode.Label))
	return nil
}

func (s *ChatSession) cmdModels() error {
	models, err := s.listModels()
	if err != nil {
		return err
	}
	for _, m := range models {
		marker := "  "
		if m == s.conv.Model {
			marker = promptStyle.Render("* ")
		}
		fmt.Println(marker + m)
	}
	return nil
}

// listModels serves the model list from the cache, refreshing on a miss.
func (s *ChatSession) listModels() ([]string, error) {
	cache := api.NewModelCache(s.cfg.Storage.ModelCachePath)
	if models, ok := cache.Get(); ok {
		return models, nil
	}

	models, err := s.app.Client().ListModels(context.Background())
	if err != nil {
		return nil, err
	}
	if err := cache.Put(models); err != nil {
		fmt.Println(warningStyle.Render("warning: could not cache model list: " + err.Error()))
	}
	return models, nil
}

func (s *ChatSession) cmdModel(args []string) error {
	if len(args) == 0 {
		fmt.Println(infoStyle.Render("model: " + s.conv.Model))
		return nil
	}
	name := args[0]
	if err := s.app.Store().SetConversationModel(context.Background(), s.conv.ID, name); err != nil {
		return err
	}
	s.conv.Model = name
	fmt.Println(infoStyle.Render("model set to " + name))
	return nil
}

// =============================================================================
// PROJECT COMMANDS
// =============================================================================

func (s *ChatSession) cmdProjects() error {
	ctx := context.Background()
	projects, err := s.app.Store().ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println(infoStyle.Render("no projects (create one with /project new NAME)"))
		return nil
	}
	for _, p := range projects {
		convs, err := s.app.Store().ListConversationsByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  %-4d %s %s\n", p.ID, p.Name,
			infoStyle.Render(fmt.Sprintf("(%d conversations)", len(convs))))
	}
	return nil
}

func (s *ChatSession) cmdProject(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: /project new NAME | delete N | assign N | unassign")
	}
	ctx := context.Background()

	switch args[0] {
	case "new":
		if len(args) < 2 {
			return errors.New("usage: /project new NAME")
		}
		name := strings.Join(args[1:], " ")
		p, err := s.app.Store().CreateProject(ctx, name, "", "")
		if err != nil {
			return err
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("created project %d: %s", p.ID, p.Name)))
		return nil

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: /project delete N")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[1])
		}
		if err := s.app.Store().DeleteProject(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no project %d", id)
			}
			return err
		}
		fmt.Println(infoStyle.Render("project deleted; its conversations were kept"))
		return nil

	case "assign":
		if len(args) != 2 {
			return errors.New("usage: /project assign N")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[1])
		}
		if err := s.app.Store().AssignConversationToProject(ctx, s.conv.ID, id); err != nil {
			return err
		}
		fmt.Println(infoStyle.Render("conversation assigned"))
		return nil

	case "unassign":
		if err := s.app.Store().AssignConversationToProject(ctx, s.conv.ID, 0); err != nil {
			return err
		}
		fmt.Println(infoStyle.Render("conversation unassigned"))
		return nil

	default:
		return fmt.Errorf("unknown project subcommand %q", args[0])
	}
}
