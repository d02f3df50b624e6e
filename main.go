// nanochat - a terminal chat client for OpenAI-compatible LLM backends.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jeranaias/nanochat/internal/api"
	"github.com/jeranaias/nanochat/internal/cli"
	"github.com/jeranaias/nanochat/internal/config"
	"github.com/jeranaias/nanochat/internal/state"
	"github.com/jeranaias/nanochat/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.nanochat/config.toml)")
		showVersion = flag.Bool("version", false, "print version and exit")
		modelFlag   = flag.String("model", "", "override the chat model for this session")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("nanochat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath, *modelFlag); err != nil {
		fmt.Fprintln(os.Stderr, "nanochat:", err)
		os.Exit(1)
	}
}

func run(configPath, modelOverride string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modelOverride != "" {
		cfg.Chat.Model = modelOverride
	}
	config.SetGlobal(cfg)

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	client := api.NewClient(cfg.API.Key).
		WithBaseURL(cfg.API.BaseURL).
		WithModel(cfg.Chat.Model).
		WithTimeout(cfg.Timeout())

	app := state.New(store, client, cfg)

	session, err := cli.NewChatSession(app, cfg)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	// Reload config edits while the session runs. Model and mode changes
	// apply to the next message; storage paths require a restart.
	watcher, err := watchConfig(configPath)
	if err != nil {
		log.Printf("config watch disabled: %v", err)
	} else if watcher != nil {
		defer watcher.Close()
	}

	return session.Run()
}

func watchConfig(configPath string) (*config.Watcher, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		// No file to watch until the user writes one.
		return nil, nil
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		log.Printf("config reloaded from %s", path)
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		return nil, err
	}
	return w, nil
}
