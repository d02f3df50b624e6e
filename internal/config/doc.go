// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nanochat.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - APIConfig: backend endpoint and credentials
//   - ChatConfig: generation behavior (model, streaming, modes)
//   - Mode: conversation mode table (system prompt, temperature)
//   - Watcher: live reload of the config file via fsnotify
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NANOCHAT_*)
//   - ~/.nanochat/config.toml
//   - Built-in defaults
//
// The config file carries the API key and is kept at 0600 permissions.
package config
