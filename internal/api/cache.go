// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/nanochat/internal/util"
)

// =============================================================================
// MODEL CACHE
// =============================================================================

// cacheVersion is bumped whenever the on-disk shape changes; any mismatch
// invalidates the file wholesale.
const cacheVersion = 1

// DefaultCacheTTL is how long a cached model list stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// ModelCache persists the backend's model list between runs so startup does
// not need a network round trip. Every read failure is a cache miss, never
// an error: a corrupt or stale file just forces a refetch.
type ModelCache struct {
	path string
	ttl  time.Duration
}

type cacheFile struct {
	Version   int       `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	Models    []string  `json:"models"`
}

// NewModelCache creates a cache backed by the given file path.
func NewModelCache(path string) *ModelCache {
	return &ModelCache{path: path, ttl: DefaultCacheTTL}
}

// WithTTL overrides the freshness window, used by tests.
func (c *ModelCache) WithTTL(ttl time.Duration) *ModelCache {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// Get returns the cached model list and true when the cache is present,
// well-formed, version-matched, and fresh. Anything else is a miss.
func (c *ModelCache) Get() ([]string, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var f cacheFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	if f.Version != cacheVersion {
		return nil, false
	}
	if time.Since(f.FetchedAt) > c.ttl {
		return nil, false
	}
	return f.Models, true
}

// Put writes the model list with the current timestamp. The write is atomic
// so a crash never leaves a truncated cache behind.
func (c *ModelCache) Put(models []string) error {
	f := cacheFile{
		Version:   cacheVersion,
		FetchedAt: time.Now().UTC(),
		Models:    models,
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model cache: %w", err)
	}
	return util.AtomicWriteFile(c.path, raw, 0o644)
}

// Clear removes the cache file. A missing file is not an error.
func (c *ModelCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear model cache: %w", err)
	}
	return nil
}
