// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCacheRoundTrip(t *testing.T) {
	cache := NewModelCache(filepath.Join(t.TempDir(), "models.json"))

	require.NoError(t, cache.Put([]string{"a/one", "b/two"}))

	models, ok := cache.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"a/one", "b/two"}, models)
}

func TestModelCacheMissWhenAbsent(t *testing.T) {
	cache := NewModelCache(filepath.Join(t.TempDir(), "missing.json"))
	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestModelCacheMissOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o644))

	_, ok := NewModelCache(path).Get()
	assert.False(t, ok)
}

func TestModelCacheMissOnVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	// Fresh timestamp but wrong version: still a miss.
	raw, err := json.Marshal(cacheFile{
		Version:   cacheVersion + 1,
		FetchedAt: time.Now().UTC(),
		Models:    []string{"a/one"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, ok := NewModelCache(path).Get()
	assert.False(t, ok)
}

func TestModelCacheMissWhenExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	raw, err := json.Marshal(cacheFile{
		Version:   cacheVersion,
		FetchedAt: time.Now().UTC().Add(-25 * time.Hour),
		Models:    []string{"a/one"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, ok := NewModelCache(path).Get()
	assert.False(t, ok)
}

func TestModelCacheWithTTL(t *testing.T) {
	cache := NewModelCache(filepath.Join(t.TempDir(), "models.json")).WithTTL(time.Nanosecond)
	require.NoError(t, cache.Put([]string{"a/one"}))

	time.Sleep(time.Millisecond)
	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestModelCacheClear(t *testing.T) {
	cache := NewModelCache(filepath.Join(t.TempDir(), "models.json"))
	require.NoError(t, cache.Put([]string{"a/one"}))
	require.NoError(t, cache.Clear())

	_, ok := cache.Get()
	assert.False(t, ok)

	// Clearing again tolerates the missing file.
	require.NoError(t, cache.Clear())
}
