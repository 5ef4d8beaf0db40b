package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchlabs/branch-cli/internal/cache"
)

type agent struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestStoreRoundTrip(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "agents", "https://example.com", 1)

	s.Put([]agent{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})

	var got []agent
	require.True(t, s.Get(&got), "expected cache hit")
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, "Bob", got[1].Name)
}

func TestStoreTTLExpiry(t *testing.T) {
	s := cache.NewStoreWithTTL(t.TempDir(), "agents", "https://example.com", 1, time.Millisecond)

	s.Put([]string{"a"})
	time.Sleep(5 * time.Millisecond)

	var got []string
	assert.False(t, s.Get(&got), "entry past its TTL must miss")
}

func TestStoreMissWhenEmpty(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "agents", "https://example.com", 1)

	var got []string
	assert.False(t, s.Get(&got))
}

func TestStoreClear(t *testing.T) {
	s := cache.NewStore(t.TempDir(), "agents", "https://example.com", 1)

	s.Put([]string{"a"})
	s.Clear()

	var got []string
	assert.False(t, s.Get(&got), "cleared entry must miss")
}

func TestStoreKeyedByAgentAndServer(t *testing.T) {
	dir := t.TempDir()
	base := cache.NewStore(dir, "agents", "https://a.example.com", 1)
	base.Put([]string{"one"})

	var got []string
	otherAgent := cache.NewStore(dir, "agents", "https://a.example.com", 2)
	assert.False(t, otherAgent.Get(&got), "another agent must not see the entry")

	otherServer := cache.NewStore(dir, "agents", "https://b.example.com", 1)
	assert.False(t, otherServer.Get(&got), "another server must not see the entry")
}

func TestStoreDisabledByEnv(t *testing.T) {
	t.Setenv("BRANCH_NO_CACHE", "1")

	s := cache.NewStore(t.TempDir(), "agents", "https://example.com", 1)
	s.Put([]string{"a"})

	var got []string
	assert.False(t, s.Get(&got), "BRANCH_NO_CACHE must bypass the cache")
}

func TestClearAll(t *testing.T) {
	dir := t.TempDir()
	s := cache.NewStore(dir, "agents", "https://example.com", 1)
	s.Put([]string{"a"})

	cache.ClearAll(dir)

	var got []string
	assert.False(t, s.Get(&got), "ClearAll must drop every entry in the dir")
}
