package cache_test

import (
	"testing"
	"time"

	"github.com/memvault/memvault/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := cache.NewLRUCache(16)
	c.Set("a", "1", time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestLRUCacheExpires(t *testing.T) {
	c := cache.NewLRUCache(16)
	c.Set("a", "1", -time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUCacheClearPrefix(t *testing.T) {
	c := cache.NewLRUCache(16)
	c.Set("recall:ws1:abc", "x", time.Minute)
	c.Set("recall:ws1:def", "y", time.Minute)
	c.Set("recall:ws2:abc", "z", time.Minute)

	c.ClearPrefix("recall:ws1:")

	_, ok1 := c.Get("recall:ws1:abc")
	_, ok2 := c.Get("recall:ws1:def")
	_, ok3 := c.Get("recall:ws2:abc")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestLRUCacheMiss(t *testing.T) {
	c := cache.NewLRUCache(16)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}
