package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxEntries = 4096

// Cache is a bounded key/value store whose entries expire after a fixed TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
}

type ttlCache[K comparable, V any] struct {
	lru *lru.LRU[K, V]
}

// NewTTLCache returns an LRU cache evicting entries older than ttl.
// A non-positive size falls back to the package default.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) Cache[K, V] {
	if size <= 0 {
		size = defaultMaxEntries
	}
	return &ttlCache[K, V]{lru: lru.NewLRU[K, V](size, nil, ttl)}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *ttlCache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

func (c *ttlCache[K, V]) Len() int {
	return c.lru.Len()
}

// Key joins the non-empty, lower-cased parts with "|".
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
