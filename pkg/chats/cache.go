package chats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/logger"
)

// ErrLookupFailed wraps remote thread-info lookup failures. Lookups are
// not retried; the caller decides.
var ErrLookupFailed = errors.New("chats: remote lookup failed")

// Cache resolves remote identifiers to Chat entities, memoized for the
// cache's lifetime. Entries are never invalidated; callers that need
// freshness must query the client directly. One cache is owned by each
// channel instance so sessions and tests stay isolated.
type Cache struct {
	mu      sync.RWMutex
	client  fb.Client
	entries map[string]*Chat
}

func NewCache(client fb.Client) *Cache {
	return &Cache{
		client:  client,
		entries: make(map[string]*Chat),
	}
}

// Put seeds the cache with an already-resolved chat (e.g. the session's
// own identity).
func (c *Cache) Put(chat *Chat) {
	if chat == nil || chat.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[chat.ID]; !ok {
		c.entries[chat.ID] = chat
	}
}

// Cached returns the cached entry without touching the network.
func (c *Cache) Cached(id string) (*Chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chat, ok := c.entries[id]
	return chat, ok
}

// Resolve returns the chat for a remote identifier, fetching thread info
// on a cache miss. Concurrent misses may both fetch, but only the first
// write wins; the cache holds one entry per key.
func (c *Cache) Resolve(ctx context.Context, id string) (*Chat, error) {
	if chat, ok := c.Cached(id); ok {
		return chat, nil
	}

	thread, err := c.client.ThreadInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: thread %s: %v", ErrLookupFailed, id, err)
	}
	chat := FromThread(thread)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[id]; ok {
		return existing, nil
	}
	c.entries[id] = chat
	logger.DebugCF("chats", "Resolved chat", map[string]interface{}{
		"id":   id,
		"kind": string(chat.Kind),
	})
	return chat, nil
}

// ResolveMember resolves a user inside a group: the returned chat carries
// a reference to the parent group and is marked as a member entity. The
// cached entry is left untouched; member views are per-call copies so a
// later plain Resolve of the same id still yields the standalone chat.
func (c *Cache) ResolveMember(ctx context.Context, memberID, groupID string) (*Chat, error) {
	member, err := c.Resolve(ctx, memberID)
	if err != nil {
		return nil, err
	}
	group, err := c.Resolve(ctx, groupID)
	if err != nil {
		return nil, err
	}

	view := *member
	view.Member = true
	view.Group = group
	return &view, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
