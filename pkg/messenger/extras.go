package messenger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/logger"
)

// DefaultThreadLimit bounds thread enumeration when the caller passes no
// explicit limit.
const DefaultThreadLimit = 20

// ListChats enumerates the session's conversations, newest first, and
// seeds the identity cache with every thread returned. Pending and
// archived folders are included only when enabled in configuration.
func (c *Channel) ListChats(ctx context.Context, limit int) ([]*chats.Chat, error) {
	if limit <= 0 {
		limit = DefaultThreadLimit
	}

	locations := []fb.ThreadLocation{fb.LocationInbox}
	if c.cfg.ShowPendingThreads {
		locations = append(locations, fb.LocationPending, fb.LocationOther)
	}
	if c.cfg.ShowArchivedThreads {
		locations = append(locations, fb.LocationArchived)
	}

	threads, err := c.client.ThreadList(ctx, limit, locations...)
	if err != nil {
		return nil, fmt.Errorf("%w: thread list: %v", chats.ErrLookupFailed, err)
	}

	result := make([]*chats.Chat, 0, len(threads))
	for _, thread := range threads {
		chat := chats.FromThread(thread)
		c.chats.Put(chat)
		result = append(result, chat)
	}
	logger.DebugCF("messenger", "Enumerated chats", map[string]interface{}{
		"count":     len(result),
		"locations": len(locations),
	})
	return result, nil
}

// ThreadsList renders the session's conversations as a numbered listing.
func (c *Channel) ThreadsList(ctx context.Context, limit int) (string, error) {
	list, err := c.ListChats(ctx, limit)
	if err != nil {
		return "", err
	}
	return formatChatListing("Threads:", list), nil
}

// SearchEntities looks up users, groups, pages or threads by keyword and
// renders the hits as a numbered listing.
func (c *Channel) SearchEntities(ctx context.Context, kind fb.SearchKind, query string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultThreadLimit
	}
	threads, err := c.client.Search(ctx, kind, query, limit)
	if err != nil {
		return "", fmt.Errorf("%w: search %s %q: %v", chats.ErrLookupFailed, kind, query, err)
	}

	list := make([]*chats.Chat, 0, len(threads))
	for _, thread := range threads {
		chat := chats.FromThread(thread)
		c.chats.Put(chat)
		list = append(list, chat)
	}
	header := fmt.Sprintf("Search results for %q (%s):", query, kind)
	return formatChatListing(header, list), nil
}

func formatChatListing(header string, list []*chats.Chat) string {
	var sb strings.Builder
	sb.WriteString(header)
	if len(list) == 0 {
		sb.WriteString("\n(no results)")
		return sb.String()
	}
	for i, chat := range list {
		fmt.Fprintf(&sb, "\n%d. %s (%s, %s)", i+1, chat.Name, chat.ID, chat.Kind)
	}
	return sb.String()
}
