package messenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/media"
)

// ErrNoChatPicture is returned when a chat has no profile picture on the
// remote side.
var ErrNoChatPicture = errors.New("messenger: chat has no picture")

// ChatPicture downloads the profile picture of a chat. The cached picture
// URL is tried first; a stale or missing URL triggers one thread-info
// refetch before giving up.
func (c *Channel) ChatPicture(ctx context.Context, chatID string) (*media.Blob, error) {
	url := ""
	if chat, ok := c.chats.Cached(chatID); ok {
		url = chat.PictureURL
	}

	if url == "" {
		thread, err := c.client.ThreadInfo(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("%w: thread %s: %v", chats.ErrLookupFailed, chatID, err)
		}
		c.chats.Put(chats.FromThread(thread))
		url = thread.PictureURL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoChatPicture, chatID)
	}

	return c.fetchBlob(url, "profile.png", "image/png")
}
