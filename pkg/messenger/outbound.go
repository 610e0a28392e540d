package messenger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"

	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
	"github.com/mercurybridge/mercury/pkg/logger"
	"github.com/mercurybridge/mercury/pkg/media"
)

// Send dispatches one outbound hub message onto the matching platform
// operation and returns the message updated with the remote-assigned id.
// The binary payload, if any, is released on every exit path, and the
// thread is marked seen/read whatever the send outcome was.
func (c *Channel) Send(ctx context.Context, msg *hub.Message) (*hub.Message, error) {
	result, err := c.dispatch(ctx, msg)

	if msg.File != nil {
		if closeErr := msg.File.Close(); closeErr != nil {
			logger.DebugCF("messenger", "Failed to release payload", map[string]interface{}{
				"message_id": msg.ID,
				"error":      closeErr.Error(),
			})
		}
	}

	if seenErr := c.client.MarkAsSeen(ctx); seenErr != nil {
		logger.WarnCF("messenger", "Failed to mark as seen", map[string]interface{}{
			"error": seenErr.Error(),
		})
		if err == nil {
			err = fmt.Errorf("mark as seen: %w", seenErr)
		}
	}
	if msg.Chat != nil {
		if readErr := c.client.MarkAsRead(ctx, msg.Chat.ID); readErr != nil {
			logger.WarnCF("messenger", "Failed to mark as read", map[string]interface{}{
				"chat":  describeChat(msg.Chat),
				"error": readErr.Error(),
			})
			if err == nil {
				err = fmt.Errorf("mark as read: %w", readErr)
			}
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Channel) dispatch(ctx context.Context, msg *hub.Message) (*hub.Message, error) {
	if msg.Chat == nil {
		return nil, fmt.Errorf("outbound message %s has no chat", msg.ID)
	}

	// Send targeting always refetches the thread handle; the identity
	// cache is for inbound resolution only.
	thread, err := c.client.ThreadInfo(ctx, msg.Chat.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: thread %s: %v", chats.ErrLookupFailed, msg.Chat.ID, err)
	}

	req := fb.SendRequest{
		Text:      msg.Text,
		Mentions:  buildMentions(msg),
		ReplyToID: msg.ReplyToID,
	}

	var mid string
	switch msg.Type {
	case hub.Text, hub.Unsupported:
		applyTextShortcuts(&req)
		mid, err = c.client.Send(ctx, thread, req)

	case hub.Image, hub.Sticker, hub.Animation:
		if msg.File == nil {
			return nil, fmt.Errorf("%s message %s has no file payload", msg.Type, msg.ID)
		}
		mid, err = c.client.SendImage(ctx, thread, uploadFile(msg.File), msg.File.MIME == "image/gif", req)

	case hub.Audio:
		mid, err = c.uploadAndSend(ctx, thread, msg, req, true)

	case hub.File, hub.Video:
		mid, err = c.uploadAndSend(ctx, thread, msg, req, false)

	case hub.Status:
		status, ok := msg.Attribute.(hub.StatusAttribute)
		if !ok {
			return nil, fmt.Errorf("status message %s has no status attribute", msg.ID)
		}
		if status.Typing() {
			if err := c.client.SetTypingStatus(ctx, thread, true); err != nil {
				return nil, fmt.Errorf("set typing status: %w", err)
			}
			go c.stopTypingAfter(status.TimeoutMS, thread)
		}
		// Status signals produce no remote message id.
		return msg, nil

	case hub.Link:
		link, ok := msg.Attribute.(hub.LinkAttribute)
		if !ok {
			return nil, fmt.Errorf("link message %s has no link attribute", msg.ID)
		}
		req.Text = c.composeLinkText(msg.Text, link)
		mid, err = c.client.Send(ctx, thread, req)

	case hub.Location:
		location, ok := msg.Attribute.(hub.LocationAttribute)
		if !ok {
			return nil, fmt.Errorf("location message %s has no location attribute", msg.ID)
		}
		mid, err = c.client.SendPinnedLocation(ctx, thread, location.Latitude, location.Longitude, req)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOutboundType, msg.Type)
	}

	if err != nil {
		return nil, err
	}

	if fb.IsSelfMessageID(mid) {
		c.echo.Add(mid)
	}
	msg.ID = mid
	logger.DebugCF("messenger", "Dispatched outbound message", map[string]interface{}{
		"message_id": mid,
		"type":       string(msg.Type),
		"chat":       describeChat(msg.Chat),
	})
	return msg, nil
}

func (c *Channel) uploadAndSend(ctx context.Context, thread fb.Thread, msg *hub.Message, req fb.SendRequest, voiceClip bool) (string, error) {
	if msg.File == nil {
		return "", fmt.Errorf("%s message %s has no file payload", msg.Type, msg.ID)
	}
	fileIDs, err := c.client.Upload(ctx, []fb.UploadFile{uploadFile(msg.File)}, voiceClip)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", msg.File.Name, err)
	}
	return c.client.SendFiles(ctx, thread, fileIDs, req)
}

// stopTypingAfter waits the requested number of milliseconds, then clears
// the typing indicator. It races detached from the dispatch that started
// it; failures (e.g. session closed) are swallowed.
func (c *Channel) stopTypingAfter(timeoutMS int, thread fb.Thread) {
	time.Sleep(time.Duration(timeoutMS) * time.Millisecond)
	if err := c.client.SetTypingStatus(context.Background(), thread, false); err != nil {
		logger.DebugCF("messenger", "Failed to clear typing status", map[string]interface{}{
			"thread_id": thread.ID,
			"error":     err.Error(),
		})
	}
}

// applyTextShortcuts rewrites the two special text shapes: a bare or
// size-tagged thumbs-up becomes a like-sticker send, and a single emoji
// followed by a size letter becomes an emoji-size-tagged text send.
func applyTextShortcuts(req *fb.SendRequest) {
	if req.Text == "👍" {
		req.StickerID = fb.LikeStickerID(fb.EmojiSmall)
		req.Text = ""
		return
	}

	runes := []rune(req.Text)
	if len(runes) < 2 {
		return
	}
	size := sizeOf(runes[len(runes)-1])
	if size == "" {
		return
	}
	head := string(runes[:len(runes)-1])
	switch {
	case head == "👍":
		req.StickerID = fb.LikeStickerID(size)
		req.Text = ""
	case isSingleEmoji(head):
		req.EmojiSize = size
		req.Text = head
	}
}

func sizeOf(r rune) fb.EmojiSize {
	switch r {
	case 'S':
		return fb.EmojiSmall
	case 'M':
		return fb.EmojiMedium
	case 'L':
		return fb.EmojiLarge
	}
	return ""
}

// isSingleEmoji reports whether s is exactly one emoji, including
// multi-codepoint sequences such as variation-selector forms.
func isSingleEmoji(s string) bool {
	found := gomoji.FindAll(s)
	return len(found) == 1 && found[0].Character == s
}

// composeLinkText renders a link attribute as text: title, optionally the
// description, and the URL, each on its own line, behind any existing body.
func (c *Channel) composeLinkText(existing string, link hub.LinkAttribute) string {
	var parts []string
	if link.Title != "" {
		parts = append(parts, link.Title)
	}
	if c.cfg.SendLinkWithDescription && link.Description != "" {
		parts = append(parts, link.Description)
	}
	parts = append(parts, link.URL)

	text := strings.Join(parts, "\n")
	if existing != "" {
		text = existing + "\n" + text
	}
	return text
}

func buildMentions(msg *hub.Message) []fb.Mention {
	if len(msg.Substitutions) == 0 {
		return nil
	}
	mentions := make([]fb.Mention, 0, len(msg.Substitutions))
	for span, chat := range msg.Substitutions {
		if chat == nil {
			continue
		}
		mentions = append(mentions, fb.Mention{
			ThreadID: chat.ID,
			Offset:   span.Begin,
			Length:   span.End - span.Begin,
		})
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].Offset < mentions[j].Offset })
	return mentions
}

func uploadFile(blob *media.Blob) fb.UploadFile {
	return fb.UploadFile{
		Name: blob.Name,
		MIME: blob.MIME,
		R:    blob,
	}
}
