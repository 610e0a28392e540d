package messenger

import (
	"context"
	"fmt"

	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
	"github.com/mercurybridge/mercury/pkg/logger"
)

// onEvent translates one inbound message event into normalized hub
// deliveries. It runs on the listen loop.
func (c *Channel) onEvent(ctx context.Context, ev *fb.MessageEvent) {
	// Drain echoes of our own sends before doing any work.
	if c.echo.TakeIf(ev.ID) {
		logger.DebugCF("messenger", "Suppressed echo of own message", map[string]interface{}{
			"message_id": ev.ID,
		})
		return
	}

	author, err := c.chats.Resolve(ctx, ev.AuthorID)
	if err != nil {
		logger.ErrorCF("messenger", "Failed to resolve author", map[string]interface{}{
			"author_id": ev.AuthorID,
			"error":     err.Error(),
		})
		return
	}
	chat, err := c.chats.Resolve(ctx, ev.ThreadID)
	if err != nil {
		logger.ErrorCF("messenger", "Failed to resolve thread", map[string]interface{}{
			"thread_id": ev.ThreadID,
			"error":     err.Error(),
		})
		return
	}

	shell := &hub.Message{
		ID:     ev.ID,
		Type:   hub.Text,
		Text:   ev.Text,
		Author: author,
		Chat:   chat,
	}

	if ev.EmojiSize != "" {
		shell.Text += fmt.Sprintf(" (%s)", ev.EmojiSize)
	}

	// The mention map is computed but not attached to the delivered
	// envelope; see DESIGN.md for the open question this carries over.
	if len(ev.Mentions) > 0 {
		mentions := make(map[hub.Span]string, len(ev.Mentions))
		for _, m := range ev.Mentions {
			mentions[hub.Span{Begin: m.Offset, End: m.Offset + m.Length}] = m.ThreadID
		}
		logger.DebugCF("messenger", "Inbound mentions", map[string]interface{}{
			"message_id": ev.ID,
			"mentions":   fmt.Sprintf("%v", mentions),
		})
	}

	switch {
	case len(ev.Attachments) > 1:
		// Fan out: one normalized message per attachment, in source order.
		// One attachment's failure must not block its siblings.
		for i, att := range ev.Attachments {
			sub := *shell
			sub.ID = fmt.Sprintf("%s.%d", ev.ID, i)
			if err := c.transcode(ctx, &sub, att); err != nil {
				logger.ErrorCF("messenger", "Failed to transcode attachment", map[string]interface{}{
					"message_id": sub.ID,
					"kind":       att.Classify().String(),
					"error":      err.Error(),
				})
				continue
			}
			c.archiveBlob(&sub, att.Classify().String())
			c.deliver(ctx, &sub)
		}

	case len(ev.Attachments) == 1:
		if err := c.transcode(ctx, shell, ev.Attachments[0]); err != nil {
			logger.ErrorCF("messenger", "Failed to transcode attachment", map[string]interface{}{
				"message_id": ev.ID,
				"kind":       ev.Attachments[0].Classify().String(),
				"error":      err.Error(),
			})
			break
		}
		c.archiveBlob(shell, ev.Attachments[0].Classify().String())
		c.deliver(ctx, shell)

	default:
		c.deliver(ctx, shell)
	}

	// Acknowledge receipt regardless of transcoding outcome.
	if err := c.client.MarkAsDelivered(ctx, ev.ThreadID, ev.ID); err != nil {
		logger.WarnCF("messenger", "Failed to mark as delivered", map[string]interface{}{
			"thread_id":  ev.ThreadID,
			"message_id": ev.ID,
			"error":      err.Error(),
		})
	}
}

func (c *Channel) deliver(ctx context.Context, msg *hub.Message) {
	if err := c.hub.Deliver(ctx, msg); err != nil {
		logger.ErrorCF("messenger", "Hub rejected message", map[string]interface{}{
			"message_id": msg.ID,
			"chat":       describeChat(msg.Chat),
			"error":      err.Error(),
		})
		return
	}
	logger.DebugCF("messenger", "Delivered inbound message", map[string]interface{}{
		"message_id": msg.ID,
		"type":       string(msg.Type),
	})
}
