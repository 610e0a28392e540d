package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mercurybridge/mercury/pkg/attachments"
	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/config"
	"github.com/mercurybridge/mercury/pkg/echo"
	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
	"github.com/mercurybridge/mercury/pkg/logger"
)

var (
	// ErrMalformedAttachment marks attachments whose required fields
	// cannot be extracted (e.g. unparsable location coordinates).
	ErrMalformedAttachment = errors.New("messenger: malformed attachment")

	// ErrUnsupportedOutboundType is returned when an outbound message's
	// category has no send handler.
	ErrUnsupportedOutboundType = errors.New("messenger: unsupported outbound message type")
)

// Channel bridges a connected Facebook Messenger session and the hub:
// inbound events are normalized and delivered to the hub, outbound hub
// messages are dispatched onto the platform's send operations.
type Channel struct {
	client  fb.Client
	hub     hub.Deliverer
	cfg     config.MessengerConfig
	chats   *chats.Cache
	echo    *echo.Suppressor
	archive *attachments.Store

	running atomic.Bool
}

func NewChannel(client fb.Client, deliverer hub.Deliverer, cfg config.MessengerConfig) *Channel {
	c := &Channel{
		client: client,
		hub:    deliverer,
		cfg:    cfg,
		chats:  chats.NewCache(client),
		echo:   echo.NewSuppressor(cfg.EchoCapacity),
	}
	if cfg.ArchiveAttachments && cfg.ArchivePath != "" {
		c.archive = attachments.NewStore(cfg.ArchiveRoot())
	}
	return c
}

// Start spawns the blocking listen loop in its own goroutine.
func (c *Channel) Start(ctx context.Context) error {
	logger.InfoC("messenger", "Starting Messenger channel (listen mode)...")

	c.running.Store(true)

	go func() {
		if err := c.client.Listen(ctx, c.onEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCF("messenger", "Listen loop terminated", map[string]interface{}{
				"error": err.Error(),
			})
		}
		c.running.Store(false)
	}()

	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	logger.InfoC("messenger", "Stopping Messenger channel...")
	c.running.Store(false)
	return nil
}

func (c *Channel) IsRunning() bool {
	return c.running.Load()
}

// Chats exposes the channel's identity cache.
func (c *Channel) Chats() *chats.Cache {
	return c.chats
}

// GetChat resolves a chat by identifier; with memberID set, the member is
// resolved inside the group identified by chatID.
func (c *Channel) GetChat(ctx context.Context, chatID, memberID string) (*chats.Chat, error) {
	if memberID != "" {
		return c.chats.ResolveMember(ctx, memberID, chatID)
	}
	return c.chats.Resolve(ctx, chatID)
}

func (c *Channel) archiveBlob(msg *hub.Message, kind string) {
	if c.archive == nil || msg.File == nil {
		return
	}
	authorID := ""
	if msg.Author != nil {
		authorID = msg.Author.ID
	}
	threadID := ""
	if msg.Chat != nil {
		threadID = msg.Chat.ID
	}
	rec, err := c.archive.SaveBlob(threadID, authorID, msg.ID, kind, msg.File)
	if err != nil {
		logger.WarnCF("messenger", "Failed to archive attachment", map[string]interface{}{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return
	}
	logger.DebugCF("messenger", "Attachment archived", map[string]interface{}{
		"id":   rec.ID,
		"path": rec.StoredPath,
	})
}

func describeChat(chat *chats.Chat) string {
	if chat == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", chat.Name, chat.ID)
}
