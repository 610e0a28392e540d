package fb

import (
	"context"
	"errors"
	"io"
)

// ErrSessionClosed is returned by client calls made after the session has
// been torn down.
var ErrSessionClosed = errors.New("fb: session closed")

// SearchKind selects what entity class a Search call looks through.
type SearchKind string

const (
	SearchUsers   SearchKind = "users"
	SearchGroups  SearchKind = "groups"
	SearchPages   SearchKind = "pages"
	SearchThreads SearchKind = "threads"
)

// UploadFile is one file handed to the platform's upload endpoint.
type UploadFile struct {
	Name string
	MIME string
	R    io.Reader
}

// EventHandler receives one inbound message event from the listen loop.
type EventHandler func(ctx context.Context, ev *MessageEvent)

// Client is the connected remote-platform session this bridge translates
// against. Connection management, authentication and the wire protocol
// itself live behind this interface and are not part of the bridge core.
type Client interface {
	// ThreadInfo performs a lightweight thread-info query.
	ThreadInfo(ctx context.Context, id string) (Thread, error)
	// ThreadList enumerates threads in the given locations.
	ThreadList(ctx context.Context, limit int, locations ...ThreadLocation) ([]Thread, error)
	// Search looks up users, groups, pages or threads by keyword.
	Search(ctx context.Context, kind SearchKind, query string, limit int) ([]Thread, error)

	// OriginalImageURL follows the image indirection endpoint and returns
	// the original-resolution download URL for an image attachment id.
	OriginalImageURL(ctx context.Context, attachmentID string) (string, error)

	// Send performs a plain send and returns the remote message id.
	Send(ctx context.Context, thread Thread, req SendRequest) (string, error)
	// SendImage uploads an image and sends it as an image attachment.
	SendImage(ctx context.Context, thread Thread, file UploadFile, isGIF bool, req SendRequest) (string, error)
	// Upload stores files remotely and returns their opaque file ids.
	Upload(ctx context.Context, files []UploadFile, voiceClip bool) ([]string, error)
	// SendFiles sends previously uploaded files as a file-attachment message.
	SendFiles(ctx context.Context, thread Thread, fileIDs []string, req SendRequest) (string, error)
	// SendPinnedLocation sends a pinned-location message.
	SendPinnedLocation(ctx context.Context, thread Thread, latitude, longitude float64, req SendRequest) (string, error)

	SetTypingStatus(ctx context.Context, thread Thread, typing bool) error
	MarkAsDelivered(ctx context.Context, threadID, messageID string) error
	MarkAsSeen(ctx context.Context) error
	MarkAsRead(ctx context.Context, threadID string) error

	// Listen blocks reading remote events, invoking the handler once per
	// inbound message, until the context is cancelled or the session drops.
	Listen(ctx context.Context, handler EventHandler) error
}
