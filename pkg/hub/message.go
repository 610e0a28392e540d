package hub

import (
	"context"

	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/media"
)

// MsgType is the category of a normalized message. The category determines
// which of text body, binary payload and structured attribute is the
// authoritative content.
type MsgType string

const (
	Text        MsgType = "text"
	Image       MsgType = "image"
	Sticker     MsgType = "sticker"
	Audio       MsgType = "audio"
	Video       MsgType = "video"
	File        MsgType = "file"
	Animation   MsgType = "animation"
	Link        MsgType = "link"
	Location    MsgType = "location"
	Status      MsgType = "status"
	Unsupported MsgType = "unsupported"
)

// Span is a half-open character-offset range [Begin, End) inside a
// message text.
type Span struct {
	Begin int
	End   int
}

// Attribute is the structured payload variant of a normalized message.
type Attribute interface {
	isAttribute()
}

// LinkAttribute describes a shared link with optional preview.
type LinkAttribute struct {
	Title       string
	Description string
	Preview     string
	URL         string
}

// LocationAttribute is a geographic point.
type LocationAttribute struct {
	Latitude  float64
	Longitude float64
}

// StatusKind is the sub-kind of a status message.
type StatusKind string

const (
	StatusTyping         StatusKind = "typing"
	StatusUploadingAudio StatusKind = "uploading_audio"
	StatusUploadingVideo StatusKind = "uploading_video"
	StatusUploadingImage StatusKind = "uploading_image"
	StatusUploadingFile  StatusKind = "uploading_file"
)

// StatusAttribute carries a transient chat status, such as a typing
// indicator, with its timeout in milliseconds.
type StatusAttribute struct {
	Kind      StatusKind
	TimeoutMS int
}

func (LinkAttribute) isAttribute()     {}
func (LocationAttribute) isAttribute() {}
func (StatusAttribute) isAttribute()   {}

// Typing reports whether the status should drive a typing indicator.
// Uploading sub-kinds are signaled to the remote side as typing too.
func (s StatusAttribute) Typing() bool {
	switch s.Kind {
	case StatusTyping, StatusUploadingAudio, StatusUploadingVideo,
		StatusUploadingImage, StatusUploadingFile:
		return true
	}
	return false
}

// Message is the unified, platform-independent representation of a chat
// message exchanged with the hub.
type Message struct {
	// ID is the remote message id; fan-out parts append ".<index>".
	ID   string
	Type MsgType

	Text      string
	File      *media.Blob
	Attribute Attribute

	Author *chats.Chat
	Chat   *chats.Chat

	// ReplyToID is the remote id of the message this one replies to.
	ReplyToID string

	// Substitutions maps character spans of Text to the chats they
	// mention.
	Substitutions map[Span]*chats.Chat
}

// Deliverer is the hub side of the boundary: it receives fully normalized
// inbound messages.
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message) error
}

// DeliverFunc adapts a function to the Deliverer interface.
type DeliverFunc func(ctx context.Context, msg *Message) error

func (f DeliverFunc) Deliver(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}
