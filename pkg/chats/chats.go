package chats

import (
	"github.com/mercurybridge/mercury/pkg/fb"
)

// Kind is the display kind of a resolved chat entity.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Chat is the normalized chat entity a remote thread or user resolves to.
type Chat struct {
	ID   string
	Name string
	Kind Kind

	// Group links a member chat to the group it was resolved inside.
	// Member chats are not standalone conversation targets.
	Group  *Chat
	Member bool

	// Vendor metadata kept from the remote thread info.
	PictureURL string
}

// Equal compares chats by remote identifier.
func (c *Chat) Equal(other *Chat) bool {
	return c != nil && other != nil && c.ID == other.ID
}

// FromThread converts a remote thread handle into a chat entity.
func FromThread(t fb.Thread) *Chat {
	kind := KindDirect
	if t.Type == fb.ThreadGroup {
		kind = KindGroup
	}
	return &Chat{
		ID:         t.ID,
		Name:       t.Name,
		Kind:       kind,
		PictureURL: t.PictureURL,
	}
}
