package fb

import "strings"

// ThreadType mirrors the remote platform's thread taxonomy.
type ThreadType string

const (
	ThreadUser  ThreadType = "USER"
	ThreadGroup ThreadType = "GROUP"
	ThreadPage  ThreadType = "PAGE"
)

// ThreadLocation is the folder a thread lives in on the remote side.
type ThreadLocation string

const (
	LocationInbox    ThreadLocation = "INBOX"
	LocationPending  ThreadLocation = "PENDING"
	LocationOther    ThreadLocation = "OTHER"
	LocationArchived ThreadLocation = "ARCHIVED"
)

// Thread is the lightweight thread-info projection returned by lookups.
type Thread struct {
	ID         string
	Type       ThreadType
	Name       string
	PictureURL string
}

// EmojiSize is the one-letter size marker used for oversized emoji and
// the like sticker.
type EmojiSize string

const (
	EmojiSmall  EmojiSize = "S"
	EmojiMedium EmojiSize = "M"
	EmojiLarge  EmojiSize = "L"
)

// LikePackID is the sticker pack holding the three thumbs-up size variants.
const LikePackID = "227877430692340"

var likeStickerIDs = map[EmojiSize]string{
	EmojiSmall:  "369239263222822",
	EmojiMedium: "369239343222814",
	EmojiLarge:  "369239383222810",
}

// LikeStickerID returns the sticker id for a thumbs-up of the given size.
func LikeStickerID(size EmojiSize) string {
	return likeStickerIDs[size]
}

// EmojiSizeForSticker reports which size variant a like-pack sticker id is,
// if any.
func EmojiSizeForSticker(stickerID string) (EmojiSize, bool) {
	for size, id := range likeStickerIDs {
		if id == stickerID {
			return size, true
		}
	}
	return "", false
}

// selfMessagePrefix is how the platform prefixes ids of messages produced
// through the logged-in session.
const selfMessagePrefix = "mid.$"

// IsSelfMessageID reports whether a remote message id follows the
// self-originated id convention.
func IsSelfMessageID(id string) bool {
	return strings.HasPrefix(id, selfMessagePrefix)
}

// Mention marks a character span of a message text as referring to a thread.
type Mention struct {
	ThreadID string
	Offset   int
	Length   int
}

// SendRequest carries the optional parts of a plain send. Exactly one of
// Text/StickerID is expected to drive the payload; EmojiSize tags an
// oversized-emoji text send.
type SendRequest struct {
	Text      string
	Mentions  []Mention
	ReplyToID string
	StickerID string
	EmojiSize EmojiSize
}

// MessageEvent is one inbound message delivered by the listen loop.
type MessageEvent struct {
	ID          string
	AuthorID    string
	ThreadID    string
	Text        string
	EmojiSize   EmojiSize
	Mentions    []Mention
	Attachments []Attachment
}
