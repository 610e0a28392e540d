package fb

// Wire shapes of a raw message attachment. The platform nests the
// discriminating markers at different depths, so decoding happens in two
// steps: unmarshal into these structs, then Classify into one
// AttachmentKind before any field access.

type Attachment struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	MimeType string  `json:"mimeType"`
	Mercury  Mercury `json:"mercury"`
}

type Mercury struct {
	Blob       *BlobAttachment       `json:"blob_attachment"`
	Sticker    *StickerAttachment    `json:"sticker_attachment"`
	Extensible *ExtensibleAttachment `json:"extensible_attachment"`
}

type BlobAttachment struct {
	Typename       string          `json:"__typename"`
	PlayableURL    string          `json:"playable_url"`
	URL            string          `json:"url"`
	AnimatedImage  *ImageURI       `json:"animated_image"`
	AttributionApp *AttributionApp `json:"attribution_app"`
}

type ImageURI struct {
	URI string `json:"uri"`
}

type AttributionApp struct {
	Name string `json:"name"`
}

type StickerAttachment struct {
	ID         string       `json:"id"`
	Label      string       `json:"label"`
	URL        string       `json:"url"`
	Pack       *StickerPack `json:"pack"`
	FrameCount int          `json:"frame_count"`
}

type StickerPack struct {
	ID string `json:"id"`
}

type ExtensibleAttachment struct {
	Story *StoryAttachment `json:"story_attachment"`
}

type StoryAttachment struct {
	Title       *TextField   `json:"title_with_entities"`
	Description *TextField   `json:"description"`
	Source      *TextField   `json:"source"`
	Target      *StoryTarget `json:"target"`
	Media       *StoryMedia  `json:"media"`
}

type TextField struct {
	Text string `json:"text"`
}

type StoryTarget struct {
	Typename string `json:"__typename"`
}

type StoryMedia struct {
	IsPlayable  bool      `json:"is_playable"`
	PlayableURL string    `json:"playable_url"`
	Image       *ImageURI `json:"image"`
	URL         string    `json:"url"`
}

// AttachmentKind is the resolved variant of a raw attachment.
type AttachmentKind int

const (
	KindUnknown AttachmentKind = iota
	KindAudio
	KindImage
	KindAnimatedImage
	KindFile
	KindVideo
	KindSticker
	KindLink
	KindLocation
)

var attachmentKindNames = map[AttachmentKind]string{
	KindUnknown:       "unknown",
	KindAudio:         "audio",
	KindImage:         "image",
	KindAnimatedImage: "animated_image",
	KindFile:          "file",
	KindVideo:         "video",
	KindSticker:       "sticker",
	KindLink:          "link",
	KindLocation:      "location",
}

func (k AttachmentKind) String() string {
	if name, ok := attachmentKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Classify resolves the attachment into one variant. Markers are checked
// in precedence order: sticker, extensible (location story before generic
// link), then the blob attachment's own type tag.
func (a *Attachment) Classify() AttachmentKind {
	if a.Mercury.Sticker != nil {
		return KindSticker
	}
	if ext := a.Mercury.Extensible; ext != nil {
		if st := ext.Story; st != nil && st.Target != nil && st.Target.Typename == "MessageLocation" {
			return KindLocation
		}
		return KindLink
	}
	if blob := a.Mercury.Blob; blob != nil {
		switch blob.Typename {
		case "MessageAudio":
			return KindAudio
		case "MessageImage":
			return KindImage
		case "MessageAnimatedImage":
			return KindAnimatedImage
		case "MessageFile":
			return KindFile
		case "MessageVideo":
			return KindVideo
		}
	}
	return KindUnknown
}

// Story returns the story attachment, or nil when absent.
func (a *Attachment) Story() *StoryAttachment {
	if a.Mercury.Extensible == nil {
		return nil
	}
	return a.Mercury.Extensible.Story
}
