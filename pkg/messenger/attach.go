package messenger

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
	"github.com/mercurybridge/mercury/pkg/media"
)

// markerCoords matches the "markers=<lat>,<long>" pair embedded in a
// location preview URL's query string. The separator arrives either raw
// or percent-encoded depending on how the URL was composed.
var markerCoords = regexp.MustCompile(`markers=([0-9.]+)(?:%2C|,)([0-9.]+)`)

// transcode converts one raw attachment into the message's normalized
// content: category plus binary payload or structured attribute. Binary
// fetch failures abort only this attachment.
func (c *Channel) transcode(ctx context.Context, msg *hub.Message, att fb.Attachment) error {
	filename := att.Filename
	mime := att.MimeType

	switch att.Classify() {
	case fb.KindAudio:
		msg.Type = hub.Audio
		blob, err := c.fetchBlob(att.Mercury.Blob.PlayableURL, defaulted(filename, "audio.mp4"), defaulted(mime, "audio/mpeg"))
		if err != nil {
			return err
		}
		msg.File = blob

	case fb.KindImage:
		msg.Type = hub.Image
		if app := att.Mercury.Blob.AttributionApp; app != nil && app.Name != "" {
			if msg.Text != "" {
				msg.Text += fmt.Sprintf(" (via %s)", app.Name)
			} else {
				msg.Text = fmt.Sprintf("via %s", app.Name)
			}
		}
		// Static images hide the original-resolution URL behind an
		// indirection endpoint.
		imageURL, err := c.client.OriginalImageURL(ctx, att.ID)
		if err != nil {
			return fmt.Errorf("%w: original image url for %s: %v", media.ErrFetchFailed, att.ID, err)
		}
		blob, err := c.fetchBlob(imageURL, defaulted(filename, "image.png"), defaulted(mime, "image/png"))
		if err != nil {
			return err
		}
		msg.File = blob

	case fb.KindAnimatedImage:
		anim := att.Mercury.Blob.AnimatedImage
		if anim == nil {
			return fmt.Errorf("%w: animated image without media", ErrMalformedAttachment)
		}
		msg.Type = hub.Animation
		blob, err := c.fetchBlob(anim.URI, defaulted(filename, "image.gif"), defaulted(mime, "image/gif"))
		if err != nil {
			return err
		}
		msg.File = blob

	case fb.KindFile:
		msg.Type = hub.File
		blob, err := c.fetchBlob(att.Mercury.Blob.URL, defaulted(filename, "file"), defaulted(mime, "application/octet-stream"))
		if err != nil {
			return err
		}
		msg.File = blob

	case fb.KindVideo:
		msg.Type = hub.Video
		blob, err := c.fetchBlob(att.Mercury.Blob.PlayableURL, defaulted(filename, "video.mp4"), defaulted(mime, "video/mpeg"))
		if err != nil {
			return err
		}
		msg.File = blob

	case fb.KindSticker:
		return c.transcodeSticker(msg, att.Mercury.Sticker)

	case fb.KindLink:
		return c.transcodeLink(msg, att.Story())

	case fb.KindLocation:
		return c.transcodeLocation(msg, att.Story())

	default:
		msg.Type = hub.Unsupported
		if msg.Text != "" {
			msg.Text = "Message type unsupported.\n" + msg.Text
		} else {
			msg.Text = "Message type unsupported."
		}
	}

	return nil
}

func (c *Channel) transcodeSticker(msg *hub.Message, sticker *fb.StickerAttachment) error {
	// The thumbs-up sticker pack maps straight onto text.
	if sticker.Pack != nil && sticker.Pack.ID == fb.LikePackID {
		if size, ok := fb.EmojiSizeForSticker(sticker.ID); ok {
			msg.Type = hub.Text
			msg.Text = fmt.Sprintf("👍 (%s)", size)
			return nil
		}
	}

	// Animated stickers arrive as sprite sheets; only the static image
	// URL is transcoded.
	msg.Type = hub.Sticker
	if sticker.Label != "" {
		msg.Text = sticker.Label
	}
	name := media.FilenameFromURL(sticker.URL)
	blob, err := media.Fetch(sticker.URL, name, media.FetchOptions{})
	if err != nil {
		return fmt.Errorf("sticker %s: %w", sticker.ID, err)
	}
	msg.File = blob
	return nil
}

func (c *Channel) transcodeLink(msg *hub.Message, story *fb.StoryAttachment) error {
	if story == nil || story.Media == nil || story.Media.URL == "" {
		return fmt.Errorf("%w: link attachment without target url", ErrMalformedAttachment)
	}

	title := textOf(story.Title)
	description := textOf(story.Description)
	if source := textOf(story.Source); source != "" {
		description += fmt.Sprintf(" (via %s)", source)
	}

	preview := ""
	if story.Media.IsPlayable {
		preview = story.Media.PlayableURL
	}
	if preview == "" && story.Media.Image != nil {
		preview = story.Media.Image.URI
	}

	msg.Type = hub.Link
	msg.Attribute = hub.LinkAttribute{
		Title:       title,
		Description: description,
		Preview:     c.unwrapURL(preview),
		URL:         c.unwrapURL(story.Media.URL),
	}
	return nil
}

func (c *Channel) transcodeLocation(msg *hub.Message, story *fb.StoryAttachment) error {
	if story == nil {
		return fmt.Errorf("%w: location attachment without story", ErrMalformedAttachment)
	}

	title := textOf(story.Title)
	description := textOf(story.Description)
	msg.Text = title + "\n" + description

	preview := ""
	if story.Media != nil && story.Media.Image != nil {
		preview = story.Media.Image.URI
	}
	m := markerCoords.FindStringSubmatch(preview)
	if m == nil {
		return fmt.Errorf("%w: no marker coordinates in preview url", ErrMalformedAttachment)
	}
	latitude, latErr := strconv.ParseFloat(m[1], 64)
	longitude, longErr := strconv.ParseFloat(m[2], 64)
	if latErr != nil || longErr != nil {
		return fmt.Errorf("%w: unparsable marker coordinates %q", ErrMalformedAttachment, m[0])
	}

	msg.Type = hub.Location
	msg.Attribute = hub.LocationAttribute{
		Latitude:  latitude,
		Longitude: longitude,
	}
	return nil
}

func (c *Channel) fetchBlob(rawURL, filename, mime string) (*media.Blob, error) {
	blob, err := media.Fetch(rawURL, filename, media.FetchOptions{MIME: mime})
	if err != nil {
		return nil, err
	}
	blob.Name = filename
	return blob, nil
}

// unwrapURL rewrites the two known platform-proxied redirect URL shapes
// to their true destination, unless configuration keeps them proxied.
func (c *Channel) unwrapURL(rawURL string) string {
	if rawURL == "" || !c.cfg.UnwrapProxiedLinks {
		return rawURL
	}
	switch {
	case strings.Contains(rawURL, "safe_image.php"):
		return queryParamOr(rawURL, "url", rawURL)
	case strings.HasPrefix(rawURL, "https://l.facebook.com/l.php"):
		return queryParamOr(rawURL, "u", rawURL)
	}
	return rawURL
}

func queryParamOr(rawURL, param, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	if v := u.Query().Get(param); v != "" {
		return v
	}
	return fallback
}

func textOf(f *fb.TextField) string {
	if f == nil {
		return ""
	}
	return f.Text
}

func defaulted(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
