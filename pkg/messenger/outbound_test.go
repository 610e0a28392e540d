package messenger

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mercurybridge/mercury/pkg/chats"
	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
	"github.com/mercurybridge/mercury/pkg/media"
)

func outboundText(text string) *hub.Message {
	return &hub.Message{
		Type: hub.Text,
		Text: text,
		Chat: &chats.Chat{ID: "200", Name: "Team", Kind: chats.KindGroup},
	}
}

func TestSendPlainText(t *testing.T) {
	client := newFakeClient()
	client.nextMID = "mid.$sent1"
	ch := NewChannel(client, &collector{}, testConfig())

	msg, err := ch.Send(context.Background(), outboundText("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if msg.ID != "mid.$sent1" {
		t.Fatalf("remote id not assigned: %q", msg.ID)
	}
	if len(client.sendReqs) != 1 || client.sendReqs[0].Text != "hello" {
		t.Fatalf("send request wrong: %+v", client.sendReqs)
	}
	if client.seenCalls != 1 {
		t.Fatalf("thread not marked seen")
	}
	if len(client.readCalls) != 1 || client.readCalls[0] != "200" {
		t.Fatalf("thread not marked read: %v", client.readCalls)
	}
}

func TestSendThumbsUpBecomesLikeSticker(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("👍")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	req := client.sendReqs[0]
	if req.StickerID != fb.LikeStickerID(fb.EmojiSmall) {
		t.Fatalf("sticker id %q", req.StickerID)
	}
	if req.Text != "" {
		t.Fatalf("text must be cleared for a sticker send: %q", req.Text)
	}
}

func TestSendSizedThumbsUp(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("👍L")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := client.sendReqs[0].StickerID; got != fb.LikeStickerID(fb.EmojiLarge) {
		t.Fatalf("sticker id %q", got)
	}
}

func TestSendOversizedEmoji(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("😀M")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	req := client.sendReqs[0]
	if req.EmojiSize != fb.EmojiMedium {
		t.Fatalf("emoji size %q", req.EmojiSize)
	}
	if req.Text != "😀" {
		t.Fatalf("size marker not stripped: %q", req.Text)
	}
}

func TestSendOversizedVariationSelectorEmoji(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	// Red heart is a two-codepoint sequence (U+2764 U+FE0F); the size
	// letter makes three runes.
	if _, err := ch.Send(context.Background(), outboundText("❤️S")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	req := client.sendReqs[0]
	if req.EmojiSize != fb.EmojiSmall {
		t.Fatalf("emoji size %q", req.EmojiSize)
	}
	if req.Text != "❤️" {
		t.Fatalf("size marker not stripped: %q", req.Text)
	}
}

func TestSendMultipleEmojiNotSizeTagged(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("😀😀L")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	req := client.sendReqs[0]
	if req.Text != "😀😀L" || req.EmojiSize != "" {
		t.Fatalf("multi-emoji body rewritten: %+v", req)
	}
}

func TestSendPlainTwoLetterTextUntouched(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("OK")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	req := client.sendReqs[0]
	if req.Text != "OK" || req.StickerID != "" || req.EmojiSize != "" {
		t.Fatalf("ordinary text rewritten: %+v", req)
	}
}

func TestSendRegistersEchoAndSuppressesRoundTrip(t *testing.T) {
	client := newFakeClient()
	client.nextMID = "mid.$roundtrip"
	sink := &collector{}
	ch := NewChannel(client, sink, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// The platform echoes our own message back; it must be swallowed.
	ch.onEvent(context.Background(), &fb.MessageEvent{
		ID: "mid.$roundtrip", AuthorID: "100", ThreadID: "200", Text: "ping",
	})
	if len(sink.all()) != 0 {
		t.Fatalf("own echo delivered back to the hub")
	}
}

func TestSendForeignMIDNotRegistered(t *testing.T) {
	client := newFakeClient()
	client.nextMID = "mid.12345" // no self prefix
	ch := NewChannel(client, &collector{}, testConfig())

	if _, err := ch.Send(context.Background(), outboundText("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ch.echo.Len() != 0 {
		t.Fatalf("non-self id must not enter the suppressor")
	}
}

func TestSendLinkComposition(t *testing.T) {
	link := hub.LinkAttribute{Title: "A", Description: "B", URL: "http://x"}

	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())
	msg := &hub.Message{Type: hub.Link, Attribute: link, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := client.sendReqs[0].Text; got != "A\nhttp://x" {
		t.Fatalf("description must be dropped by default: %q", got)
	}

	cfg := testConfig()
	cfg.SendLinkWithDescription = true
	client = newFakeClient()
	ch = NewChannel(client, &collector{}, cfg)
	msg = &hub.Message{Type: hub.Link, Text: "look", Attribute: link, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := client.sendReqs[0].Text; got != "look\nA\nB\nhttp://x" {
		t.Fatalf("composed link text %q", got)
	}
}

func TestSendLocation(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	msg := &hub.Message{
		Type:      hub.Location,
		Attribute: hub.LocationAttribute{Latitude: 52.52, Longitude: 13.405},
		Chat:      &chats.Chat{ID: "200"},
	}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(client.locations) != 1 {
		t.Fatalf("pinned location not sent")
	}
	if client.locations[0].latitude != 52.52 || client.locations[0].longitude != 13.405 {
		t.Fatalf("coordinates %+v", client.locations[0])
	}
}

func TestSendImageClosesPayload(t *testing.T) {
	blob, err := media.FromBytes("photo.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	path := blob.Path

	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())
	msg := &hub.Message{Type: hub.Image, File: blob, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(client.imageSends) != 1 {
		t.Fatalf("image send missing")
	}
	sent := client.imageSends[0]
	if sent.file.Name != "photo.png" || sent.file.MIME != "image/png" {
		t.Fatalf("upload metadata wrong: %+v", sent.file)
	}
	if sent.isGIF {
		t.Fatalf("png must not be flagged as gif")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("payload file must be released after send, stat err=%v", err)
	}
}

func TestSendAnimationFlagsGIF(t *testing.T) {
	blob, err := media.FromBytes("anim.gif", "image/gif", []byte("gif"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())
	msg := &hub.Message{Type: hub.Animation, File: blob, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !client.imageSends[0].isGIF {
		t.Fatalf("gif payload not flagged")
	}
}

func TestSendAudioIsVoiceClip(t *testing.T) {
	blob, err := media.FromBytes("note.mp3", "audio/mpeg", []byte("mp3"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())
	msg := &hub.Message{Type: hub.Audio, File: blob, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(client.uploads) != 1 || !client.uploads[0].voiceClip {
		t.Fatalf("audio must upload as voice clip: %+v", client.uploads)
	}
	if len(client.fileSends) != 1 || len(client.fileSends[0].fileIDs) != 1 {
		t.Fatalf("uploaded file ids not sent: %+v", client.fileSends)
	}
}

func TestSendFileNotVoiceClip(t *testing.T) {
	blob, err := media.FromBytes("doc.pdf", "application/pdf", []byte("pdf"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())
	msg := &hub.Message{Type: hub.File, File: blob, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if client.uploads[0].voiceClip {
		t.Fatalf("plain file flagged as voice clip")
	}
}

func TestSendUnsupportedTypeNoPlatformCall(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	msg := &hub.Message{Type: hub.MsgType("poll"), Chat: &chats.Chat{ID: "200"}}
	_, err := ch.Send(context.Background(), msg)
	if !errors.Is(err, ErrUnsupportedOutboundType) {
		t.Fatalf("expected ErrUnsupportedOutboundType, got %v", err)
	}

	if len(client.sendReqs)+len(client.imageSends)+len(client.uploads)+
		len(client.fileSends)+len(client.locations) != 0 {
		t.Fatalf("send primitives must not be touched for unsupported types")
	}
}

func TestSendStatusTyping(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	msg := &hub.Message{
		Type:      hub.Status,
		Attribute: hub.StatusAttribute{Kind: hub.StatusTyping, TimeoutMS: 10},
		Chat:      &chats.Chat{ID: "200"},
	}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	history := client.typingHistory()
	if len(history) == 0 || !history[0] {
		t.Fatalf("typing indicator not raised: %v", history)
	}

	// The detached timer clears the indicator after the timeout.
	deadline := time.After(time.Second)
	for {
		history = client.typingHistory()
		if len(history) >= 2 && !history[len(history)-1] {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("typing indicator never cleared: %v", history)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSendMentionsOrderedByOffset(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	msg := outboundText("hey @alice and @team")
	msg.Substitutions = map[hub.Span]*chats.Chat{
		{Begin: 15, End: 20}: {ID: "200"},
		{Begin: 4, End: 10}:  {ID: "100"},
	}
	if _, err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mentions := client.sendReqs[0].Mentions
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(mentions))
	}
	if mentions[0].ThreadID != "100" || mentions[0].Offset != 4 || mentions[0].Length != 6 {
		t.Fatalf("first mention %+v", mentions[0])
	}
	if mentions[1].ThreadID != "200" || mentions[1].Offset != 15 || mentions[1].Length != 5 {
		t.Fatalf("second mention %+v", mentions[1])
	}
}

func TestSendLookupFailure(t *testing.T) {
	client := newFakeClient()
	client.threadErr = errors.New("session dropped")
	ch := NewChannel(client, &collector{}, testConfig())

	_, err := ch.Send(context.Background(), outboundText("x"))
	if !errors.Is(err, chats.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestSendFailureStillReleasesPayload(t *testing.T) {
	blob, err := media.FromBytes("photo.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	path := blob.Path

	client := newFakeClient()
	client.threadErr = errors.New("session dropped")
	ch := NewChannel(client, &collector{}, testConfig())

	msg := &hub.Message{Type: hub.Image, File: blob, Chat: &chats.Chat{ID: "200"}}
	if _, err := ch.Send(context.Background(), msg); err == nil {
		t.Fatalf("expected failure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("payload must be released on failure too")
	}
}
