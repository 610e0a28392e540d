package messenger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mercurybridge/mercury/pkg/config"
	"github.com/mercurybridge/mercury/pkg/fb"
	"github.com/mercurybridge/mercury/pkg/hub"
)

type imageSend struct {
	file  fb.UploadFile
	isGIF bool
	req   fb.SendRequest
}

type uploadCall struct {
	files     []fb.UploadFile
	voiceClip bool
}

type fileSend struct {
	fileIDs []string
	req     fb.SendRequest
}

type pinnedLocation struct {
	latitude  float64
	longitude float64
	req       fb.SendRequest
}

// fakeClient records every platform call. Methods not overridden here
// panic through the embedded nil interface, which is what a test that
// strays outside its expected calls deserves.
type fakeClient struct {
	fb.Client

	mu sync.Mutex

	threads   map[string]fb.Thread
	threadErr error

	listThreads  []fb.Thread
	gotLocations []fb.ThreadLocation
	gotLimit     int

	searchResults  []fb.Thread
	gotSearchKind  fb.SearchKind
	gotSearchQuery string

	imageURLs map[string]string
	imageErr  error

	nextMID string
	sendErr error

	sendReqs   []fb.SendRequest
	imageSends []imageSend
	uploads    []uploadCall
	fileSends  []fileSend
	locations  []pinnedLocation
	typingSets []bool
	delivered  []string
	seenCalls  int
	readCalls  []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		threads: map[string]fb.Thread{
			"100": {ID: "100", Type: fb.ThreadUser, Name: "Alice"},
			"200": {ID: "200", Type: fb.ThreadGroup, Name: "Team"},
		},
		nextMID: "mid.$fake",
	}
}

func (f *fakeClient) ThreadInfo(ctx context.Context, id string) (fb.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadErr != nil {
		return fb.Thread{}, f.threadErr
	}
	thread, ok := f.threads[id]
	if !ok {
		return fb.Thread{}, fmt.Errorf("no such thread %s", id)
	}
	return thread, nil
}

func (f *fakeClient) ThreadList(ctx context.Context, limit int, locations ...fb.ThreadLocation) ([]fb.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLimit = limit
	f.gotLocations = locations
	return f.listThreads, nil
}

func (f *fakeClient) Search(ctx context.Context, kind fb.SearchKind, query string, limit int) ([]fb.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotSearchKind = kind
	f.gotSearchQuery = query
	return f.searchResults, nil
}

func (f *fakeClient) OriginalImageURL(ctx context.Context, attachmentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.imageURLs[attachmentID], nil
}

func (f *fakeClient) Send(ctx context.Context, thread fb.Thread, req fb.SendRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendReqs = append(f.sendReqs, req)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.nextMID, nil
}

func (f *fakeClient) SendImage(ctx context.Context, thread fb.Thread, file fb.UploadFile, isGIF bool, req fb.SendRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageSends = append(f.imageSends, imageSend{file: file, isGIF: isGIF, req: req})
	return f.nextMID, nil
}

func (f *fakeClient) Upload(ctx context.Context, files []fb.UploadFile, voiceClip bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploadCall{files: files, voiceClip: voiceClip})
	ids := make([]string, len(files))
	for i := range files {
		ids[i] = fmt.Sprintf("upload-%d", i)
	}
	return ids, nil
}

func (f *fakeClient) SendFiles(ctx context.Context, thread fb.Thread, fileIDs []string, req fb.SendRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileSends = append(f.fileSends, fileSend{fileIDs: fileIDs, req: req})
	return f.nextMID, nil
}

func (f *fakeClient) SendPinnedLocation(ctx context.Context, thread fb.Thread, latitude, longitude float64, req fb.SendRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, pinnedLocation{latitude: latitude, longitude: longitude, req: req})
	return f.nextMID, nil
}

func (f *fakeClient) SetTypingStatus(ctx context.Context, thread fb.Thread, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingSets = append(f.typingSets, typing)
	return nil
}

func (f *fakeClient) MarkAsDelivered(ctx context.Context, threadID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, messageID)
	return nil
}

func (f *fakeClient) MarkAsSeen(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenCalls++
	return nil
}

func (f *fakeClient) MarkAsRead(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, threadID)
	return nil
}

func (f *fakeClient) Listen(ctx context.Context, handler fb.EventHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeClient) typingHistory() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.typingSets))
	copy(out, f.typingSets)
	return out
}

// collector is a hub stand-in accumulating delivered messages.
type collector struct {
	mu   sync.Mutex
	msgs []*hub.Message
	err  error
}

func (c *collector) Deliver(ctx context.Context, msg *hub.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collector) all() []*hub.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*hub.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func testConfig() config.MessengerConfig {
	return config.MessengerConfig{
		UnwrapProxiedLinks: true,
		EchoCapacity:       16,
	}
}

func TestStartStop(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !ch.IsRunning() {
		t.Fatalf("channel should be running after Start")
	}
	if err := ch.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if ch.IsRunning() {
		t.Fatalf("channel should not be running after Stop")
	}
	cancel()
	time.Sleep(10 * time.Millisecond) // let the listen goroutine drain
}

func TestGetChat(t *testing.T) {
	client := newFakeClient()
	ch := NewChannel(client, &collector{}, testConfig())

	chat, err := ch.GetChat(context.Background(), "100", "")
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if chat.ID != "100" || chat.Name != "Alice" {
		t.Fatalf("unexpected chat: %+v", chat)
	}

	member, err := ch.GetChat(context.Background(), "200", "100")
	if err != nil {
		t.Fatalf("GetChat member failed: %v", err)
	}
	if !member.Member || member.Group == nil || member.Group.ID != "200" {
		t.Fatalf("member resolution wrong: %+v", member)
	}
}

func TestArchiveDisabledWithoutPath(t *testing.T) {
	cfg := testConfig()
	cfg.ArchiveAttachments = true // no path set
	ch := NewChannel(newFakeClient(), &collector{}, cfg)
	if ch.archive != nil {
		t.Fatalf("archive must stay disabled without a path")
	}

	cfg.ArchivePath = t.TempDir()
	ch = NewChannel(newFakeClient(), &collector{}, cfg)
	if ch.archive == nil {
		t.Fatalf("archive should be enabled")
	}
}
