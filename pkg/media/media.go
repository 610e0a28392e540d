package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mercurybridge/mercury/pkg/logger"
)

// ErrFetchFailed wraps every failure to download attachment binaries.
var ErrFetchFailed = errors.New("media: fetch failed")

// Blob is a materialized binary payload backed by a scoped temporary file.
// Close releases the handle and removes the file.
type Blob struct {
	Name string
	MIME string
	Path string

	f *os.File
}

func (b *Blob) Read(p []byte) (int, error) {
	if b.f == nil {
		return 0, os.ErrClosed
	}
	return b.f.Read(p)
}

// Rewind seeks back to the start so the payload can be re-read.
func (b *Blob) Rewind() error {
	if b.f == nil {
		return os.ErrClosed
	}
	_, err := b.f.Seek(0, io.SeekStart)
	return err
}

func (b *Blob) Size() int64 {
	if b.f == nil {
		return 0
	}
	info, err := b.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (b *Blob) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	if rmErr := os.Remove(b.Path); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.DebugCF("media", "Failed to remove blob file", map[string]interface{}{
			"path":  b.Path,
			"error": rmErr.Error(),
		})
	}
	return err
}

// FetchOptions holds optional parameters for Fetch.
type FetchOptions struct {
	Timeout time.Duration
	Headers map[string]string
	// MIME pins the blob's MIME type. When empty, the response
	// Content-Type is used, falling back to the filename extension.
	MIME string
}

// Fetch downloads a URL into a scoped temporary file and returns the blob.
// The caller owns the blob and must Close it.
func Fetch(rawURL, filename string, opts FetchOptions) (*Blob, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	mediaDir := filepath.Join(os.TempDir(), "mercury_media")
	if err := os.MkdirAll(mediaDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create media directory: %v", ErrFetchFailed, err)
	}

	safeName := SanitizeFilename(filename)
	if safeName == "" {
		safeName = "blob"
	}
	localPath := filepath.Join(mediaDir, uuid.NewString()[:8]+"_"+safeName)

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", ErrFetchFailed, resp.StatusCode, rawURL)
	}

	out, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: create local file: %v", ErrFetchFailed, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("%w: write local file: %v", ErrFetchFailed, err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("%w: rewind local file: %v", ErrFetchFailed, err)
	}

	mime := opts.MIME
	if mime == "" {
		mime = contentType(resp.Header.Get("Content-Type"))
	}
	// Servers that did not set a Content-Type sniff one; a generic sniffed
	// type loses to a recognized filename extension.
	if isGenericMIME(mime) {
		if byExt := MIMEByExtension(safeName); byExt != "" {
			mime = byExt
		}
	}

	logger.DebugCF("media", "Blob downloaded", map[string]interface{}{
		"path": localPath,
		"mime": mime,
	})

	return &Blob{Name: safeName, MIME: mime, Path: localPath, f: out}, nil
}

// FromBytes materializes raw bytes as a blob, for payloads that arrive
// already in memory.
func FromBytes(name, mime string, data []byte) (*Blob, error) {
	mediaDir := filepath.Join(os.TempDir(), "mercury_media")
	if err := os.MkdirAll(mediaDir, 0700); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	safeName := SanitizeFilename(name)
	if safeName == "" {
		safeName = "blob"
	}
	localPath := filepath.Join(mediaDir, uuid.NewString()[:8]+"_"+safeName)

	out, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create local file: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("write local file: %w", err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("rewind local file: %w", err)
	}

	return &Blob{Name: safeName, MIME: mime, Path: localPath, f: out}, nil
}

func isGenericMIME(mime string) bool {
	switch mime {
	case "", "text/plain", "application/octet-stream":
		return true
	}
	return false
}

func contentType(header string) string {
	if header == "" {
		return ""
	}
	if i := strings.Index(header, ";"); i >= 0 {
		header = header[:i]
	}
	return strings.TrimSpace(header)
}

// SanitizeFilename removes potentially dangerous characters from a filename
// and returns a safe version for local filesystem storage.
func SanitizeFilename(filename string) string {
	base := filepath.Base(filename)

	base = strings.ReplaceAll(base, "..", "")
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")

	if base == "." {
		return ""
	}
	return base
}

// FilenameFromURL derives a filename from the path component of a URL.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// MIMEByExtension returns a MIME type for well-known media extensions.
func MIMEByExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	}
	return ""
}
