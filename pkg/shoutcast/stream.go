package shoutcast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "castrelay/1.0"

// MetadataCallbackFunc is the type of the function called when the stream metadata changes
type MetadataCallbackFunc func(m *Metadata)

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// Optional function to be executed when stream metadata changes
	MetadataCallbackFunc MetadataCallbackFunc

	// Amount of bytes to read before expecting a metadata block
	metaint int

	// Stream metadata
	metadata *Metadata

	// The number of audio bytes read since last metadata block
	pos int

	// The underlying data stream
	rc io.ReadCloser

	logger *slog.Logger
}

// newClient returns a client that times out while connecting but never while
// streaming.
func newClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// Open establishes a connection to a remote server. Playlist URLs (.pls, .m3u)
// are resolved to the stream they point at. Cancelling ctx closes the stream.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening stream", "url", url)

	client := newClient()

	resolvedURL, err := resolvePlaylistURL(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist URL: %w", err)
	}
	if resolvedURL != url {
		logger.Info("resolved playlist to stream URL", "url", resolvedURL)
		url = resolvedURL
	}

	req, err := newRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	for k, v := range resp.Header {
		logger.Debug("http header", "key", k, "value", v[0])
	}

	var bitrate int
	if rawBitrate := resp.Header.Get("icy-br"); rawBitrate != "" {
		bitrate, err = strconv.Atoi(rawBitrate)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("cannot parse bitrate: %w", err)
		}
	}

	metaint, err := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if err != nil || metaint <= 0 {
		resp.Body.Close()
		return nil, fmt.Errorf("cannot parse metaint %q", resp.Header.Get("icy-metaint"))
	}

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         url,
		Bitrate:     bitrate,
		metaint:     metaint,
		rc:          resp.Body,
		logger:      logger,
	}, nil
}

func newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", userAgent)
	req.Header.Add("icy-metadata", "1")
	return req, nil
}

// Read implements io.Reader and returns audio bytes only. It never reads past
// the next metadata boundary in one call.
func (s *Stream) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	if s.pos == s.metaint {
		if err := s.readMetadata(); err != nil {
			return 0, err
		}
		s.pos = 0
	}

	n := len(buf)
	if rem := s.metaint - s.pos; n > rem {
		n = rem
	}

	n, err := s.rc.Read(buf[:n])
	s.pos += n
	return n, err
}

// readMetadata consumes one length-prefixed metadata block. An empty block
// means the metadata did not change.
func (s *Stream) readMetadata() error {
	var size [1]byte
	if _, err := io.ReadFull(s.rc, size[:]); err != nil {
		return err
	}

	blockLen := int(size[0]) * 16
	if blockLen == 0 {
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(s.rc, block); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	if m := NewMetadata(block); !m.Equals(s.metadata) {
		s.metadata = m
		if s.MetadataCallbackFunc != nil {
			s.MetadataCallbackFunc(m)
		}
	}

	return nil
}

// Metadata returns the last metadata block seen, or nil.
func (s *Stream) Metadata() *Metadata {
	return s.metadata
}

// Close closes the stream
func (s *Stream) Close() error {
	s.logger.Info("closing stream", "url", s.URL)
	return s.rc.Close()
}
