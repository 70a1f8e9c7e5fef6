// Package icecast pushes now-playing text to an Icecast 2 server through its
// admin metadata endpoint.
package icecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMount is the mount point darkice publishes to.
const DefaultMount = "/pi.mp3"

var ErrUnexpectedStatus = errors.New("unexpected status from icecast")

type Config struct {
	// Address is host[:port] of the Icecast server.
	Address  string
	User     string
	Password string
	Mount    string
	Timeout  time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Client {
	if cfg.Mount == "" {
		cfg.Mount = DefaultMount
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// UpdateURL returns the admin URL that sets the song text for the mount.
// The song is "artist - title", or just the field that is present.
func (c *Client) UpdateURL(artist, title string) string {
	return fmt.Sprintf("http://%s/admin/metadata?mount=%s&mode=updinfo&song=%s",
		c.cfg.Address, c.cfg.Mount, SongQuery(artist, title))
}

// SongQuery URL-encodes artist and title and joins them with a literal "+-+".
func SongQuery(artist, title string) string {
	a := url.QueryEscape(artist)
	t := url.QueryEscape(title)

	switch {
	case a == "":
		return t
	case t == "":
		return a
	}
	return a + "+-+" + t
}

// UpdateMetadata sends one update and returns the response status code. A
// non-2xx response is returned as ErrUnexpectedStatus.
func (c *Client) UpdateMetadata(ctx context.Context, artist, title string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UpdateURL(artist, title), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return resp.StatusCode, nil
}

// StreamURL is the public listener URL of the mount.
func (c *Client) StreamURL() string {
	return "http://" + c.cfg.Address + c.cfg.Mount
}
