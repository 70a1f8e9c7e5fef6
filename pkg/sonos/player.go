// Package sonos drives a Sonos speaker through its UPnP AVTransport service.
package sonos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/huin/goupnp/dcps/av1"
)

const (
	descriptionPort = "1400"
	descriptionPath = "/xml/device_description.xml"

	radioScheme = "x-rincon-mp3radio"
)

var ErrNoAVTransport = errors.New("no AVTransport service on device")

// Player plays stream URIs on one speaker. The AVTransport client is resolved
// on first use and reused afterwards.
type Player struct {
	host string

	mu        sync.Mutex
	transport *av1.AVTransport1
}

func NewPlayer(host string) *Player {
	return &Player{host: host}
}

// DescriptionURL is where the speaker publishes its UPnP device description.
func (p *Player) DescriptionURL() string {
	host := p.host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, descriptionPort)
	}
	return "http://" + host + descriptionPath
}

// PlayURI replaces the transport URI with uri and its DIDL-Lite meta, then
// starts playback.
func (p *Player) PlayURI(ctx context.Context, uri, meta string) error {
	t, err := p.avTransport(ctx)
	if err != nil {
		return err
	}

	if err := t.SetAVTransportURICtx(ctx, 0, uri, meta); err != nil {
		p.reset()
		return fmt.Errorf("set transport uri: %w", err)
	}

	if err := t.PlayCtx(ctx, 0, "1"); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	return nil
}

func (p *Player) avTransport(ctx context.Context) (*av1.AVTransport1, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transport != nil {
		return p.transport, nil
	}

	loc, err := url.Parse(p.DescriptionURL())
	if err != nil {
		return nil, err
	}

	clients, err := av1.NewAVTransport1ClientsByURLCtx(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("load device description: %w", err)
	}
	if len(clients) == 0 {
		return nil, ErrNoAVTransport
	}

	p.transport = clients[0]
	return p.transport, nil
}

// reset drops the cached client so the next call re-reads the description,
// e.g. after the speaker rebooted with a new control URL.
func (p *Player) reset() {
	p.mu.Lock()
	p.transport = nil
	p.mu.Unlock()
}

// RadioURI rewrites the scheme of uri so the speaker treats it as an endless
// radio stream rather than a file.
func RadioURI(uri string) string {
	if strings.HasPrefix(uri, radioScheme+":") {
		return uri
	}
	if i := strings.Index(uri, ":"); i > 0 {
		return radioScheme + uri[i:]
	}
	return uri
}
