package cast

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vishen/go-chromecast/application"
	pb "github.com/vishen/go-chromecast/cast/proto"
	"github.com/vishen/go-chromecast/dns"
)

// DefaultPort is the cast channel port.
const DefaultPort = 8009

const (
	connectionRetries = 2
	seedTimeout       = 5 * time.Second
)

// Chromecast is a Connector backed by go-chromecast.
type Chromecast struct {
	// Iface restricts mDNS discovery to one interface; nil uses all.
	Iface  *net.Interface
	Logger *slog.Logger
}

func (c *Chromecast) Discover(ctx context.Context) ([]DeviceInfo, error) {
	entries, err := dns.DiscoverCastDNSEntries(ctx, c.Iface)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var devices []DeviceInfo

	for {
		select {
		case <-ctx.Done():
			return devices, nil
		case e, ok := <-entries:
			if !ok {
				return devices, nil
			}

			key := e.UUID
			if key == "" {
				key = e.GetAddr()
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			devices = append(devices, DeviceInfo{
				Name:  e.DeviceName,
				Host:  e.GetAddr(),
				Port:  e.GetPort(),
				UUID:  e.UUID,
				Model: e.Device,
			})
		}
	}
}

func (c *Chromecast) Connect(ctx context.Context, info DeviceInfo, l Listener) (Device, error) {
	if info.Port == 0 {
		info.Port = DefaultPort
	}

	d := &chromecastDevice{
		info:   info,
		state:  StateConnecting,
		l:      l,
		logger: c.logger().With("device", info.Name, "host", info.Host),
		seeded: make(chan struct{}),
		app: application.NewApplication(
			application.WithCacheDisabled(true),
			application.WithConnectionRetries(connectionRetries),
		),
	}
	d.app.AddMessageFunc(d.onMessage)

	started := make(chan error, 1)
	go func() {
		started <- d.app.Start(info.Host, info.Port)
	}()

	select {
	case <-ctx.Done():
		d.setState(StateLost)
		go func() {
			if err := <-started; err == nil {
				_ = d.app.Close(false)
			}
		}()
		return nil, ctx.Err()
	case err := <-started:
		if err != nil {
			d.setState(StateLost)
			return nil, err
		}
	}

	// Start returns once its receiver status reply is matched, but the copy
	// handed to onMessage is delivered on another goroutine.
	timer := time.NewTimer(seedTimeout)
	defer timer.Stop()

	select {
	case <-d.seeded:
	case <-timer.C:
		d.logger.Warn("no receiver status before ready")
	case <-ctx.Done():
		_ = d.Close()
		return nil, ctx.Err()
	}

	d.ready()
	return d, nil
}

func (c *Chromecast) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

type chromecastDevice struct {
	mu        sync.Mutex
	info      DeviceInfo
	state     State
	initial   CastStatus
	cast      CastStatus
	lastMedia *MediaStatus
	seeded    chan struct{}
	seedOnce  sync.Once
	closeOnce sync.Once

	// serialises Update calls, go-chromecast tracks one request at a time
	updateMu sync.Mutex

	l      Listener
	media  mediaTracker
	logger *slog.Logger
	app    *application.Application
}

func (d *chromecastDevice) Info() DeviceInfo { return d.info }

func (d *chromecastDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *chromecastDevice) CastStatus() CastStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initial
}

func (d *chromecastDevice) Close() error {
	d.setState(StateLost)

	var err error
	d.closeOnce.Do(func() {
		err = d.app.Close(false)
	})
	return err
}

// Check asks the receiver for its status. go-chromecast does not report a
// dropped connection, so an unanswered request is the only sign of one.
func (d *chromecastDevice) Check(ctx context.Context) error {
	if d.State() != StateReady {
		return ErrNotReady
	}

	done := make(chan error, 1)
	go func() {
		done <- d.update()
	}()

	select {
	case err := <-done:
		if err != nil {
			d.setState(StateLost)
			return fmt.Errorf("%w: %w", ErrLost, err)
		}
		return nil
	case <-ctx.Done():
		d.setState(StateLost)
		return fmt.Errorf("%w: %w", ErrLost, ctx.Err())
	}
}

func (d *chromecastDevice) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// ready switches to dispatching. Media status seen while connecting was only
// tracked, so it is requested again for a running application.
func (d *chromecastDevice) ready() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateConnecting {
		return
	}
	d.state = StateReady
	d.cast = d.initial

	if d.initial.TransportID != "" {
		go d.connectMedia()
	}
}

// update runs go-chromecast's Update: a receiver GET_STATUS, then a CONNECT
// and GET_STATUS on the media channel of a running application.
func (d *chromecastDevice) update() error {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()

	if d.State() == StateLost {
		return ErrNotReady
	}
	return d.app.Update()
}

func (d *chromecastDevice) connectMedia() {
	if err := d.update(); err != nil {
		d.logger.Warn("failed to connect media channel", "err", err)
	}
}

// onMessage runs on the go-chromecast dispatch goroutine. Receiver status seen
// while connecting seeds the initial status instead of being dispatched.
// Listener calls happen under d.mu so they keep arrival order.
func (d *chromecastDevice) onMessage(msg *pb.CastMessage) {
	payload := []byte(msg.GetPayloadUtf8())
	env := parseEnvelope(payload)

	switch env.Type {
	case typeReceiverStatus:
		status, err := decodeReceiverStatus(payload)
		if err != nil {
			d.logger.Warn("failed to decode receiver status", "err", err)
			return
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		switch d.state {
		case StateConnecting:
			d.initial = status
			d.seedOnce.Do(func() { close(d.seeded) })
		case StateReady:
			if status == d.cast {
				return
			}
			newTransport := status.TransportID != "" && status.TransportID != d.cast.TransportID
			d.cast = status
			d.l.NewCastStatus(status)

			if newTransport {
				d.logger.Info("connecting to media channel", "app", status.AppID, "transport", status.TransportID)
				go d.connectMedia()
			}
		}

	case typeMediaStatus:
		status, err := d.media.apply(payload)
		if err != nil {
			d.logger.Warn("failed to decode media status", "err", err)
			return
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		if d.state != StateReady {
			return
		}
		// replies to our own status requests repeat what was already sent
		if env.RequestID != 0 && d.lastMedia != nil && *d.lastMedia == status {
			return
		}
		d.lastMedia = &status
		d.l.NewMediaStatus(status)
	}
}
