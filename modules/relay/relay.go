package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/castrelay/pkg/cast"
	"github.com/zachfi/castrelay/pkg/encoder"
	"github.com/zachfi/castrelay/pkg/icecast"
	"github.com/zachfi/castrelay/pkg/sonos"
)

const (
	module           = "relay"
	metricsNamespace = "castrelay"

	idleLogInterval = time.Minute
)

// MetadataUpdater sets the now-playing text on the streaming server.
type MetadataUpdater interface {
	UpdateMetadata(ctx context.Context, artist, title string) (int, error)
}

// StreamPlayer points a speaker at a stream URI with DIDL-Lite metadata.
type StreamPlayer interface {
	PlayURI(ctx context.Context, uri, meta string) error
}

// EncoderSupervisor makes sure the encoder process is running.
type EncoderSupervisor interface {
	EnsureRunning(ctx context.Context) (int32, bool, error)
}

// notification is one queued callback from the cast library. Exactly one of
// the fields is set.
type notification struct {
	media *cast.MediaStatus
	cast  *cast.CastStatus
}

// Relay forwards playback status from one cast device to Icecast and Sonos.
type Relay struct {
	services.Service

	cfg    *Config
	logger *slog.Logger
	tracer trace.Tracer

	connector cast.Connector
	device    cast.Device

	icecast MetadataUpdater
	sonos   StreamPlayer
	encoder EncoderSupervisor
	metrics *metrics

	queue chan notification

	// owned by the running goroutine
	previous   cast.CastStatus
	lastState  cast.PlayerState
	lastPushed *cast.MediaStatus
}

type Option func(*Relay)

func WithConnector(c cast.Connector) Option { return func(r *Relay) { r.connector = c } }

func WithMetadataUpdater(u MetadataUpdater) Option { return func(r *Relay) { r.icecast = u } }

func WithStreamPlayer(p StreamPlayer) Option { return func(r *Relay) { r.sonos = p } }

func WithEncoder(e EncoderSupervisor) Option { return func(r *Relay) { r.encoder = e } }

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Relay) { r.metrics = newMetrics(reg) }
}

// New creates and returns a new Relay. Sinks whose configuration is empty are
// disabled.
func New(cfg Config, logger slog.Logger, opts ...Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Cast.ReconnectBackoff == 0 {
		cfg.Cast.ReconnectBackoff = defaultReconnectMin
	}
	if cfg.Cast.ReconnectBackoffMax == 0 {
		cfg.Cast.ReconnectBackoffMax = defaultReconnectMax
	}

	r := &Relay{
		cfg:    &cfg,
		logger: logger.With("module", module),
		tracer: otel.Tracer("castrelay/relay"),
		queue:  make(chan notification, cfg.Relay.QueueSize),
	}

	if cfg.Icecast.Address != "" {
		r.icecast = icecast.New(icecast.Config{
			Address:  cfg.Icecast.Address,
			User:     cfg.Icecast.AdminUser,
			Password: cfg.Icecast.AdminPassword,
			Mount:    cfg.Icecast.Mount,
			Timeout:  cfg.Relay.RequestTimeout,
		})
	}

	if cfg.Sonos.Host != "" {
		r.sonos = sonos.NewPlayer(cfg.Sonos.Host)
	}

	if cfg.Encoder.Enabled {
		r.encoder = encoder.New(encoder.Config{
			Name:       cfg.Encoder.Name,
			ConfigPath: cfg.Encoder.ConfigPath,
		}, r.logger)
	}

	for _, o := range opts {
		o(r)
	}

	if r.connector == nil {
		var iface *net.Interface
		if cfg.Cast.Interface != "" {
			var err error
			iface, err = net.InterfaceByName(cfg.Cast.Interface)
			if err != nil {
				return nil, fmt.Errorf("%w: cast.interface: %w", ErrInvalidConfig, err)
			}
		}
		r.connector = &cast.Chromecast{Iface: iface, Logger: r.logger}
	}

	if r.metrics == nil {
		r.metrics = newMetrics(prometheus.DefaultRegisterer)
	}

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)

	return r, nil
}

func (r *Relay) starting(ctx context.Context) error {
	dev, err := r.bind(ctx)
	if err != nil {
		r.logger.Error("failed to bind cast device", "err", err)
		return err
	}

	r.device = dev
	r.previous = dev.CastStatus()

	r.logger.Info("relay ready",
		"icecast", r.icecast != nil,
		"sonos", r.sonos != nil,
		"encoder", r.encoder != nil,
	)

	return nil
}

func (r *Relay) bind(ctx context.Context) (cast.Device, error) {
	return cast.Bind(ctx, r.connector, cast.BindConfig{
		Name:             r.cfg.Cast.DeviceName,
		Host:             r.cfg.Cast.DeviceHost,
		Port:             r.cfg.Cast.DevicePort,
		DiscoveryTimeout: r.cfg.Cast.DiscoveryTimeout,
	}, r, r.logger)
}

// running evaluates notifications one at a time in arrival order.
func (r *Relay) running(ctx context.Context) error {
	ticker := time.NewTicker(idleLogInterval)
	defer ticker.Stop()

	var check <-chan time.Time
	if r.cfg.Cast.CheckInterval > 0 {
		t := time.NewTicker(r.cfg.Cast.CheckInterval)
		defer t.Stop()
		check = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.logger.Debug("waiting for an update")
		case <-check:
			if err := r.checkDevice(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case n := <-r.queue:
			switch {
			case n.media != nil:
				r.handleMediaStatus(ctx, *n.media)
			case n.cast != nil:
				r.handleCastStatus(ctx, *n.cast)
			}
		}
	}
}

// checkDevice binds again when the device stopped answering. The status of the
// new connection is evaluated like any other, so a session started while
// disconnected still counts as a transition.
func (r *Relay) checkDevice(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Cast.CheckInterval)
	err := r.device.Check(cctx)
	cancel()
	if err == nil {
		return nil
	}

	r.logger.Warn("cast device lost", "state", r.device.State(), "err", err)
	_ = r.device.Close()

	b := backoff.New(ctx, backoff.Config{
		MinBackoff: r.cfg.Cast.ReconnectBackoff,
		MaxBackoff: r.cfg.Cast.ReconnectBackoffMax,
	})

	for b.Ongoing() {
		dev, err := r.bind(ctx)
		if err != nil {
			r.metrics.reconnects.WithLabelValues("error").Inc()
			r.logger.Error("failed to bind cast device", "err", err, "retries", b.NumRetries())
			b.Wait()
			continue
		}

		r.metrics.reconnects.WithLabelValues("success").Inc()
		r.device = dev
		r.handleCastStatus(ctx, dev.CastStatus())
		return nil
	}

	return b.Err()
}

func (r *Relay) stopping(_ error) error {
	r.logger.Info("stopping")

	if r.device != nil {
		return r.device.Close()
	}
	return nil
}

// NewMediaStatus implements cast.Listener. It never blocks the cast library.
func (r *Relay) NewMediaStatus(status cast.MediaStatus) {
	r.metrics.notifications.WithLabelValues(kindMedia).Inc()
	r.enqueue(notification{media: &status})
}

// NewCastStatus implements cast.Listener.
func (r *Relay) NewCastStatus(status cast.CastStatus) {
	r.metrics.notifications.WithLabelValues(kindCast).Inc()
	r.enqueue(notification{cast: &status})
}

func (r *Relay) enqueue(n notification) {
	select {
	case r.queue <- n:
	default:
		r.metrics.dropped.Inc()
		r.logger.Warn("notification queue full, dropping status update")
	}
}
