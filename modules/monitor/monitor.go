package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/castrelay/pkg/shoutcast"
)

const (
	module           = "monitor"
	metricsNamespace = "castrelay"
)

// Monitor listens to the published stream and reports the title listeners
// see, which confirms that metadata pushes reach the Icecast mount.
type Monitor struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	titleChanges prometheus.Counter
	lastChange   prometheus.Gauge
	connects     *prometheus.CounterVec

	mu    sync.Mutex
	title string
}

// New creates and returns a new Monitor.
func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Monitor, error) {
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectInitial
	}
	if cfg.ReconnectBackoffMax == 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}

	m := &Monitor{
		cfg:    &cfg,
		logger: logger.With("module", module),
		titleChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "title_changes_total",
			Help:      "StreamTitle changes observed on the published stream.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "last_title_change_timestamp_seconds",
			Help:      "Time of the last observed StreamTitle change.",
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "connects_total",
			Help:      "Connection attempts to the published stream.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.titleChanges, m.lastChange, m.connects)
	}

	m.Service = services.NewBasicService(nil, m.running, m.stopping)

	return m, nil
}

// Title returns the last StreamTitle seen.
func (m *Monitor) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

func (m *Monitor) running(ctx context.Context) error {
	if m.cfg.URL == "" {
		m.logger.Info("no stream url configured, monitor disabled")
		<-ctx.Done()
		return nil
	}

	b := backoff.New(ctx, backoff.Config{
		MinBackoff: m.cfg.ReconnectBackoff,
		MaxBackoff: m.cfg.ReconnectBackoffMax,
	})

	for b.Ongoing() {
		stream, err := shoutcast.Open(ctx, m.cfg.URL, m.logger)
		if err != nil {
			m.connects.WithLabelValues("error").Inc()
			m.logger.Error("error opening stream", "err", err, "retries", b.NumRetries())
			b.Wait()
			continue
		}
		m.connects.WithLabelValues("success").Inc()
		b.Reset()

		m.watch(stream)

		if ctx.Err() != nil {
			break
		}
		b.Wait()
	}

	return nil
}

// watch discards audio until the stream ends, reporting title changes.
func (m *Monitor) watch(stream *shoutcast.Stream) {
	defer stream.Close()

	stream.MetadataCallbackFunc = func(md *shoutcast.Metadata) {
		m.logger.Info("now listening to", "title", md.StreamTitle, "stream", stream.Name)

		m.mu.Lock()
		m.title = md.StreamTitle
		m.mu.Unlock()

		m.titleChanges.Inc()
		m.lastChange.SetToCurrentTime()
	}

	n, err := io.Copy(io.Discard, stream)
	if err != nil {
		m.logger.Warn("stream ended", "err", err, "bytes", n)
		return
	}
	m.logger.Info("stream ended", "bytes", n)
}

func (m *Monitor) stopping(_ error) error {
	m.logger.Info("stopping")
	return nil
}
