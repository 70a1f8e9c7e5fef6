package relay

import "github.com/prometheus/client_golang/prometheus"

const (
	sinkIcecast = "icecast"
	sinkSonos   = "sonos"

	kindMedia = "media"
	kindCast  = "cast"
)

type metrics struct {
	notifications  *prometheus.CounterVec
	dropped        prometheus.Counter
	sinkUpdates    *prometheus.CounterVec
	encoderLaunch  prometheus.Counter
	sessionStarted prometheus.Counter
	reconnects     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "notifications_total",
			Help:      "Status notifications received from the cast device.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the queue was full.",
		}),
		sinkUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "sink_updates_total",
			Help:      "Metadata pushes per sink and result.",
		}, []string{"sink", "result"}),
		encoderLaunch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "encoder_launches_total",
			Help:      "Encoder processes launched.",
		}),
		sessionStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "sessions_started_total",
			Help:      "Transitions into an active cast session.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "reconnects_total",
			Help:      "Bind attempts after the device connection was lost.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.notifications, m.dropped, m.sinkUpdates, m.encoderLaunch, m.sessionStarted, m.reconnects)
	}

	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
