package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mirrorEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_gateway_events_total",
			Help: "Total number of frames read from the gateway",
		},
		[]string{"identifier"},
	)

	mirrorDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_dispatch_events_total",
			Help: "Total number of dispatch events, split by event type",
		},
		[]string{"identifier", "event_type"},
	)

	mirrorDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_decode_errors_total",
			Help: "Total number of frames or payloads that failed to decode",
		},
		[]string{"identifier"},
	)

	mirrorReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_reconnects_total",
			Help: "Total number of reconnects, split by reason",
		},
		[]string{"identifier", "reason"},
	)

	mirrorGatewayLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_gateway_latency_milliseconds",
			Help: "Gateway latency in milliseconds, measured by heartbeat",
		},
		[]string{"identifier"},
	)

	mirrorEmittedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_emitted_events_total",
			Help: "Total number of normalized events emitted, split by collection and kind",
		},
		[]string{"identifier", "collection", "kind"},
	)

	mirrorSuppressedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_suppressed_messages_total",
			Help: "Total number of message creates suppressed by a pending nonce",
		},
		[]string{"identifier"},
	)

	mirrorHandlerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_handler_panics_total",
			Help: "Total number of recovered panics in dispatch handlers",
		},
		[]string{"identifier", "event_type"},
	)
)

// StateMetrics tracks the size of the mirrored state.
var StateMetrics = struct {
	Threads    *prometheus.GaugeVec
	Presences  *prometheus.GaugeVec
	Guilds     *prometheus.GaugeVec
	ReadStates *prometheus.GaugeVec
	Muted      *prometheus.GaugeVec
	Users      *prometheus.GaugeVec
}{
	Threads: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_threads",
		Help: "Number of mirrored threads",
	}, []string{"identifier"}),
	Presences: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_presences",
		Help: "Number of mirrored presences",
	}, []string{"identifier"}),
	Guilds: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_guilds",
		Help: "Number of guilds with mirrored emoji",
	}, []string{"identifier"}),
	ReadStates: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_read_states",
		Help: "Number of mirrored read states",
	}, []string{"identifier"}),
	Muted: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_muted_channels",
		Help: "Number of muted channels",
	}, []string{"identifier"}),
	Users: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirror_state_users",
		Help: "Number of mirrored users",
	}, []string{"identifier"}),
}

// UpdateStateMetrics publishes the current state sizes.
func UpdateStateMetrics(identifier string, counts StateCounts) {
	StateMetrics.Threads.WithLabelValues(identifier).Set(float64(counts.Threads))
	StateMetrics.Presences.WithLabelValues(identifier).Set(float64(counts.Presences))
	StateMetrics.Guilds.WithLabelValues(identifier).Set(float64(counts.Guilds))
	StateMetrics.ReadStates.WithLabelValues(identifier).Set(float64(counts.ReadStates))
	StateMetrics.Muted.WithLabelValues(identifier).Set(float64(counts.Muted))
	StateMetrics.Users.WithLabelValues(identifier).Set(float64(counts.Users))
}

func recordEmitted(identifier string, event NormalizedEvent) {
	mirrorEmittedEvents.WithLabelValues(identifier, string(event.Collection), string(event.Kind)).Inc()
}
