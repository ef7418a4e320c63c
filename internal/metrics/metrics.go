package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "playback",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	SubtitleEventsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "playback",
		Name:      "subtitle_events_stored",
		Help:      "Number of subtitle events held by the render worker.",
	})

	SubtitleDuplicateEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "subtitle_duplicate_events_total",
		Help:      "Total subtitle events dropped because their key was already stored.",
	})

	SubtitleDecodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "subtitle_decodes_total",
		Help:      "Total subtitle frame decodes by result.",
	}, []string{"result"})

	SubtitleDecodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "playback",
		Name:      "subtitle_decode_duration_seconds",
		Help:      "Duration of subtitle frame decodes in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	SubtitleFramesCached = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "playback",
		Name:      "subtitle_frames_cached",
		Help:      "Number of decoded frames held in the frame cache.",
	})

	SubtitleDrawsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "subtitle_draws_total",
		Help:      "Total subtitle draw operations performed on the overlay surface.",
	})

	StreamMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "stream_messages_total",
		Help:      "Total inbound stream messages by type.",
	}, []string{"type"})

	StreamStateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "stream_state_transitions_total",
		Help:      "Total stream loading state transitions by from/to phase.",
	}, []string{"from", "to"})

	AutoplayRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "autoplay_runs_total",
		Help:      "Total autoplay sequences by outcome.",
	}, []string{"outcome"})

	BackendReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "playback",
		Name:      "backend_reconnects_total",
		Help:      "Total reconnect attempts of the backend event stream.",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "playback",
		Name:      "ws_clients",
		Help:      "Number of connected observer websocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SubtitleEventsStored,
		SubtitleDuplicateEventsTotal,
		SubtitleDecodesTotal,
		SubtitleDecodeDuration,
		SubtitleFramesCached,
		SubtitleDrawsTotal,
		StreamMessagesTotal,
		StreamStateTransitionsTotal,
		AutoplayRunsTotal,
		BackendReconnectsTotal,
		WSClients,
	)
}
