package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/observe"
	"torrentstream/playback/internal/services/autoplay"
	"torrentstream/playback/internal/subtitle/worker"
)

type StreamMachine interface {
	Status() domain.StreamStatus
	Handle(ctx context.Context, msg domain.StreamMessage) error
	Subscribe(replay bool) (<-chan domain.StreamStatus, func())
}

type AutoplayController interface {
	Start(ctx context.Context, pc autoplay.PlaybackContext, next *domain.EpisodeRef, typ domain.StreamingType) bool
	Cancel(ctx context.Context)
	State() domain.AutoplayState
	HasNextEpisode(ctx context.Context) bool
	SetStreamInfo(ctx context.Context, info domain.StreamAutoplayInfo) error
	ClearStreamInfo(ctx context.Context) error
	StreamInfo(ctx context.Context) (domain.StreamAutoplayInfo, bool)
	SetSelectedTorrent(ctx context.Context, sel domain.SelectedTorrent) error
	ClearSelectedTorrent(ctx context.Context) error
	SelectedTorrent(ctx context.Context) (domain.SelectedTorrent, bool)
	Subscribe(replay bool) (<-chan domain.AutoplayState, func())
}

type SubtitleRenderer interface {
	Send(ctx context.Context, req worker.Request) error
	Snapshot(ctx context.Context, waitDecodes, encodePNG bool) (worker.SnapshotResult, error)
	Responses() <-chan worker.Response
}

type ToastSource interface {
	Subscribe() (<-chan observe.Toast, func())
}

type Server struct {
	stream         StreamMachine
	autoplay       AutoplayController
	subtitles      SubtitleRenderer
	toasts         ToastSource
	allowedOrigins []string
	rateLimit      float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

func WithStreamMachine(m StreamMachine) ServerOption {
	return func(s *Server) {
		s.stream = m
	}
}

func WithAutoplay(c AutoplayController) ServerOption {
	return func(s *Server) {
		s.autoplay = c
	}
}

func WithSubtitles(r SubtitleRenderer) ServerOption {
	return func(s *Server) {
		s.subtitles = r
	}
}

func WithToasts(t ToastSource) ServerOption {
	return func(s *Server) {
		s.toasts = t
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{rateLimit: 100, rateBurst: 200}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	mux.HandleFunc("/api/stream/state", s.handleStreamState)
	mux.HandleFunc("/api/stream/events", s.handleStreamEvents)

	mux.HandleFunc("/api/autoplay", s.handleAutoplay)
	mux.HandleFunc("/api/autoplay/start", s.handleAutoplayStart)
	mux.HandleFunc("/api/autoplay/cancel", s.handleAutoplayCancel)
	mux.HandleFunc("/api/autoplay/stream-info", s.handleAutoplayStreamInfo)
	mux.HandleFunc("/api/autoplay/selected-torrent", s.handleAutoplaySelectedTorrent)

	mux.HandleFunc("/api/files/resolve", s.handleResolveFiles)
	mux.HandleFunc("/api/files/torrent", s.handleTorrentFiles)
	mux.HandleFunc("/api/files/magnet", s.handleMagnet)

	mux.HandleFunc("/api/subtitles/init", s.handleSubtitleInit)
	mux.HandleFunc("/api/subtitles/events", s.handleSubtitleEvents)
	mux.HandleFunc("/api/subtitles/pgs", s.handleSubtitlePGS)
	mux.HandleFunc("/api/subtitles/clear", s.handleSubtitleClear)
	mux.HandleFunc("/api/subtitles/offset", s.handleSubtitleOffset)
	mux.HandleFunc("/api/subtitles/resize", s.handleSubtitleResize)
	mux.HandleFunc("/api/subtitles/debug", s.handleSubtitleDebug)
	mux.HandleFunc("/api/subtitles/frame", s.handleSubtitleFrame)
	mux.HandleFunc("/api/subtitles/state", s.handleSubtitleState)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "playback",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimit, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close disconnects all websocket clients.
func (s *Server) Close() {
	s.wsHub.Close()
}

// handleWS upgrades the connection and queues the current stream and
// autoplay snapshots before the client joins the broadcast set.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if s.stream != nil {
		s.wsHub.queue(client, "stream_state", s.stream.Status())
	}
	if s.autoplay != nil {
		s.wsHub.queue(client, "autoplay_state", s.autoplay.State())
	}
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// RunBroadcasts forwards state changes, toasts and render worker output to
// websocket clients until ctx ends.
func (s *Server) RunBroadcasts(ctx context.Context) {
	var (
		streamCh   <-chan domain.StreamStatus
		autoplayCh <-chan domain.AutoplayState
		toastCh    <-chan observe.Toast
		workerCh   <-chan worker.Response
	)
	if s.stream != nil {
		ch, unsubscribe := s.stream.Subscribe(false)
		defer unsubscribe()
		streamCh = ch
	}
	if s.autoplay != nil {
		ch, unsubscribe := s.autoplay.Subscribe(false)
		defer unsubscribe()
		autoplayCh = ch
	}
	if s.toasts != nil {
		ch, unsubscribe := s.toasts.Subscribe()
		defer unsubscribe()
		toastCh = ch
	}
	if s.subtitles != nil {
		workerCh = s.subtitles.Responses()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-streamCh:
			if !ok {
				streamCh = nil
				continue
			}
			s.wsHub.Broadcast("stream_state", st)
		case st, ok := <-autoplayCh:
			if !ok {
				autoplayCh = nil
				continue
			}
			s.wsHub.Broadcast("autoplay_state", st)
		case t, ok := <-toastCh:
			if !ok {
				toastCh = nil
				continue
			}
			s.wsHub.Broadcast("toast", t)
		case resp, ok := <-workerCh:
			if !ok {
				workerCh = nil
				continue
			}
			if e, ok := resp.(worker.Error); ok {
				s.logger.Warn("subtitle worker error", slog.String("message", e.Message), slog.String("error", e.Err))
			}
			s.wsHub.Broadcast("subtitle_"+worker.ResponseType(resp), resp)
		}
	}
}
