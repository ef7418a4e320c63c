// Package loading tracks the lifecycle of acquiring a torrent or debrid
// stream. It is driven only by backend push messages and never polls; there
// is no timeout, so a backend that dies mid-load leaves the last state in
// place until the next message.
package loading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/metrics"
	"torrentstream/playback/internal/observe"
	"torrentstream/playback/internal/telemetry"
)

var (
	ErrUnknownMessage = errors.New("unknown stream message")
	ErrInvalidPayload = errors.New("invalid stream message payload")
)

// Machine applies messages in the order Handle is called. Every message
// overwrites the relevant fields; nothing is inferred from earlier state.
type Machine struct {
	mu      sync.Mutex
	status  domain.StreamStatus
	logger  *slog.Logger
	updates *observe.Broadcaster[domain.StreamStatus]
}

func New(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		logger:  logger,
		updates: observe.NewBroadcaster[domain.StreamStatus](32),
	}
}

func (m *Machine) Status() domain.StreamStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe streams every snapshot produced after a message is applied.
func (m *Machine) Subscribe(replay bool) (<-chan domain.StreamStatus, func()) {
	return m.updates.Subscribe(replay)
}

func (m *Machine) Close() {
	m.updates.Close()
}

// Handle decodes and applies one pushed message.
func (m *Machine) Handle(ctx context.Context, msg domain.StreamMessage) error {
	_, span := telemetry.Tracer().Start(ctx, "stream.handle")
	span.SetAttributes(attribute.String("stream.message", msg.Type))
	defer span.End()

	metrics.StreamMessagesTotal.WithLabelValues(metricLabel(msg.Type)).Inc()

	switch msg.Type {
	case domain.MsgTorrentLoading:
		m.LoadingStarted()
	case domain.MsgTorrentLoadingStatus:
		var p domain.LoadingStatusPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		return m.LoadingStatus(p.State, p.TorrentBeingChecked)
	case domain.MsgTorrentLoaded:
		m.Loaded()
	case domain.MsgTorrentStartedPlaying:
		m.StartedPlaying()
	case domain.MsgTorrentStatus:
		var h domain.TorrentHealth
		if err := decodePayload(msg, &h); err != nil {
			return err
		}
		m.Health(h)
	case domain.MsgTorrentStopped:
		m.Stopped()
	case domain.MsgDebridStreamState:
		var d domain.DebridStreamState
		if err := decodePayload(msg, &d); err != nil {
			return err
		}
		m.DebridState(d)
	default:
		m.logger.Debug("stream message ignored", slog.String("type", msg.Type))
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}

// LoadingStarted begins a new acquisition.
func (m *Machine) LoadingStarted() {
	m.apply(domain.MsgTorrentLoading, func(s *domain.StreamStatus) {
		*s = domain.StreamStatus{Loading: statePtr(domain.LoadingSearchingTorrents)}
	})
}

// LoadingStatus adopts the reported state even when it moves backwards or
// arrives after a stop.
func (m *Machine) LoadingStatus(state domain.LoadingState, torrentBeingChecked string) error {
	if !state.Valid() {
		return fmt.Errorf("%w: loading state %q", ErrInvalidPayload, state)
	}
	m.apply(domain.MsgTorrentLoadingStatus, func(s *domain.StreamStatus) {
		s.Loading = statePtr(state)
		s.Stopped = false
		if name := strings.TrimSpace(torrentBeingChecked); name != "" {
			s.TorrentBeingChecked = name
		}
	})
	return nil
}

func (m *Machine) Loaded() {
	m.apply(domain.MsgTorrentLoaded, func(s *domain.StreamStatus) {
		s.Loading = statePtr(domain.LoadingSendingStreamToMPV)
		s.Loaded = true
		s.Stopped = false
	})
}

func (m *Machine) StartedPlaying() {
	m.apply(domain.MsgTorrentStartedPlaying, func(s *domain.StreamStatus) {
		s.Loading = nil
		s.PlaybackStarted = true
		s.Stopped = false
	})
}

// Health records a torrent-status report. The loading state is untouched.
func (m *Machine) Health(h domain.TorrentHealth) {
	m.apply(domain.MsgTorrentStatus, func(s *domain.StreamStatus) {
		s.Health = &h
		s.Loaded = true
	})
}

// Stopped is a hard reset.
func (m *Machine) Stopped() {
	m.apply(domain.MsgTorrentStopped, func(s *domain.StreamStatus) {
		*s = domain.StreamStatus{Stopped: true}
	})
}

func (m *Machine) DebridState(d domain.DebridStreamState) {
	if d.Status == domain.DebridFailed {
		m.logger.Warn("debrid stream failed",
			slog.String("torrent", d.TorrentName),
			slog.String("message", d.Message),
		)
	}
	m.apply(domain.MsgDebridStreamState, func(s *domain.StreamStatus) {
		s.Debrid = &d
	})
}

func (m *Machine) apply(msgType string, mutate func(*domain.StreamStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.status.Phase()
	seq := m.status.Sequence
	mutate(&m.status)
	m.status.Sequence = seq + 1
	to := m.status.Phase()

	if from != to {
		metrics.StreamStateTransitionsTotal.WithLabelValues(from, to).Inc()
		attrs := []any{
			slog.String("message", msgType),
			slog.String("from", from),
			slog.String("to", to),
		}
		if m.status.TorrentBeingChecked != "" {
			attrs = append(attrs, slog.String("torrent", m.status.TorrentBeingChecked))
		}
		m.logger.Info("stream state transition", attrs...)
	}
	m.updates.Publish(m.status)
}

func decodePayload(msg domain.StreamMessage, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrInvalidPayload, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msg.Type, err)
	}
	return nil
}

func statePtr(s domain.LoadingState) *domain.LoadingState {
	return &s
}

func metricLabel(msgType string) string {
	switch msgType {
	case domain.MsgTorrentLoading, domain.MsgTorrentLoadingStatus, domain.MsgTorrentLoaded,
		domain.MsgTorrentStartedPlaying, domain.MsgTorrentStatus, domain.MsgTorrentStopped,
		domain.MsgDebridStreamState:
		return msgType
	default:
		return "unknown"
	}
}
