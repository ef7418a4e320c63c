// Package eventstore keeps the timed subtitle events of one playback session
// and schedules the decode of their bitmaps into the frame cache.
package eventstore

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/domain/ports"
	"torrentstream/playback/internal/metrics"
	"torrentstream/playback/internal/subtitle/decode"
	"torrentstream/playback/internal/subtitle/framecache"
)

const defaultDecodeLimit = 4

// DecodeErrorHandler is told about every payload that failed to decode.
type DecodeErrorHandler func(ev domain.SubtitleEvent, err error)

type Store struct {
	cache   *framecache.Cache
	decoder ports.FrameDecoder
	logger  *slog.Logger
	onError DecodeErrorHandler
	sem     *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	events     []domain.SubtitleEvent
	keys       map[string]struct{}
	inflight   map[string]struct{}
	generation uint64
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDecodeLimit bounds how many payloads decode at the same time.
func WithDecodeLimit(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(n)
		}
	}
}

func WithDecodeErrorHandler(fn DecodeErrorHandler) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

func New(cache *framecache.Cache, decoder ports.FrameDecoder, opts ...Option) *Store {
	if decoder == nil {
		decoder = decode.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cache:    cache,
		decoder:  decoder,
		logger:   slog.Default(),
		sem:      semaphore.NewWeighted(defaultDecodeLimit),
		ctx:      ctx,
		cancel:   cancel,
		keys:     make(map[string]struct{}),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers ev and starts decoding its payload in the background. It
// returns false without side effects when an event with the same key exists.
func (s *Store) Add(ev domain.SubtitleEvent) bool {
	key := ev.Key()

	s.mu.Lock()
	if _, exists := s.keys[key]; exists {
		s.mu.Unlock()
		metrics.SubtitleDuplicateEventsTotal.Inc()
		return false
	}
	s.keys[key] = struct{}{}
	s.events = append(s.events, ev)
	count := len(s.events)

	_, decoding := s.inflight[ev.ImagePayload]
	needDecode := !decoding && !s.cache.Has(ev.ImagePayload)
	gen := s.generation
	if needDecode {
		s.inflight[ev.ImagePayload] = struct{}{}
		s.wg.Add(1)
	}
	s.mu.Unlock()

	metrics.SubtitleEventsStored.Set(float64(count))
	if needDecode {
		go s.decode(gen, ev)
	}
	return true
}

// Events returns the stored events in insertion order. The returned slice
// must not be modified.
func (s *Store) Events() []domain.SubtitleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[:len(s.events):len(s.events)]
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Clear drops every event and cached frame. Decodes still running for the
// previous session finish but never reach the cache.
func (s *Store) Clear() {
	s.mu.Lock()
	s.generation++
	s.events = nil
	s.keys = make(map[string]struct{})
	s.inflight = make(map[string]struct{})
	s.cache.Clear()
	s.mu.Unlock()

	metrics.SubtitleEventsStored.Set(0)
	metrics.SubtitleFramesCached.Set(0)
}

// Wait blocks until every decode started so far has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close aborts decodes that are still waiting for a slot.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Store) decode(gen uint64, ev domain.SubtitleEvent) {
	defer s.wg.Done()
	defer s.finish(gen, ev.ImagePayload)

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	if s.stale(gen) {
		return
	}

	start := time.Now()
	frame, err := s.safeDecode(ev.ImagePayload)
	metrics.SubtitleDecodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubtitleDecodesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("subtitle decode failed",
			slog.Float64("startTime", ev.StartTime),
			slog.Float64("duration", ev.Duration),
			slog.String("error", err.Error()),
		)
		if s.onError != nil {
			s.onError(ev, err)
		}
		return
	}
	metrics.SubtitleDecodesTotal.WithLabelValues("ok").Inc()

	s.mu.Lock()
	if gen == s.generation {
		s.cache.Put(ev.ImagePayload, frame)
	}
	cached := s.cache.Len()
	s.mu.Unlock()
	metrics.SubtitleFramesCached.Set(float64(cached))
}

func (s *Store) safeDecode(payload string) (frame image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame = nil
			err = fmt.Errorf("%w: panic: %v", decode.ErrDecode, r)
		}
	}()
	return s.decoder.Decode(payload)
}

func (s *Store) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

func (s *Store) finish(gen uint64, payload string) {
	s.mu.Lock()
	if gen == s.generation {
		delete(s.inflight, payload)
	}
	s.mu.Unlock()
}
