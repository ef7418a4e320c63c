// Package autoplay runs the countdown that plays the next episode after the
// current one ends.
package autoplay

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/domain/ports"
	"torrentstream/playback/internal/metrics"
	"torrentstream/playback/internal/observe"
	"torrentstream/playback/internal/telemetry"
)

const (
	countdownTick     = time.Second
	executionDelay    = domain.AutoplayCountdownSeconds * time.Second
	storeTimeout      = 5 * time.Second
	dispatchTimeout   = 30 * time.Second
	msgPlayingNext    = "Playing next episode"
	msgRequestingNext = "Requesting next episode"
	msgFailed         = "Failed to play next episode"
)

// PlaybackContext describes the playback that just finished.
type PlaybackContext struct {
	MediaID       int `json:"mediaId"`
	EpisodeNumber int `json:"episodeNumber"`
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithEnabled(enabled bool) Option {
	return func(c *Coordinator) { c.enabled = enabled }
}

// WithSelectedTorrents keeps the torrent the user picked so batch torrents
// continue with their next file instead of being auto-selected again.
func WithSelectedTorrents(store ports.SelectedTorrentStore) Option {
	return func(c *Coordinator) { c.selected = store }
}

func WithNotifier(n ports.Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// Coordinator allows at most one autoplay sequence in flight. The active and
// starting gates are checked and set under mu, so two Start calls can never
// both arm timers.
type Coordinator struct {
	player   ports.LocalPlayer
	streams  ports.StreamStarter
	infos    ports.AutoplayInfoStore
	selected ports.SelectedTorrentStore
	notifier ports.Notifier
	clock    Clock
	logger   *slog.Logger
	enabled  bool

	mu         sync.Mutex
	state      domain.AutoplayState
	starting   bool
	generation uint64
	ticker     Timer
	timer      Timer

	updates *observe.Broadcaster[domain.AutoplayState]
}

// New requires all three ports.
func New(player ports.LocalPlayer, streams ports.StreamStarter, infos ports.AutoplayInfoStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		player:   player,
		streams:  streams,
		infos:    infos,
		notifier: nopNotifier{},
		clock:    RealClock(),
		logger:   slog.Default(),
		enabled:  true,
		state:    domain.IdleAutoplayState(),
		updates:  observe.NewBroadcaster[domain.AutoplayState](16),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start arms the countdown. It reports whether a new sequence was started.
// The store lookup runs without holding mu; a Cancel or Close meanwhile
// aborts the start.
func (c *Coordinator) Start(ctx context.Context, pc PlaybackContext, next *domain.EpisodeRef, typ domain.StreamingType) bool {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		c.logger.Info("autoplay disabled")
		return false
	}
	if c.state.IsActive || c.starting {
		c.mu.Unlock()
		c.logger.Info("autoplay already active")
		return false
	}
	c.starting = true
	reserved := c.generation
	c.mu.Unlock()

	episode, resolved, ok := c.resolve(ctx, pc, next, typ)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if !ok {
		c.logger.Info("no next episode found", slog.Int("mediaId", pc.MediaID))
		return false
	}
	if c.generation != reserved {
		c.logger.Info("autoplay cancelled while starting")
		return false
	}

	c.generation++
	gen := c.generation
	c.state = domain.AutoplayState{
		IsActive:      true,
		Countdown:     domain.AutoplayCountdownSeconds,
		NextEpisode:   episode,
		StreamingType: &resolved,
	}
	c.ticker = c.clock.Every(countdownTick, func() { c.tick(gen) })
	c.timer = c.clock.AfterFunc(executionDelay, func() { c.execute(gen) })

	attrs := []any{slog.String("type", string(resolved))}
	if episode != nil {
		attrs = append(attrs, slog.Int("episode", episode.EpisodeNumber), slog.String("title", episode.DisplayTitle))
	}
	c.logger.Info("autoplay countdown started", attrs...)
	c.updates.Publish(c.state)
	return true
}

// resolve picks the episode and type: explicit episode first, then the
// pending stream info. Local playback requires an explicit episode.
func (c *Coordinator) resolve(ctx context.Context, pc PlaybackContext, next *domain.EpisodeRef, typ domain.StreamingType) (*domain.EpisodeRef, domain.StreamingType, bool) {
	if next != nil {
		ep := *next
		if ep.MediaID == 0 {
			ep.MediaID = pc.MediaID
		}
		if !typ.Valid() {
			typ = domain.StreamingLocal
		}
		return &ep, typ, true
	}

	info, ok := c.pendingInfo(ctx)
	if !ok {
		return nil, "", false
	}
	switch info.Kind {
	case domain.AutoplayTorrentStream:
		return nil, domain.StreamingTorrent, true
	case domain.AutoplayDebridStream:
		return nil, domain.StreamingDebrid, true
	default:
		return nil, "", false
	}
}

func (c *Coordinator) pendingInfo(ctx context.Context) (domain.StreamAutoplayInfo, bool) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	info, ok, err := c.infos.Get(ctx)
	if err != nil {
		c.logger.Warn("autoplay info lookup failed", slog.String("error", err.Error()))
		return domain.StreamAutoplayInfo{}, false
	}
	return info, ok
}

func (c *Coordinator) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.state.IsActive {
		return
	}
	if c.state.Countdown <= 1 {
		c.state.Countdown = 0
		c.stopTicker()
	} else {
		c.state.Countdown--
	}
	c.updates.Publish(c.state)
}

func (c *Coordinator) execute(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.state.IsActive {
		c.mu.Unlock()
		return
	}
	c.stopTicker()
	c.timer = nil
	c.state.Countdown = 0
	typ := *c.state.StreamingType
	var episode *domain.EpisodeRef
	if c.state.NextEpisode != nil {
		ep := *c.state.NextEpisode
		episode = &ep
	}
	c.updates.Publish(c.state)
	c.mu.Unlock()

	c.run(gen, episode, typ)
}

// run performs the dispatch. Errors and panics end up as a warning toast and
// the coordinator always returns to idle.
func (c *Coordinator) run(gen uint64, episode *domain.EpisodeRef, typ domain.StreamingType) {
	runID := uuid.NewString()
	logger := c.logger.With(slog.String("run", runID), slog.String("type", string(typ)))

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	ctx, span := telemetry.Tracer().Start(ctx, "autoplay.execute")
	span.SetAttributes(
		attribute.String("autoplay.run", runID),
		attribute.String("autoplay.type", string(typ)),
	)

	outcome := "played"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			logger.Error("autoplay dispatch panic",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
			span.SetStatus(codes.Error, fmt.Sprint(r))
			c.notifier.Warn(msgFailed)
		}
		metrics.AutoplayRunsTotal.WithLabelValues(outcome).Inc()
		span.End()
		cancel()
		c.finish(gen)
		logger.Info("autoplay execution finished", slog.String("outcome", outcome))
	}()

	logger.Info("executing autoplay")
	played, err := c.dispatch(ctx, episode, typ)
	switch {
	case err != nil:
		outcome = "failed"
		logger.Error("autoplay dispatch failed", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.notifier.Warn(msgFailed)
	case !played:
		outcome = "skipped"
	}
}

func (c *Coordinator) dispatch(ctx context.Context, episode *domain.EpisodeRef, typ domain.StreamingType) (bool, error) {
	switch typ {
	case domain.StreamingLocal:
		if episode == nil || episode.LocalFilePath == "" {
			return false, nil
		}
		if err := c.player.PlayLocalFile(ctx, episode.LocalFilePath, episode.MediaID, *episode); err != nil {
			return false, err
		}
		c.notifier.Info(msgPlayingNext)
		return true, nil
	case domain.StreamingTorrent:
		return c.playNextStream(ctx, domain.AutoplayTorrentStream, c.streams.StartTorrentStream, c.streams.StartSelectedTorrentStream)
	case domain.StreamingDebrid:
		return c.playNextStream(ctx, domain.AutoplayDebridStream, c.streams.StartDebridStream, c.streams.StartSelectedDebridStream)
	default:
		c.logger.Warn("unknown streaming type", slog.String("type", string(typ)))
		return false, nil
	}
}

type (
	autoStartFunc     func(context.Context, domain.EpisodeRef) error
	selectedStartFunc func(context.Context, domain.EpisodeRef, domain.StreamSelection) error
)

// playNextStream starts the episode the pending info points at and advances
// the info to the following episode, clearing it when there is none. A batch
// torrent selected for the same media is reused with its next file.
func (c *Coordinator) playNextStream(ctx context.Context, kind domain.StreamAutoplayKind, auto autoStartFunc, selected selectedStartFunc) (bool, error) {
	info, ok := c.pendingInfo(ctx)
	if !ok || info.Kind != kind {
		return false, nil
	}
	ep := info.EpisodeRef()

	if sel, ok := c.batchSelection(ctx, info.MediaID); ok {
		req := domain.StreamSelection{Torrent: sel.Torrent}
		file, hasNext := sel.NextBatchFile()
		if hasNext {
			idx := file.Index
			req.FileIndex = &idx
		}
		if err := selected(ctx, ep, req); err != nil {
			return false, err
		}
		if hasNext {
			c.advanceBatch(ctx, sel, file.Index, ep)
		}
	} else if err := auto(ctx, ep); err != nil {
		return false, err
	}

	if next, ok := info.Next(); ok {
		if err := c.infos.Set(ctx, next); err != nil {
			c.logger.Warn("autoplay info advance failed", slog.String("error", err.Error()))
		}
	} else if err := c.infos.Clear(ctx); err != nil {
		c.logger.Warn("autoplay info clear failed", slog.String("error", err.Error()))
	}
	c.notifier.Info(msgRequestingNext)
	return true, nil
}

// batchSelection returns the selected torrent when it is a batch for mediaID.
func (c *Coordinator) batchSelection(ctx context.Context, mediaID int) (domain.SelectedTorrent, bool) {
	if c.selected == nil {
		return domain.SelectedTorrent{}, false
	}
	sel, ok, err := c.selected.Get(ctx)
	if err != nil {
		c.logger.Warn("selected torrent lookup failed", slog.String("error", err.Error()))
		return domain.SelectedTorrent{}, false
	}
	if !ok || sel.MediaID != mediaID || !sel.Torrent.IsBatch {
		return domain.SelectedTorrent{}, false
	}
	return sel, true
}

// advanceBatch records the file just requested as the current one.
func (c *Coordinator) advanceBatch(ctx context.Context, sel domain.SelectedTorrent, index int, ep domain.EpisodeRef) {
	batch := *sel.BatchFiles
	batch.Files = append([]domain.BatchFile(nil), batch.Files...)
	batch.Current = index
	batch.CurrentEpisodeNumber = ep.EpisodeNumber
	batch.CurrentAniDBEpisode = ep.AniDBEpisode
	sel.BatchFiles = &batch
	if err := c.selected.Set(ctx, sel); err != nil {
		c.logger.Warn("selected torrent advance failed", slog.String("error", err.Error()))
	}
}

func (c *Coordinator) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.resetLocked()
}

// Cancel stops both timers and resets state and pending stream info. It is
// safe from any state and may be called repeatedly.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.mu.Lock()
	wasActive := c.state.IsActive
	c.generation++
	c.resetLocked()
	c.mu.Unlock()

	if wasActive {
		c.logger.Info("autoplay cancelled")
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.infos.Clear(ctx); err != nil {
		c.logger.Warn("autoplay info clear failed", slog.String("error", err.Error()))
	}
}

func (c *Coordinator) resetLocked() {
	c.stopTicker()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = domain.IdleAutoplayState()
	c.updates.Publish(c.state)
}

func (c *Coordinator) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Coordinator) State() domain.AutoplayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe streams state snapshots. Observers are eventually consistent;
// the Start gate never reads from them.
func (c *Coordinator) Subscribe(replay bool) (<-chan domain.AutoplayState, func()) {
	return c.updates.Subscribe(replay)
}

// SetStreamInfo records the pending next-episode info left by a torrent or
// debrid stream.
func (c *Coordinator) SetStreamInfo(ctx context.Context, info domain.StreamAutoplayInfo) error {
	if info.Kind != domain.AutoplayTorrentStream && info.Kind != domain.AutoplayDebridStream {
		return fmt.Errorf("%w: autoplay info kind %q", domain.ErrUnsupported, info.Kind)
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return c.infos.Set(ctx, info)
}

func (c *Coordinator) ClearStreamInfo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return c.infos.Clear(ctx)
}

func (c *Coordinator) StreamInfo(ctx context.Context) (domain.StreamAutoplayInfo, bool) {
	return c.pendingInfo(ctx)
}

// SetSelectedTorrent records the torrent the user picked for a stream.
func (c *Coordinator) SetSelectedTorrent(ctx context.Context, sel domain.SelectedTorrent) error {
	if c.selected == nil {
		return fmt.Errorf("%w: no selected torrent store", domain.ErrUnsupported)
	}
	if sel.MediaID <= 0 || (sel.Torrent.Name == "" && sel.Torrent.InfoHash == "" && sel.Torrent.Link == "") {
		return fmt.Errorf("%w: selected torrent needs a media id and a torrent", domain.ErrInvalidRequest)
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return c.selected.Set(ctx, sel)
}

func (c *Coordinator) ClearSelectedTorrent(ctx context.Context) error {
	if c.selected == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return c.selected.Clear(ctx)
}

func (c *Coordinator) SelectedTorrent(ctx context.Context) (domain.SelectedTorrent, bool) {
	if c.selected == nil {
		return domain.SelectedTorrent{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	sel, ok, err := c.selected.Get(ctx)
	if err != nil {
		c.logger.Warn("selected torrent lookup failed", slog.String("error", err.Error()))
		return domain.SelectedTorrent{}, false
	}
	return sel, ok
}

// HasNextEpisode reports whether a sequence has an episode queued or a
// stream left pending info behind.
func (c *Coordinator) HasNextEpisode(ctx context.Context) bool {
	c.mu.Lock()
	queued := c.state.NextEpisode != nil
	c.mu.Unlock()
	if queued {
		return true
	}
	_, ok := c.pendingInfo(ctx)
	return ok
}

// Close stops any pending sequence. Pending stream info is kept.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.generation++
	c.resetLocked()
	c.mu.Unlock()
	c.updates.Close()
}

type nopNotifier struct{}

func (nopNotifier) Info(string) {}
func (nopNotifier) Warn(string) {}
