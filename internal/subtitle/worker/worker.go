// Package worker runs the subtitle pipeline on its own goroutine. The event
// store, frame cache and render scheduler are owned by that goroutine and are
// only reachable through request messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/domain/ports"
	"torrentstream/playback/internal/subtitle/eventstore"
	"torrentstream/playback/internal/subtitle/framecache"
	"torrentstream/playback/internal/subtitle/render"
)

var ErrStopped = errors.New("render worker stopped")

type Config struct {
	QueueSize     int
	ResponseSize  int
	DecodeWorkers int64
	Decoder       ports.FrameDecoder
	Logger        *slog.Logger
}

type Worker struct {
	requests  chan Request
	responses chan Response
	done      chan struct{}
	logger    *slog.Logger

	cache     *framecache.Cache
	store     *eventstore.Store
	surface   *render.ImageSurface
	scheduler *render.Scheduler
	ready     bool
	debug     bool
}

func New(cfg Config) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.ResponseSize <= 0 {
		cfg.ResponseSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Worker{
		requests:  make(chan Request, cfg.QueueSize),
		responses: make(chan Response, cfg.ResponseSize),
		done:      make(chan struct{}),
		logger:    cfg.Logger,
		cache:     framecache.New(),
		surface:   render.NewImageSurface(0, 0),
	}
	w.store = eventstore.New(w.cache, cfg.Decoder,
		eventstore.WithLogger(cfg.Logger),
		eventstore.WithDecodeLimit(cfg.DecodeWorkers),
		eventstore.WithDecodeErrorHandler(func(ev domain.SubtitleEvent, err error) {
			w.emit(Error{
				Message: fmt.Sprintf("failed to decode subtitle at %.3fs", ev.StartTime),
				Err:     err.Error(),
			})
		}),
	)
	w.scheduler = render.NewScheduler(w.store, w.cache, w.surface)
	return w
}

// Responses delivers debug and error messages. Messages are dropped when
// nobody drains the channel.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Send enqueues a request, blocking until there is room or ctx ends.
func (w *Worker) Send(ctx context.Context, req Request) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post enqueues without blocking and reports whether the request was taken.
func (w *Worker) Post(req Request) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.requests <- req:
		return true
	default:
		return false
	}
}

// Snapshot is a convenience round trip for a Snapshot request.
func (w *Worker) Snapshot(ctx context.Context, waitDecodes, encodePNG bool) (SnapshotResult, error) {
	reply := make(chan SnapshotResult, 1)
	if err := w.Send(ctx, Snapshot{WaitDecodes: waitDecodes, EncodePNG: encodePNG, Reply: reply}); err != nil {
		return SnapshotResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-w.done:
		return SnapshotResult{}, ErrStopped
	case <-ctx.Done():
		return SnapshotResult{}, ctx.Err()
	}
}

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		close(w.done)
		w.store.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-w.requests:
			w.handle(req)
		}
	}
}

func (w *Worker) handle(req Request) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("render worker panic recovered",
				slog.String("request", req.requestType()),
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
			)
			w.emit(Error{Message: "render worker failed to handle " + req.requestType(), Err: fmt.Sprint(r)})
		}
	}()

	switch r := req.(type) {
	case Init:
		w.surface.Resize(r.Width, r.Height)
		w.scheduler.Clear()
		w.ready = true
		w.setDebug(r.Debug)
		w.debugf("worker initialized", map[string]any{"width": r.Width, "height": r.Height})
	case AddEvent:
		if err := r.Event.Validate(); err != nil {
			w.emit(Error{Message: "rejected subtitle event", Err: err.Error()})
			return
		}
		if w.store.Add(r.Event) {
			w.debugf("event added", map[string]any{"startTime": r.Event.StartTime, "duration": r.Event.Duration})
		}
	case Render:
		if !w.ready {
			return
		}
		w.scheduler.Render(r.CurrentTime, r.CanvasWidth, r.CanvasHeight)
	case Resize:
		w.ready = true
		w.scheduler.Resize(r.Width, r.Height)
	case Clear:
		w.store.Clear()
		w.scheduler.Clear()
		w.debugf("subtitles cleared", nil)
	case SetTimeOffset:
		w.scheduler.SetTimeOffset(r.Offset)
		w.debugf("time offset set", map[string]any{"offset": r.Offset})
	case SetDebug:
		w.setDebug(r.Debug)
	case Snapshot:
		w.snapshot(r)
	default:
		w.emit(Error{Message: "unknown request", Err: fmt.Sprintf("%T", req)})
	}
}

func (w *Worker) snapshot(req Snapshot) {
	if req.WaitDecodes {
		w.store.Wait()
	}
	width, height := w.surface.Size()
	res := SnapshotResult{
		Initialized: w.ready,
		Debug:       w.debug,
		Events:      w.store.Len(),
		Frames:      w.cache.Len(),
		Width:       width,
		Height:      height,
		Render:      w.scheduler.State(),
	}
	if req.EncodePNG {
		png, err := w.surface.EncodePNG()
		if err != nil {
			res.Err = err.Error()
		}
		res.PNG = png
	}
	if req.Reply == nil {
		return
	}
	select {
	case req.Reply <- res:
	default:
		w.logger.Warn("snapshot reply dropped")
	}
}

func (w *Worker) setDebug(enabled bool) {
	w.debug = enabled
	if enabled {
		w.scheduler.SetDebug(w.debugf)
	} else {
		w.scheduler.SetDebug(nil)
	}
}

func (w *Worker) debugf(message string, data map[string]any) {
	if !w.debug {
		return
	}
	w.emit(Debug{Message: message, Data: data})
}

func (w *Worker) emit(resp Response) {
	select {
	case w.responses <- resp:
	default:
		w.logger.Debug("render worker response dropped", slog.String("type", resp.responseType()))
	}
}
