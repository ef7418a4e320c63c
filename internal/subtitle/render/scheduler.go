// Package render selects the active subtitle event for a playback time and
// composites it onto an overlay surface.
package render

import (
	"image"
	"math"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/domain/ports"
	"torrentstream/playback/internal/metrics"
)

// bottomInset is the default distance, in reference canvas pixels, between
// an unpositioned caption and the bottom edge.
const bottomInset = 20

type EventSource interface {
	Events() []domain.SubtitleEvent
}

type FrameSource interface {
	Get(payload string) (image.Image, bool)
}

// DebugFunc receives diagnostic messages when debugging is enabled.
type DebugFunc func(message string, data map[string]any)

// State is a copy of the scheduler's bookkeeping.
type State struct {
	Current    *domain.SubtitleEvent `json:"current"`
	Rendered   bool                  `json:"rendered"`
	TimeOffset float64               `json:"timeOffset"`
}

// Scheduler shows at most one event at a time: the first stored event, in
// insertion order, whose [start, end] range contains the adjusted time.
// Overlapping events are not composited. It is not safe for concurrent use.
type Scheduler struct {
	events  EventSource
	frames  FrameSource
	surface ports.Surface
	debug   DebugFunc

	current    *domain.SubtitleEvent
	currentKey string
	rendered   bool
	timeOffset float64
}

func NewScheduler(events EventSource, frames FrameSource, surface ports.Surface) *Scheduler {
	return &Scheduler{events: events, frames: frames, surface: surface}
}

// SetDebug installs or removes (nil) the debug sink.
func (s *Scheduler) SetDebug(fn DebugFunc) {
	s.debug = fn
}

func (s *Scheduler) Render(currentTime float64, targetWidth, targetHeight int) {
	t := currentTime + s.timeOffset
	selected, key := s.selectEvent(t)

	if selected == nil {
		if s.current != nil {
			s.surface.Clear()
			s.debugf("subtitle cleared", map[string]any{"time": t})
		}
		s.current = nil
		s.currentKey = ""
		s.rendered = false
		return
	}

	if s.current == nil || key != s.currentKey {
		s.surface.Clear()
		s.current = selected
		s.currentKey = key
		s.rendered = false
	}

	if s.rendered {
		return
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		targetWidth, targetHeight = s.surface.Size()
	}
	if s.draw(*selected, targetWidth, targetHeight) {
		s.rendered = true
	}
}

// Resize changes the surface dimensions; the next Render redraws.
func (s *Scheduler) Resize(width, height int) {
	s.surface.Resize(width, height)
	s.rendered = false
	s.debugf("surface resized", map[string]any{"width": width, "height": height})
}

// SetTimeOffset takes effect on the next Render.
func (s *Scheduler) SetTimeOffset(offset float64) {
	s.timeOffset = offset
}

func (s *Scheduler) TimeOffset() float64 {
	return s.timeOffset
}

func (s *Scheduler) Clear() {
	s.surface.Clear()
	s.current = nil
	s.currentKey = ""
	s.rendered = false
}

func (s *Scheduler) State() State {
	st := State{Rendered: s.rendered, TimeOffset: s.timeOffset}
	if s.current != nil {
		ev := *s.current
		st.Current = &ev
	}
	return st
}

func (s *Scheduler) selectEvent(t float64) (*domain.SubtitleEvent, string) {
	for _, ev := range s.events.Events() {
		if ev.Contains(t) {
			return &ev, ev.Key()
		}
	}
	return nil, ""
}

func (s *Scheduler) draw(ev domain.SubtitleEvent, targetWidth, targetHeight int) bool {
	frame, ok := s.frames.Get(ev.ImagePayload)
	if !ok {
		return false
	}
	src, dst := Placement(ev, frame.Bounds(), targetWidth, targetHeight)
	if dst.Empty() || src.Empty() {
		return false
	}
	s.surface.DrawImage(frame, src, dst)
	metrics.SubtitleDrawsTotal.Inc()
	s.debugf("subtitle drawn", map[string]any{
		"startTime": ev.StartTime,
		"duration":  ev.Duration,
		"dst":       dst.String(),
	})
	return true
}

func (s *Scheduler) debugf(message string, data map[string]any) {
	if s.debug != nil {
		s.debug(message, data)
	}
}

// Placement computes the source rectangle inside the decoded frame and the
// destination rectangle on a target of the given size.
func Placement(ev domain.SubtitleEvent, frameBounds image.Rectangle, targetWidth, targetHeight int) (src, dst image.Rectangle) {
	refWidth, refHeight := targetWidth, targetHeight
	if ev.CanvasWidth != nil && *ev.CanvasWidth > 0 {
		refWidth = *ev.CanvasWidth
	}
	if ev.CanvasHeight != nil && *ev.CanvasHeight > 0 {
		refHeight = *ev.CanvasHeight
	}
	if refWidth <= 0 || refHeight <= 0 {
		return image.Rectangle{}, image.Rectangle{}
	}
	scaleX := float64(targetWidth) / float64(refWidth)
	scaleY := float64(targetHeight) / float64(refHeight)

	width, height := ev.Width, ev.Height
	if width <= 0 || height <= 0 {
		width, height = frameBounds.Dx(), frameBounds.Dy()
	}

	x := (refWidth - width) / 2
	if ev.X != nil {
		x = *ev.X
	}
	y := refHeight - height - bottomInset
	if ev.Y != nil {
		y = *ev.Y
	}

	dst = image.Rect(
		scaled(x, scaleX),
		scaled(y, scaleY),
		scaled(x+width, scaleX),
		scaled(y+height, scaleY),
	)

	src = frameBounds
	if crop, ok := ev.Crop(); ok {
		src = image.Rect(crop.X, crop.Y, crop.X+crop.Width, crop.Y+crop.Height).
			Add(frameBounds.Min).
			Intersect(frameBounds)
	}
	return src, dst
}

func scaled(v int, factor float64) int {
	return int(math.Round(float64(v) * factor))
}
