package domain

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// KeyPayloadPrefix is how many payload bytes take part in an event's identity.
const KeyPayloadPrefix = 256

type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SubtitleEvent is one timed bitmap caption. Values are never mutated after
// they enter the event store.
type SubtitleEvent struct {
	StartTime    float64 `json:"startTime"`
	Duration     float64 `json:"duration"`
	ImagePayload string  `json:"imageData"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	X            *int    `json:"x,omitempty"`
	Y            *int    `json:"y,omitempty"`
	CanvasWidth  *int    `json:"canvasWidth,omitempty"`
	CanvasHeight *int    `json:"canvasHeight,omitempty"`
	CropX        *int    `json:"cropX,omitempty"`
	CropY        *int    `json:"cropY,omitempty"`
	CropWidth    *int    `json:"cropWidth,omitempty"`
	CropHeight   *int    `json:"cropHeight,omitempty"`
}

func (e SubtitleEvent) EndTime() float64 {
	return e.StartTime + e.Duration
}

// Contains reports whether t lies inside [StartTime, EndTime].
func (e SubtitleEvent) Contains(t float64) bool {
	return t >= e.StartTime && t <= e.EndTime()
}

// Key hashes start, duration and the payload prefix. Two events with the
// same key are treated as the same caption.
func (e SubtitleEvent) Key() string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(e.StartTime))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(e.Duration))

	h := xxhash.New()
	_, _ = h.Write(buf[:])
	prefix := e.ImagePayload
	if len(prefix) > KeyPayloadPrefix {
		prefix = prefix[:KeyPayloadPrefix]
	}
	_, _ = h.WriteString(prefix)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Crop returns the crop rectangle when all four crop fields are present.
func (e SubtitleEvent) Crop() (CropRect, bool) {
	if e.CropX == nil || e.CropY == nil || e.CropWidth == nil || e.CropHeight == nil {
		return CropRect{}, false
	}
	return CropRect{X: *e.CropX, Y: *e.CropY, Width: *e.CropWidth, Height: *e.CropHeight}, true
}

func (e SubtitleEvent) Validate() error {
	switch {
	case e.ImagePayload == "":
		return ErrInvalidEvent
	case e.Duration < 0 || math.IsNaN(e.Duration) || math.IsNaN(e.StartTime):
		return ErrInvalidEvent
	case e.Width < 0 || e.Height < 0:
		return ErrInvalidEvent
	}
	if crop, ok := e.Crop(); ok && (crop.Width <= 0 || crop.Height <= 0) {
		return ErrInvalidEvent
	}
	return nil
}
