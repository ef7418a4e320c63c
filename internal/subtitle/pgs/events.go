package pgs

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"torrentstream/playback/internal/domain"
)

// defaultOpenDuration is used when a stream ends while a caption is visible.
const defaultOpenDuration = 5.0

// EventBuilder turns a sequence of timestamped packets into subtitle events.
// A caption stays open until the next display set replaces or clears it,
// unless the container supplied an explicit duration.
type EventBuilder struct {
	decoder *Decoder
	encoder png.Encoder
	open    *domain.SubtitleEvent
}

func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		decoder: NewDecoder(),
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Feed decodes a packet presented at pts seconds. duration <= 0 means the
// caption lasts until the next display set. Events are returned once their
// duration is known.
func (b *EventBuilder) Feed(pts, duration float64, packet []byte) ([]domain.SubtitleEvent, error) {
	ds, err := b.decoder.Decode(packet)
	if err != nil {
		return nil, err
	}
	if ds.Composition == nil {
		return nil, nil
	}

	var out []domain.SubtitleEvent
	if b.open != nil {
		closed := *b.open
		closed.Duration = max(pts-closed.StartTime, 0)
		out = append(out, closed)
		b.open = nil
	}
	if ds.Composition.IsClear() || len(ds.Objects) == 0 {
		return out, nil
	}

	ev, err := b.buildEvent(pts, *ds.Composition, ds.Objects)
	if err != nil {
		return out, err
	}
	if duration > 0 {
		ev.Duration = duration
		out = append(out, ev)
		return out, nil
	}
	b.open = &ev
	return out, nil
}

// Flush closes a caption that is still on screen at the end of the stream.
func (b *EventBuilder) Flush(endTime float64) []domain.SubtitleEvent {
	if b.open == nil {
		return nil
	}
	ev := *b.open
	b.open = nil
	if endTime > ev.StartTime {
		ev.Duration = endTime - ev.StartTime
	} else {
		ev.Duration = defaultOpenDuration
	}
	return []domain.SubtitleEvent{ev}
}

func (b *EventBuilder) buildEvent(pts float64, comp Composition, objects []Object) (domain.SubtitleEvent, error) {
	obj := objects[0]
	var placement *CompositionObject
	for i := range comp.Objects {
		if comp.Objects[i].ObjectID == obj.ID {
			placement = &comp.Objects[i]
			break
		}
	}

	payload, err := b.EncodeDataURL(obj.Image)
	if err != nil {
		return domain.SubtitleEvent{}, err
	}
	bounds := obj.Image.Bounds()
	ev := domain.SubtitleEvent{
		StartTime:    pts,
		ImagePayload: payload,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
	}
	if comp.Width > 0 && comp.Height > 0 {
		ev.CanvasWidth = intPtr(comp.Width)
		ev.CanvasHeight = intPtr(comp.Height)
	}
	if placement != nil {
		ev.X = intPtr(placement.X)
		ev.Y = intPtr(placement.Y)
		if placement.Cropped && placement.CropWidth > 0 && placement.CropHeight > 0 {
			ev.CropX = intPtr(placement.CropX)
			ev.CropY = intPtr(placement.CropY)
			ev.CropWidth = intPtr(placement.CropWidth)
			ev.CropHeight = intPtr(placement.CropHeight)
			ev.Width = placement.CropWidth
			ev.Height = placement.CropHeight
		}
	}
	return ev, nil
}

// EncodeDataURL encodes img as a base64 PNG data URL.
func (b *EventBuilder) EncodeDataURL(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("%w: nil image", ErrRLE)
	}
	var buf bytes.Buffer
	if err := b.encoder.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func intPtr(v int) *int { return &v }
