// Package pgs decodes Presentation Graphic Stream (Blu-ray bitmap subtitle)
// packets into images and timed subtitle events.
package pgs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type SegmentType byte

const (
	SegmentPalette     SegmentType = 0x14
	SegmentObject      SegmentType = 0x15
	SegmentComposition SegmentType = 0x16
	SegmentWindow      SegmentType = 0x17
	SegmentEnd         SegmentType = 0x80
)

func (t SegmentType) String() string {
	switch t {
	case SegmentPalette:
		return "PDS"
	case SegmentObject:
		return "ODS"
	case SegmentComposition:
		return "PCS"
	case SegmentWindow:
		return "WDS"
	case SegmentEnd:
		return "END"
	default:
		return fmt.Sprintf("0x%02X", byte(t))
	}
}

// Composition states carried by a PCS.
const (
	StateNormal           byte = 0x00
	StateAcquisitionPoint byte = 0x40
	StateEpochStart       byte = 0x80
)

// Object sequence flags carried by an ODS.
const (
	seqFirst byte = 0x80
	seqLast  byte = 0x40
)

var (
	ErrShortSegment = errors.New("pgs segment truncated")
	ErrRLE          = errors.New("pgs rle data invalid")
)

type Segment struct {
	Type    SegmentType
	Payload []byte
}

// SplitSegments splits a packet into its segments. A packet here is the
// segment stream without the "PG" + PTS/DTS headers used in .sup files.
func SplitSegments(packet []byte) ([]Segment, error) {
	var out []Segment
	for off := 0; off < len(packet); {
		if off+3 > len(packet) {
			return out, fmt.Errorf("%w: header at offset %d", ErrShortSegment, off)
		}
		typ := SegmentType(packet[off])
		size := int(binary.BigEndian.Uint16(packet[off+1 : off+3]))
		end := off + 3 + size
		if end > len(packet) {
			return out, fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrShortSegment, typ, size, off, len(packet)-off-3)
		}
		out = append(out, Segment{Type: typ, Payload: packet[off+3 : end]})
		off = end
	}
	return out, nil
}

// Window is a WDS region.
type Window struct {
	ID     uint8
	X      int
	Y      int
	Width  int
	Height int
}

// CompositionObject places a decoded object on the video canvas.
type CompositionObject struct {
	ObjectID   uint16
	WindowID   uint8
	X          int
	Y          int
	Cropped    bool
	CropX      int
	CropY      int
	CropWidth  int
	CropHeight int
}

// Composition is a parsed PCS.
type Composition struct {
	Width         int
	Height        int
	Number        uint16
	State         byte
	PaletteUpdate bool
	PaletteID     uint8
	Objects       []CompositionObject
}

// IsClear reports whether the composition removes whatever is on screen.
func (c Composition) IsClear() bool {
	return (c.State == StateNormal || c.State == StateAcquisitionPoint) && len(c.Objects) == 0
}

func parseComposition(data []byte) (Composition, error) {
	if len(data) < 11 {
		return Composition{}, fmt.Errorf("%w: PCS has %d bytes", ErrShortSegment, len(data))
	}
	c := Composition{
		Width:         int(binary.BigEndian.Uint16(data[0:2])),
		Height:        int(binary.BigEndian.Uint16(data[2:4])),
		Number:        binary.BigEndian.Uint16(data[5:7]),
		State:         data[7],
		PaletteUpdate: data[8] == 0x80,
		PaletteID:     data[9],
	}
	count := int(data[10])
	off := 11
	for i := 0; i < count && off+8 <= len(data); i++ {
		obj := CompositionObject{
			ObjectID: binary.BigEndian.Uint16(data[off : off+2]),
			WindowID: data[off+2],
			Cropped:  data[off+3]&0x80 != 0,
			X:        int(binary.BigEndian.Uint16(data[off+4 : off+6])),
			Y:        int(binary.BigEndian.Uint16(data[off+6 : off+8])),
		}
		off += 8
		if obj.Cropped {
			if off+8 > len(data) {
				break
			}
			obj.CropX = int(binary.BigEndian.Uint16(data[off : off+2]))
			obj.CropY = int(binary.BigEndian.Uint16(data[off+2 : off+4]))
			obj.CropWidth = int(binary.BigEndian.Uint16(data[off+4 : off+6]))
			obj.CropHeight = int(binary.BigEndian.Uint16(data[off+6 : off+8]))
			off += 8
		}
		c.Objects = append(c.Objects, obj)
	}
	return c, nil
}

func parseWindows(data []byte) ([]Window, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty WDS", ErrShortSegment)
	}
	count := int(data[0])
	windows := make([]Window, 0, count)
	for i, off := 0, 1; i < count && off+9 <= len(data); i, off = i+1, off+9 {
		windows = append(windows, Window{
			ID:     data[off],
			X:      int(binary.BigEndian.Uint16(data[off+1 : off+3])),
			Y:      int(binary.BigEndian.Uint16(data[off+3 : off+5])),
			Width:  int(binary.BigEndian.Uint16(data[off+5 : off+7])),
			Height: int(binary.BigEndian.Uint16(data[off+7 : off+9])),
		})
	}
	return windows, nil
}
