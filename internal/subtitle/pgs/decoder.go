package pgs

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// MaxObjectSize bounds ODS width and height. Blu-ray streams top out at
// 1920x1080 so anything past this is corrupt or hostile input.
const MaxObjectSize = 4096

// Object is a fully reassembled ODS bitmap.
type Object struct {
	ID    uint16
	Image *image.Paletted
}

// DisplaySet is the outcome of decoding one packet.
type DisplaySet struct {
	Composition *Composition
	Windows     []Window
	Objects     []Object
}

type pendingObject struct {
	id     uint16
	width  int
	height int
	data   []byte
}

// Decoder keeps palette and partially received objects between packets. It is
// not safe for concurrent use.
type Decoder struct {
	palette color.Palette
	pending *pendingObject
	windows map[uint8]Window
}

func NewDecoder() *Decoder {
	palette := make(color.Palette, 256)
	for i := range palette {
		palette[i] = color.RGBA{}
	}
	return &Decoder{palette: palette, windows: make(map[uint8]Window)}
}

// Decode consumes one packet.
func (d *Decoder) Decode(packet []byte) (DisplaySet, error) {
	segments, err := SplitSegments(packet)
	if err != nil {
		return DisplaySet{}, err
	}
	var ds DisplaySet
	for _, seg := range segments {
		switch seg.Type {
		case SegmentPalette:
			err = d.applyPalette(seg.Payload)
		case SegmentComposition:
			var c Composition
			c, err = parseComposition(seg.Payload)
			if err == nil {
				ds.Composition = &c
			}
		case SegmentWindow:
			var ws []Window
			ws, err = parseWindows(seg.Payload)
			for _, w := range ws {
				d.windows[w.ID] = w
			}
			ds.Windows = append(ds.Windows, ws...)
		case SegmentObject:
			var obj *Object
			obj, err = d.applyObject(seg.Payload)
			if obj != nil {
				ds.Objects = append(ds.Objects, *obj)
			}
		}
		if err != nil {
			return DisplaySet{}, fmt.Errorf("%s segment: %w", seg.Type, err)
		}
	}
	return ds, nil
}

func (d *Decoder) Window(id uint8) (Window, bool) {
	w, ok := d.windows[id]
	return w, ok
}

// applyPalette converts BT.601 YCrCb entries to RGBA.
func (d *Decoder) applyPalette(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: PDS has %d bytes", ErrShortSegment, len(data))
	}
	for off := 2; off+5 <= len(data); off += 5 {
		y := float64(data[off+1]) - 16
		cr := float64(data[off+2]) - 128
		cb := float64(data[off+3]) - 128
		d.palette[data[off]] = color.RGBA{
			R: clampByte(1.164*y + 1.596*cr),
			G: clampByte(1.164*y - 0.813*cr - 0.391*cb),
			B: clampByte(1.164*y + 2.018*cb),
			A: data[off+4],
		}
	}
	return nil
}

// applyObject handles single and multi-segment ODS. It returns the object
// once its last fragment has arrived.
func (d *Decoder) applyObject(data []byte) (*Object, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: ODS has %d bytes", ErrShortSegment, len(data))
	}
	id := binary.BigEndian.Uint16(data[0:2])
	flags := data[3]

	if flags&seqFirst != 0 {
		if len(data) < 11 {
			return nil, fmt.Errorf("%w: ODS header has %d bytes", ErrShortSegment, len(data))
		}
		length := int(data[4])<<16 | int(data[5])<<8 | int(data[6])
		width := int(binary.BigEndian.Uint16(data[7:9]))
		height := int(binary.BigEndian.Uint16(data[9:11]))
		if width > MaxObjectSize || height > MaxObjectSize {
			d.pending = nil
			return nil, fmt.Errorf("%w: object %d has size %dx%d", ErrRLE, id, width, height)
		}
		d.pending = &pendingObject{
			id:     id,
			width:  width,
			height: height,
			data:   make([]byte, 0, min(length, len(data))),
		}
		d.pending.data = append(d.pending.data, data[11:]...)
	} else if d.pending != nil && d.pending.id == id {
		d.pending.data = append(d.pending.data, data[4:]...)
	} else {
		return nil, nil
	}

	if flags&seqLast == 0 {
		return nil, nil
	}
	obj := d.pending
	d.pending = nil
	if obj.width <= 0 || obj.height <= 0 {
		return nil, fmt.Errorf("%w: object %d has size %dx%d", ErrRLE, obj.id, obj.width, obj.height)
	}

	palette := make(color.Palette, len(d.palette))
	copy(palette, d.palette)
	img := image.NewPaletted(image.Rect(0, 0, obj.width, obj.height), palette)
	if err := decodeRLE(obj.data, img.Pix, obj.width); err != nil {
		return nil, err
	}
	return &Object{ID: obj.id, Image: img}, nil
}

// decodeRLE expands PGS run-length data into palette indices.
//
//	CC             one pixel of colour CC
//	00 00          end of line
//	00 0L          L transparent pixels (L < 64)
//	00 4L LL       L transparent pixels (14-bit length)
//	00 8L CC       L pixels of colour CC
//	00 CL LL CC    L pixels of colour CC (14-bit length)
func decodeRLE(data, pix []byte, width int) error {
	limit := len(pix)
	idx := 0
	i := 0
	next := func() (byte, bool) {
		if i >= len(data) {
			return 0, false
		}
		b := data[i]
		i++
		return b, true
	}

	for idx < limit {
		b, ok := next()
		if !ok {
			return nil
		}
		if b != 0 {
			pix[idx] = b
			idx++
			continue
		}

		flag, ok := next()
		if !ok {
			return nil
		}
		if flag == 0 {
			if col := idx % width; col > 0 {
				idx = min(idx+width-col, limit)
			}
			continue
		}

		run := int(flag & 0x3F)
		if flag&0x40 != 0 {
			lo, ok := next()
			if !ok {
				return fmt.Errorf("%w: truncated run length at pixel %d", ErrRLE, idx)
			}
			run = run<<8 | int(lo)
		}
		var colour byte
		if flag&0x80 != 0 {
			if colour, ok = next(); !ok {
				return fmt.Errorf("%w: truncated colour at pixel %d", ErrRLE, idx)
			}
		}
		end := min(idx+run, limit)
		for ; idx < end; idx++ {
			pix[idx] = colour
		}
	}
	return nil
}

func clampByte(f float64) uint8 {
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return uint8(f)
	}
}
