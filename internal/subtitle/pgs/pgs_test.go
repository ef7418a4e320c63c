package pgs

import (
	"encoding/binary"
	"errors"
	"image/color"
	"strings"
	"testing"

	"torrentstream/playback/internal/subtitle/decode"
)

func seg(typ SegmentType, payload []byte) []byte {
	out := []byte{byte(typ), 0, 0}
	binary.BigEndian.PutUint16(out[1:3], uint16(len(payload)))
	return append(out, payload...)
}

func u16(v int) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func pcs(width, height int, state byte, objs ...[]byte) []byte {
	p := append(u16(width), u16(height)...)
	p = append(p, 0x10)
	p = append(p, u16(1)...)
	p = append(p, state, 0, 0, byte(len(objs)))
	for _, o := range objs {
		p = append(p, o...)
	}
	return seg(SegmentComposition, p)
}

func compObject(id, x, y int, crop []int) []byte {
	p := append(u16(id), 0)
	if crop != nil {
		p = append(p, 0x80)
	} else {
		p = append(p, 0)
	}
	p = append(p, u16(x)...)
	p = append(p, u16(y)...)
	for _, v := range crop {
		p = append(p, u16(v)...)
	}
	return p
}

func pds() []byte {
	// index 1: white, opaque
	return seg(SegmentPalette, []byte{0, 0, 1, 235, 128, 128, 255})
}

var testRLE = []byte{
	0x00, 0x84, 0x01, // 4 pixels of colour 1
	0x00, 0x00, // end of line
	0x00, 0x02, // 2 transparent
	0x01, 0x01, // two single pixels
	0x00, 0x00,
}

func ods(id, width, height int, rle []byte) []byte {
	p := append(u16(id), 0, 0xC0)
	n := len(rle) + 4
	p = append(p, byte(n>>16), byte(n>>8), byte(n))
	p = append(p, u16(width)...)
	p = append(p, u16(height)...)
	p = append(p, rle...)
	return seg(SegmentObject, p)
}

func displaySet(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return append(out, seg(SegmentEnd, nil)...)
}

func TestDecodeRLE(t *testing.T) {
	pix := make([]byte, 8)
	if err := decodeRLE(testRLE, pix, 4); err != nil {
		t.Fatalf("decodeRLE: %v", err)
	}
	want := []byte{1, 1, 1, 1, 0, 0, 1, 1}
	for i := range want {
		if pix[i] != want[i] {
			t.Fatalf("pix = %v, want %v", pix, want)
		}
	}
}

func TestDecodeRLELongRuns(t *testing.T) {
	pix := make([]byte, 300)
	// 0x00 0xC1 0x2C 0x05: 300 pixels of colour 5
	if err := decodeRLE([]byte{0x00, 0xC1, 0x2C, 0x05}, pix, 300); err != nil {
		t.Fatalf("decodeRLE: %v", err)
	}
	if pix[0] != 5 || pix[299] != 5 {
		t.Fatalf("long run not expanded: %d %d", pix[0], pix[299])
	}
}

func TestDecodeRLETruncated(t *testing.T) {
	pix := make([]byte, 10)
	err := decodeRLE([]byte{0x00, 0x85}, pix, 10)
	if !errors.Is(err, ErrRLE) {
		t.Fatalf("err = %v, want ErrRLE", err)
	}
}

func TestSplitSegmentsTruncated(t *testing.T) {
	packet := []byte{byte(SegmentPalette), 0x00, 0x10, 0x01}
	if _, err := SplitSegments(packet); !errors.Is(err, ErrShortSegment) {
		t.Fatalf("err = %v, want ErrShortSegment", err)
	}
}

func TestDecoderDisplaySet(t *testing.T) {
	d := NewDecoder()
	packet := displaySet(
		pcs(1920, 1080, StateEpochStart, compObject(0, 100, 900, []int{1, 0, 3, 2})),
		pds(),
		ods(0, 4, 2, testRLE),
	)
	ds, err := d.Decode(packet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ds.Composition == nil || ds.Composition.Width != 1920 {
		t.Fatalf("composition = %+v", ds.Composition)
	}
	obj := ds.Composition.Objects[0]
	if !obj.Cropped || obj.CropX != 1 || obj.CropWidth != 3 || obj.X != 100 || obj.Y != 900 {
		t.Fatalf("composition object = %+v", obj)
	}
	if len(ds.Objects) != 1 {
		t.Fatalf("objects = %d", len(ds.Objects))
	}
	c := color.RGBAModel.Convert(ds.Objects[0].Image.At(0, 0)).(color.RGBA)
	if c.A != 255 || c.R < 250 {
		t.Fatalf("palette colour = %+v, want opaque white", c)
	}
	if _, _, _, a := ds.Objects[0].Image.At(0, 1).RGBA(); a != 0 {
		t.Fatal("transparent run should have zero alpha")
	}
}

func TestDecoderMultiFragmentObject(t *testing.T) {
	d := NewDecoder()
	first := append(u16(7), 0, seqFirst)
	n := len(testRLE) + 4
	first = append(first, byte(n>>16), byte(n>>8), byte(n))
	first = append(first, u16(4)...)
	first = append(first, u16(2)...)
	first = append(first, testRLE[:5]...)
	last := append(u16(7), 0, seqLast)
	last = append(last, testRLE[5:]...)

	ds, err := d.Decode(displaySet(pds(), seg(SegmentObject, first)))
	if err != nil || len(ds.Objects) != 0 {
		t.Fatalf("first fragment: objects=%d err=%v", len(ds.Objects), err)
	}
	ds, err = d.Decode(displaySet(seg(SegmentObject, last)))
	if err != nil {
		t.Fatalf("last fragment: %v", err)
	}
	if len(ds.Objects) != 1 || ds.Objects[0].ID != 7 {
		t.Fatalf("objects = %+v", ds.Objects)
	}
	if ds.Objects[0].Image.Pix[7] != 1 {
		t.Fatalf("pix = %v", ds.Objects[0].Image.Pix)
	}
}

func TestDecoderRejectsOversizedObject(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"wide", MaxObjectSize + 1, 2},
		{"tall", 2, 20000},
		{"max header", 65535, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			_, err := d.Decode(displaySet(pds(), ods(1, tt.width, tt.height, []byte{0x01})))
			if !errors.Is(err, ErrRLE) {
				t.Fatalf("err = %v, want ErrRLE", err)
			}
			if d.pending != nil {
				t.Fatal("oversized object must not stay pending")
			}
		})
	}

	d := NewDecoder()
	ds, err := d.Decode(displaySet(pds(), ods(1, 4, 2, testRLE)))
	if err != nil || len(ds.Objects) != 1 {
		t.Fatalf("decoder unusable after rejection: objects=%d err=%v", len(ds.Objects), err)
	}
}

func TestCompositionIsClear(t *testing.T) {
	if !(Composition{State: StateNormal}).IsClear() {
		t.Fatal("normal composition without objects should clear")
	}
	if (Composition{State: StateEpochStart}).IsClear() {
		t.Fatal("epoch start should not be treated as clear")
	}
}

func TestEventBuilderClosesOnNextDisplaySet(t *testing.T) {
	b := NewEventBuilder()
	show := displaySet(
		pcs(1920, 1080, StateEpochStart, compObject(0, 100, 900, nil)),
		pds(),
		ods(0, 4, 2, testRLE),
	)
	events, err := b.Feed(10, 0, show)
	if err != nil || len(events) != 0 {
		t.Fatalf("open caption should not be emitted yet: %v %v", events, err)
	}

	events, err = b.Feed(12.5, 0, displaySet(pcs(1920, 1080, StateNormal)))
	if err != nil {
		t.Fatalf("Feed clear: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.StartTime != 10 || ev.Duration != 2.5 {
		t.Fatalf("timing = %v+%v", ev.StartTime, ev.Duration)
	}
	if *ev.X != 100 || *ev.Y != 900 || *ev.CanvasWidth != 1920 || ev.Width != 4 || ev.Height != 2 {
		t.Fatalf("geometry = %+v", ev)
	}
	if !strings.HasPrefix(ev.ImagePayload, "data:image/png;base64,") {
		t.Fatalf("payload prefix = %.30s", ev.ImagePayload)
	}
	img, err := decode.New().Decode(ev.ImagePayload)
	if err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("decoded width = %d", img.Bounds().Dx())
	}
}

func TestEventBuilderExplicitDurationAndFlush(t *testing.T) {
	b := NewEventBuilder()
	show := displaySet(
		pcs(1280, 720, StateEpochStart, compObject(0, 0, 0, []int{0, 0, 2, 2})),
		pds(),
		ods(0, 4, 2, testRLE),
	)
	events, err := b.Feed(1, 3, show)
	if err != nil || len(events) != 1 {
		t.Fatalf("explicit duration: %v %v", events, err)
	}
	if events[0].Duration != 3 || *events[0].CropWidth != 2 || events[0].Width != 2 {
		t.Fatalf("event = %+v", events[0])
	}

	if _, err := b.Feed(5, 0, show); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	flushed := b.Flush(9)
	if len(flushed) != 1 || flushed[0].Duration != 4 {
		t.Fatalf("flushed = %+v", flushed)
	}
	if len(b.Flush(20)) != 0 {
		t.Fatal("second flush should be empty")
	}
}

func supSegments(pts uint32, packet []byte) []byte {
	var out []byte
	for off := 0; off < len(packet); {
		size := int(binary.BigEndian.Uint16(packet[off+1 : off+3]))
		h := make([]byte, 10)
		h[0], h[1] = 'P', 'G'
		binary.BigEndian.PutUint32(h[2:6], pts)
		out = append(out, h...)
		out = append(out, packet[off:off+3+size]...)
		off += 3 + size
	}
	return out
}

func TestReadSup(t *testing.T) {
	show := displaySet(
		pcs(1920, 1080, StateEpochStart, compObject(0, 100, 900, nil)),
		pds(),
		ods(0, 4, 2, testRLE),
	)
	wipe := displaySet(pcs(1920, 1080, StateNormal))

	var stream []byte
	stream = append(stream, supSegments(90000, show)...)
	stream = append(stream, supSegments(270000, wipe)...)

	events, err := ReadSup(strings.NewReader(string(stream)))
	if err != nil {
		t.Fatalf("read sup: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	ev := events[0]
	if ev.StartTime != 1 || ev.Duration != 2 {
		t.Fatalf("timing = %v+%v, want 1+2", ev.StartTime, ev.Duration)
	}
	if !strings.HasPrefix(ev.ImagePayload, "data:image/png;base64,") {
		t.Fatalf("payload = %.40s", ev.ImagePayload)
	}
}

func TestReadSupBadMagic(t *testing.T) {
	_, err := ReadSup(strings.NewReader("XX" + strings.Repeat("\x00", 11)))
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("err = %v", err)
	}
}

func TestReadSupFlushesOpenCaption(t *testing.T) {
	show := displaySet(
		pcs(1920, 1080, StateEpochStart, compObject(0, 10, 10, nil)),
		pds(),
		ods(0, 4, 2, testRLE),
	)
	events, err := ReadSup(strings.NewReader(string(supSegments(45000, show))))
	if err != nil {
		t.Fatalf("read sup: %v", err)
	}
	if len(events) != 1 || events[0].StartTime != 0.5 || events[0].Duration != 5 {
		t.Fatalf("events = %+v", events)
	}
}
