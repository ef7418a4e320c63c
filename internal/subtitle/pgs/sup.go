package pgs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"torrentstream/playback/internal/domain"
)

const (
	supHeaderSize = 13
	supClockRate  = 90000.0
)

var ErrBadMagic = errors.New("pgs stream missing PG magic")

// ReadSup decodes a .sup file: each segment is prefixed with "PG", a 90 kHz
// PTS and DTS. Segments are grouped into display sets at every END segment
// and fed to an EventBuilder in presentation order.
func ReadSup(r io.Reader) ([]domain.SubtitleEvent, error) {
	br := bufio.NewReader(r)
	builder := NewEventBuilder()

	var (
		events  []domain.SubtitleEvent
		packet  []byte
		setPTS  float64
		lastPTS float64
		started bool
	)
	header := make([]byte, supHeaderSize)
	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return events, fmt.Errorf("%w: sup header: %v", ErrShortSegment, err)
		}
		if header[0] != 'P' || header[1] != 'G' {
			return events, ErrBadMagic
		}
		pts := float64(binary.BigEndian.Uint32(header[2:6])) / supClockRate
		typ := SegmentType(header[10])
		size := int(binary.BigEndian.Uint16(header[11:13]))

		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return events, fmt.Errorf("%w: %s payload: %v", ErrShortSegment, typ, err)
		}

		if !started {
			setPTS = pts
			started = true
		}
		packet = append(packet, header[10:13]...)
		packet = append(packet, payload...)
		lastPTS = pts

		if typ != SegmentEnd {
			continue
		}
		out, err := builder.Feed(setPTS, 0, packet)
		if err != nil {
			return events, err
		}
		events = append(events, out...)
		packet = packet[:0]
		started = false
	}
	return append(events, builder.Flush(lastPTS)...), nil
}
