package ports

import (
	"image"
)

// FrameDecoder turns a subtitle image payload into a bitmap.
type FrameDecoder interface {
	Decode(payload string) (image.Image, error)
}

// Surface is the off-screen target the render scheduler draws onto.
type Surface interface {
	Size() (width, height int)
	Resize(width, height int)
	Clear()
	// DrawImage draws the src sub-rectangle of frame into dst, scaling as needed.
	DrawImage(frame image.Image, src, dst image.Rectangle)
}
