package render

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// ImageSurface is an in-memory RGBA overlay. Scaled draws use Catmull-Rom
// resampling.
type ImageSurface struct {
	img *image.RGBA
}

func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{img: image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))}
}

func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *ImageSurface) Resize(width, height int) {
	s.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

func (s *ImageSurface) Clear() {
	xdraw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
}

func (s *ImageSurface) DrawImage(frame image.Image, src, dst image.Rectangle) {
	if src.Dx() == dst.Dx() && src.Dy() == dst.Dy() {
		xdraw.Draw(s.img, dst, frame, src.Min, xdraw.Over)
		return
	}
	xdraw.CatmullRom.Scale(s.img, dst, frame, src, xdraw.Over, nil)
}

// Image returns the backing image. Callers must not keep it across draws.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

// EncodePNG snapshots the overlay.
func (s *ImageSurface) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
