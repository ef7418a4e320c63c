// Package decode turns subtitle image payloads into bitmaps.
package decode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("subtitle image decode failed")

// MaxPixels caps the declared size of a payload before any pixel data is
// allocated.
const MaxPixels = 4096 * 4096

// Decoder accepts data URLs (data:image/png;base64,...), bare base64 and raw
// encoded image bytes.
type Decoder struct{}

func New() Decoder {
	return Decoder{}
}

func (Decoder) Decode(payload string) (image.Image, error) {
	raw, err := payloadBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: image is %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}

func payloadBytes(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty payload")
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, errors.New("malformed data url")
		}
		meta, body := payload[5:comma], payload[comma+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, errors.New("data url is not base64 encoded")
		}
		return decodeBase64(body)
	}
	if looksLikeImage(payload) {
		return []byte(payload), nil
	}
	return decodeBase64(payload)
}

func decodeBase64(body string) ([]byte, error) {
	body = strings.TrimSpace(body)
	if out, err := base64.StdEncoding.DecodeString(body); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
}

var imageMagic = []string{
	"\x89PNG\r\n\x1a\n",
	"\xff\xd8\xff",
	"GIF87a",
	"GIF89a",
	"BM",
	"RIFF",
}

func looksLikeImage(payload string) bool {
	for _, magic := range imageMagic {
		if strings.HasPrefix(payload, magic) {
			return true
		}
	}
	return false
}
