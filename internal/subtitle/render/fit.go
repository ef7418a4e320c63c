package render

import "math"

type FitMode string

const (
	FitContain FitMode = "contain"
	FitCover   FitMode = "cover"
	FitFill    FitMode = "fill"
)

// Viewport is where the video picture lands inside its container.
type Viewport struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	OffsetX int `json:"offsetX"`
	OffsetY int `json:"offsetY"`
}

// FitVideo computes the displayed video area for a container, which is the
// size the overlay should be resized to. ok is false when the video size is
// not known yet.
func FitVideo(containerWidth, containerHeight, videoWidth, videoHeight int, mode FitMode) (Viewport, bool) {
	if videoWidth <= 0 || videoHeight <= 0 || containerWidth <= 0 || containerHeight <= 0 {
		return Viewport{}, false
	}
	cw, ch := float64(containerWidth), float64(containerHeight)
	containerRatio := cw / ch
	videoRatio := float64(videoWidth) / float64(videoHeight)

	var w, h, ox, oy float64
	switch mode {
	case FitCover:
		if videoRatio > containerRatio {
			h = ch
			w = ch * videoRatio
			ox = (cw - w) / 2
		} else {
			w = cw
			h = cw / videoRatio
			oy = (ch - h) / 2
		}
	case FitFill:
		w, h = cw, ch
	default:
		if videoRatio > containerRatio {
			w = cw
			h = cw / videoRatio
			oy = (ch - h) / 2
		} else {
			h = ch
			w = ch * videoRatio
			ox = (cw - w) / 2
		}
	}
	return Viewport{
		Width:   int(math.Round(w)),
		Height:  int(math.Round(h)),
		OffsetX: int(math.Round(ox)),
		OffsetY: int(math.Round(oy)),
	}, true
}
