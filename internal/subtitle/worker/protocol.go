package worker

import (
	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/subtitle/render"
)

// Request is a message accepted by the render worker. The set of
// implementations is closed.
type Request interface {
	requestType() string
}

type Init struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Debug  bool `json:"debug"`
}

type AddEvent struct {
	Event domain.SubtitleEvent `json:"event"`
}

type Render struct {
	CurrentTime  float64 `json:"currentTime"`
	CanvasWidth  int     `json:"canvasWidth"`
	CanvasHeight int     `json:"canvasHeight"`
}

type Resize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Clear struct{}

type SetTimeOffset struct {
	Offset float64 `json:"offset"`
}

type SetDebug struct {
	Debug bool `json:"debug"`
}

// Snapshot asks for a copy of the worker state. The reply channel should be
// buffered; the worker never blocks on it.
type Snapshot struct {
	// WaitDecodes makes the worker finish pending decodes first.
	WaitDecodes bool
	EncodePNG   bool
	Reply       chan<- SnapshotResult
}

type SnapshotResult struct {
	Initialized bool         `json:"initialized"`
	Debug       bool         `json:"debug"`
	Events      int          `json:"events"`
	Frames      int          `json:"frames"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Render      render.State `json:"render"`
	PNG         []byte       `json:"-"`
	Err         string       `json:"error,omitempty"`
}

func (Init) requestType() string          { return "init" }
func (AddEvent) requestType() string      { return "addEvent" }
func (Render) requestType() string        { return "render" }
func (Resize) requestType() string        { return "resize" }
func (Clear) requestType() string         { return "clear" }
func (SetTimeOffset) requestType() string { return "setTimeOffset" }
func (SetDebug) requestType() string      { return "setDebug" }
func (Snapshot) requestType() string      { return "snapshot" }

// Response is a message emitted by the render worker.
type Response interface {
	responseType() string
}

// Debug is only emitted while debugging is enabled.
type Debug struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Err     string `json:"error"`
}

func (Debug) responseType() string { return "debug" }
func (Error) responseType() string { return "error" }

// ResponseType names a response for transports that need a tag.
func ResponseType(r Response) string {
	return r.responseType()
}

// RequestType names a request for logs.
func RequestType(r Request) string {
	return r.requestType()
}
