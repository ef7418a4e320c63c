package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/subtitle/pgs"
	"torrentstream/playback/internal/subtitle/render"
	"torrentstream/playback/internal/subtitle/worker"
)

const (
	maxSupBody    = 64 << 20
	snapshotLimit = 10 * time.Second
)

type addEventsResponse struct {
	Accepted int `json:"accepted"`
}

func (s *Server) requireSubtitles(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeMethodNotAllowed(w)
		return false
	}
	if s.subtitles == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "subtitle worker not configured")
		return false
	}
	return true
}

// sendJSONRequest decodes the body into req and forwards it to the worker.
func sendJSONRequest[T worker.Request](s *Server, w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodPost) {
		return
	}
	var req T
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.subtitles.Send(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubtitleInit(w http.ResponseWriter, r *http.Request) {
	sendJSONRequest[worker.Init](s, w, r)
}

func (s *Server) handleSubtitleOffset(w http.ResponseWriter, r *http.Request) {
	sendJSONRequest[worker.SetTimeOffset](s, w, r)
}

type resizeRequest struct {
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	ContainerWidth  int            `json:"containerWidth"`
	ContainerHeight int            `json:"containerHeight"`
	VideoWidth      int            `json:"videoWidth"`
	VideoHeight     int            `json:"videoHeight"`
	Fit             render.FitMode `json:"fit"`
}

// handleSubtitleResize takes either an explicit overlay size or a container
// and video size, in which case the overlay follows the displayed picture.
func (s *Server) handleSubtitleResize(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodPost) {
		return
	}
	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	viewport := render.Viewport{Width: req.Width, Height: req.Height}
	if req.ContainerWidth > 0 || req.VideoWidth > 0 {
		vp, ok := render.FitVideo(req.ContainerWidth, req.ContainerHeight, req.VideoWidth, req.VideoHeight, req.Fit)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "container and video sizes must be positive")
			return
		}
		viewport = vp
	}
	if viewport.Width < 0 || viewport.Height < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid size")
		return
	}
	if err := s.subtitles.Send(r.Context(), worker.Resize{Width: viewport.Width, Height: viewport.Height}); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewport)
}

func (s *Server) handleSubtitleDebug(w http.ResponseWriter, r *http.Request) {
	sendJSONRequest[worker.SetDebug](s, w, r)
}

func (s *Server) handleSubtitleClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodPost) {
		return
	}
	if err := s.subtitles.Send(r.Context(), worker.Clear{}); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubtitleEvents accepts one event or an array of events. The whole
// batch is validated before anything reaches the worker.
func (s *Server) handleSubtitleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodPost) {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}
	var events []domain.SubtitleEvent
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &events)
	} else {
		var ev domain.SubtitleEvent
		err = json.Unmarshal(raw, &ev)
		events = []domain.SubtitleEvent{ev}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_event", "event "+strconv.Itoa(i)+": "+err.Error())
			return
		}
	}
	s.addEvents(w, r.Context(), events)
}

// handleSubtitlePGS decodes a raw .sup stream into events.
func (s *Server) handleSubtitlePGS(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodPost) {
		return
	}
	events, err := pgs.ReadSup(io.LimitReader(r.Body, maxSupBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pgs", err.Error())
		return
	}
	s.addEvents(w, r.Context(), events)
}

func (s *Server) addEvents(w http.ResponseWriter, ctx context.Context, events []domain.SubtitleEvent) {
	for i, ev := range events {
		if err := s.subtitles.Send(ctx, worker.AddEvent{Event: ev}); err != nil {
			s.logger.Warn("subtitle events interrupted", "sent", i, "total", len(events), "error", err.Error())
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, addEventsResponse{Accepted: len(events)})
}

// handleSubtitleFrame renders the overlay at time t into a w x h canvas and
// returns it as PNG. A w x h that differs from the surface resizes it. With
// wait=true pending decodes finish first.
func (s *Server) handleSubtitleFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	t, err := parseFloatQuery(q.Get("t"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid t")
		return
	}
	width, err := parseOptionalIntQuery(q.Get("w"), 0)
	if err != nil || width < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid w")
		return
	}
	height, err := parseOptionalIntQuery(q.Get("h"), 0)
	if err != nil || height < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid h")
		return
	}
	wait, err := parseBoolQuery(q.Get("wait"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid wait")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotLimit)
	defer cancel()

	sized := width > 0 && height > 0
	if wait || sized {
		cur, err := s.subtitles.Snapshot(ctx, wait, false)
		if err != nil {
			writeSnapshotError(w, err)
			return
		}
		// The surface follows the requested canvas so placement and PNG agree.
		if sized && cur.Initialized && (cur.Width != width || cur.Height != height) {
			if err := s.subtitles.Send(ctx, worker.Resize{Width: width, Height: height}); err != nil {
				writeSnapshotError(w, err)
				return
			}
		}
	}
	req := worker.Render{CurrentTime: t, CanvasWidth: width, CanvasHeight: height}
	if err := s.subtitles.Send(ctx, req); err != nil {
		writeSnapshotError(w, err)
		return
	}
	snap, err := s.subtitles.Snapshot(ctx, false, true)
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	if !snap.Initialized {
		writeError(w, http.StatusConflict, "not_initialized", "subtitle worker is not initialized")
		return
	}
	if snap.Err != "" {
		writeError(w, http.StatusInternalServerError, "render_error", snap.Err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Subtitle-Rendered", strconv.FormatBool(snap.Render.Rendered))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.PNG)
}

func (s *Server) handleSubtitleState(w http.ResponseWriter, r *http.Request) {
	if !s.requireSubtitles(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), snapshotLimit)
	defer cancel()
	snap, err := s.subtitles.Snapshot(ctx, false, false)
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "timeout", "subtitle worker did not respond")
		return
	}
	writeServiceError(w, err)
}
