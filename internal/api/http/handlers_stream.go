package apihttp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"torrentstream/playback/internal/domain"
)

func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "stream machine not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.stream.Status())
}

// handleStreamEvents accepts one message or an array of messages. Messages
// are applied in order; the first invalid one stops the batch.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "stream machine not configured")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	var msgs []domain.StreamMessage
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &msgs)
	} else {
		var msg domain.StreamMessage
		err = json.Unmarshal(raw, &msg)
		msgs = []domain.StreamMessage{msg}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	for _, msg := range msgs {
		if err := s.stream.Handle(r.Context(), msg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.stream.Status())
}
