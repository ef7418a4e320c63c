package apihttp

import (
	"net/http"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/services/autoplay"
)

type autoplayResponse struct {
	State          domain.AutoplayState       `json:"state"`
	HasNextEpisode bool                       `json:"hasNextEpisode"`
	StreamInfo     *domain.StreamAutoplayInfo `json:"streamInfo,omitempty"`
}

type startAutoplayRequest struct {
	MediaID       int                  `json:"mediaId"`
	EpisodeNumber int                  `json:"episodeNumber"`
	NextEpisode   *domain.EpisodeRef   `json:"nextEpisode"`
	StreamingType domain.StreamingType `json:"streamingType"`
}

type startAutoplayResponse struct {
	Started bool                 `json:"started"`
	State   domain.AutoplayState `json:"state"`
}

func (s *Server) requireAutoplay(w http.ResponseWriter) bool {
	if s.autoplay == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "autoplay not configured")
		return false
	}
	return true
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if !s.requireAutoplay(w) {
		return
	}
	resp := autoplayResponse{
		State:          s.autoplay.State(),
		HasNextEpisode: s.autoplay.HasNextEpisode(r.Context()),
	}
	if info, ok := s.autoplay.StreamInfo(r.Context()); ok {
		resp.StreamInfo = &info
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutoplayStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !s.requireAutoplay(w) {
		return
	}
	var req startAutoplayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.StreamingType != "" && !req.StreamingType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid streamingType")
		return
	}
	pc := autoplay.PlaybackContext{MediaID: req.MediaID, EpisodeNumber: req.EpisodeNumber}
	started := s.autoplay.Start(r.Context(), pc, req.NextEpisode, req.StreamingType)
	writeJSON(w, http.StatusOK, startAutoplayResponse{Started: started, State: s.autoplay.State()})
}

func (s *Server) handleAutoplayCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !s.requireAutoplay(w) {
		return
	}
	s.autoplay.Cancel(r.Context())
	writeJSON(w, http.StatusOK, s.autoplay.State())
}

func (s *Server) handleAutoplayStreamInfo(w http.ResponseWriter, r *http.Request) {
	if !s.requireAutoplay(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		info, ok := s.autoplay.StreamInfo(r.Context())
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "no pending stream info")
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodPut:
		var info domain.StreamAutoplayInfo
		if err := decodeJSON(r, &info); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := s.autoplay.SetStreamInfo(r.Context(), info); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		if err := s.autoplay.ClearStreamInfo(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleAutoplaySelectedTorrent(w http.ResponseWriter, r *http.Request) {
	if !s.requireAutoplay(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		sel, ok := s.autoplay.SelectedTorrent(r.Context())
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "no selected torrent")
			return
		}
		writeJSON(w, http.StatusOK, sel)
	case http.MethodPut:
		var sel domain.SelectedTorrent
		if err := decodeJSON(r, &sel); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := s.autoplay.SetSelectedTorrent(r.Context(), sel); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sel)
	case http.MethodDelete:
		if err := s.autoplay.ClearSelectedTorrent(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}
