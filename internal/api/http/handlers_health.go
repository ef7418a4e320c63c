package apihttp

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	WSClients int       `json:"wsClients"`
	Stream    string    `json:"stream,omitempty"`
	Autoplay  bool      `json:"autoplayActive"`
	Subtitles *bool     `json:"subtitlesReady,omitempty"`
	Issues    []string  `json:"issues,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.buildHealth(r.Context()))
}

func (s *Server) buildHealth(ctx context.Context) healthResponse {
	resp := healthResponse{
		Status:    "ok",
		CheckedAt: time.Now().UTC(),
		WSClients: s.wsHub.clientCount(),
	}
	degrade := func(issue string) {
		resp.Status = "degraded"
		resp.Issues = append(resp.Issues, issue)
	}

	if s.stream != nil {
		resp.Stream = s.stream.Status().Phase()
	} else {
		degrade("stream machine is not configured")
	}
	if s.autoplay != nil {
		resp.Autoplay = s.autoplay.State().IsActive
	} else {
		degrade("autoplay is not configured")
	}
	if s.subtitles != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		snap, err := s.subtitles.Snapshot(ctx, false, false)
		if err != nil {
			degrade("subtitle worker is not responding")
		} else {
			resp.Subtitles = &snap.Initialized
		}
	} else {
		degrade("subtitle worker is not configured")
	}
	return resp
}
