package apihttp

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/services/resolve"
)

const maxTorrentBody = 16 << 20

type resolveFilesRequest struct {
	Files  []domain.FilePreview `json:"files"`
	Target resolve.Target       `json:"target"`
}

type resolveFilesResponse struct {
	InfoHash          string               `json:"infoHash,omitempty"`
	Name              string               `json:"name,omitempty"`
	Files             []domain.FilePreview `json:"files"`
	HasLikelyMatch    bool                 `json:"hasLikelyMatch"`
	HasOneLikelyMatch bool                 `json:"hasOneLikelyMatch"`
	LikelyIndex       *int                 `json:"likelyIndex,omitempty"`
}

type magnetRequest struct {
	URI string `json:"uri"`
}

type magnetResponse struct {
	InfoHash string `json:"infoHash"`
	Name     string `json:"name,omitempty"`
}

func buildResolveResponse(files []domain.FilePreview, target resolve.Target) resolveFilesResponse {
	marked := resolve.MarkLikely(files, target)
	resp := resolveFilesResponse{
		Files:             marked,
		HasLikelyMatch:    resolve.HasLikelyMatch(marked),
		HasOneLikelyMatch: resolve.HasOneLikelyMatch(marked),
	}
	if idx, ok := resolve.LikelyIndex(marked); ok {
		resp.LikelyIndex = &idx
	}
	return resp
}

func (s *Server) handleResolveFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req resolveFilesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Files == nil {
		req.Files = []domain.FilePreview{}
	}
	writeJSON(w, http.StatusOK, buildResolveResponse(req.Files, req.Target))
}

// handleTorrentFiles lists a raw .torrent body. The target episode comes from
// the episode, absolute, season and title query parameters.
func (s *Server) handleTorrentFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	var target resolve.Target
	var err error
	if target.EpisodeNumber, err = parseOptionalIntQuery(q.Get("episode"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid episode")
		return
	}
	if target.AbsoluteEpisodeNumber, err = parseOptionalIntQuery(q.Get("absolute"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid absolute")
		return
	}
	if target.Season, err = parseOptionalIntQuery(q.Get("season"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid season")
		return
	}
	target.Title = strings.TrimSpace(q.Get("title"))

	torrent, err := resolve.PreviewsFromMetaInfo(io.LimitReader(r.Body, maxTorrentBody))
	if err != nil {
		if errors.Is(err, resolve.ErrInvalidTorrent) {
			writeError(w, http.StatusBadRequest, "invalid_torrent", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	resp := buildResolveResponse(torrent.Files, target)
	resp.InfoHash = torrent.InfoHash
	resp.Name = torrent.Name
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMagnet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req magnetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	hash, name, err := resolve.ParseMagnet(req.URI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_torrent", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, magnetResponse{InfoHash: hash, Name: name})
}
