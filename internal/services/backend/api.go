// Package backend talks to the media server: it starts playback through its
// HTTP API and follows its websocket event feed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentstream/playback/internal/domain"
)

var ErrBackend = errors.New("backend request failed")

const (
	pathPlay          = "/api/v1/playback-manager/play"
	pathTorrentStream = "/api/v1/torrentstream/start"
	pathDebridStream  = "/api/v1/debrid/stream/start"
)

// APIClient implements the local player and stream starter ports on top of
// the media server API.
type APIClient struct {
	baseURL  string
	clientID string
	client   *http.Client
	logger   *slog.Logger
}

func NewAPIClient(baseURL, clientID string, timeout time.Duration, logger *slog.Logger) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type playRequest struct {
	Path string `json:"path"`
}

type streamStartRequest struct {
	MediaID       int                `json:"mediaId"`
	EpisodeNumber int                `json:"episodeNumber"`
	AniDBEpisode  string             `json:"aniDBEpisode"`
	AutoSelect    bool               `json:"autoSelect"`
	Torrent       *domain.TorrentRef `json:"torrent,omitempty"`
	FileIndex     *int               `json:"fileIndex,omitempty"`
	FileID        string             `json:"fileId,omitempty"`
	PlaybackType  string             `json:"playbackType"`
	ClientID      string             `json:"clientId,omitempty"`
}

type apiResponse struct {
	Error string `json:"error,omitempty"`
}

func (c *APIClient) PlayLocalFile(ctx context.Context, path string, mediaID int, episode domain.EpisodeRef) error {
	c.logger.Info("playing local file",
		slog.String("path", path),
		slog.Int("mediaId", mediaID),
		slog.Int("episode", episode.EpisodeNumber),
	)
	return c.post(ctx, pathPlay, playRequest{Path: path})
}

func (c *APIClient) StartTorrentStream(ctx context.Context, ep domain.EpisodeRef) error {
	return c.post(ctx, pathTorrentStream, c.streamRequest(ep))
}

func (c *APIClient) StartDebridStream(ctx context.Context, ep domain.EpisodeRef) error {
	return c.post(ctx, pathDebridStream, c.streamRequest(ep))
}

func (c *APIClient) StartSelectedTorrentStream(ctx context.Context, ep domain.EpisodeRef, sel domain.StreamSelection) error {
	return c.post(ctx, pathTorrentStream, c.selectedRequest(ep, sel))
}

// StartSelectedDebridStream also sends the file index as a file ID, which is
// how debrid providers address files inside a torrent.
func (c *APIClient) StartSelectedDebridStream(ctx context.Context, ep domain.EpisodeRef, sel domain.StreamSelection) error {
	req := c.selectedRequest(ep, sel)
	if sel.FileIndex != nil {
		req.FileID = strconv.Itoa(*sel.FileIndex)
	}
	return c.post(ctx, pathDebridStream, req)
}

func (c *APIClient) streamRequest(ep domain.EpisodeRef) streamStartRequest {
	return streamStartRequest{
		MediaID:       ep.MediaID,
		EpisodeNumber: ep.EpisodeNumber,
		AniDBEpisode:  ep.AniDBEpisode,
		AutoSelect:    true,
		PlaybackType:  "default",
		ClientID:      c.clientID,
	}
}

func (c *APIClient) selectedRequest(ep domain.EpisodeRef, sel domain.StreamSelection) streamStartRequest {
	req := c.streamRequest(ep)
	req.AutoSelect = false
	torrent := sel.Torrent
	req.Torrent = &torrent
	if sel.FileIndex != nil {
		idx := *sel.FileIndex
		req.FileIndex = &idx
	}
	return req
}

func (c *APIClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrBackend, path, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		var out apiResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out)
		if out.Error != "" {
			return fmt.Errorf("%w: POST %s returned %d: %s", ErrBackend, path, resp.StatusCode, out.Error)
		}
		return fmt.Errorf("%w: POST %s returned %d", ErrBackend, path, resp.StatusCode)
	}
	return nil
}
