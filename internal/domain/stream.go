package domain

import "encoding/json"

// LoadingState is the acquisition phase reported by the streaming backend.
type LoadingState string

const (
	LoadingSearchingTorrents  LoadingState = "SEARCHING_TORRENTS"
	LoadingAddingTorrent      LoadingState = "ADDING_TORRENT"
	LoadingCheckingTorrent    LoadingState = "CHECKING_TORRENT"
	LoadingSelectingFile      LoadingState = "SELECTING_FILE"
	LoadingSendingStreamToMPV LoadingState = "SENDING_STREAM_TO_MEDIA_PLAYER"
)

func (s LoadingState) Valid() bool {
	switch s {
	case LoadingSearchingTorrents, LoadingAddingTorrent, LoadingCheckingTorrent,
		LoadingSelectingFile, LoadingSendingStreamToMPV:
		return true
	default:
		return false
	}
}

// TorrentHealth mirrors the backend's periodic torrent-status payload.
type TorrentHealth struct {
	Seeders            int     `json:"seeders"`
	DownloadSpeed      string  `json:"downloadSpeed"`
	UploadSpeed        string  `json:"uploadSpeed"`
	ProgressPercentage float64 `json:"progressPercentage"`
	DownloadProgress   int64   `json:"downloadProgress"`
	UploadProgress     int64   `json:"uploadProgress"`
	Size               string  `json:"size,omitempty"`
}

type DebridStatus string

const (
	DebridDownloading DebridStatus = "downloading"
	DebridReady       DebridStatus = "ready"
	DebridFailed      DebridStatus = "failed"
	DebridStarted     DebridStatus = "started"
)

type DebridStreamState struct {
	Status      DebridStatus `json:"status"`
	TorrentName string       `json:"torrentName"`
	Message     string       `json:"message"`
}

// StreamStatus is an immutable snapshot of the loading machine. Loading is nil
// once playback started or after a stop.
type StreamStatus struct {
	Loading             *LoadingState      `json:"loading"`
	TorrentBeingChecked string             `json:"torrentBeingChecked,omitempty"`
	Health              *TorrentHealth     `json:"health"`
	Loaded              bool               `json:"loaded"`
	PlaybackStarted     bool               `json:"playbackStarted"`
	Stopped             bool               `json:"stopped"`
	Debrid              *DebridStreamState `json:"debrid,omitempty"`
	Sequence            uint64             `json:"sequence"`
}

// Phase names the snapshot for logs and metrics.
func (s StreamStatus) Phase() string {
	switch {
	case s.Loading != nil:
		return string(*s.Loading)
	case s.PlaybackStarted:
		return "PLAYING"
	case s.Stopped:
		return "STOPPED"
	default:
		return "IDLE"
	}
}

// Inbound push message names.
const (
	MsgTorrentLoading        = "torrent-loading"
	MsgTorrentLoadingStatus  = "torrent-loading-status"
	MsgTorrentLoaded         = "torrent-loaded"
	MsgTorrentStartedPlaying = "torrent-started-playing"
	MsgTorrentStatus         = "torrent-status"
	MsgTorrentStopped        = "torrent-stopped"
	MsgDebridStreamState     = "debridstream-state"
)

// StreamMessage is the envelope the backend pushes for every stream event.
type StreamMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type LoadingStatusPayload struct {
	State               LoadingState `json:"state"`
	TorrentBeingChecked string       `json:"torrentBeingChecked,omitempty"`
}
