package ports

import (
	"context"

	"torrentstream/playback/internal/domain"
)

// LocalPlayer starts playback of a file that already exists in the library.
type LocalPlayer interface {
	PlayLocalFile(ctx context.Context, path string, mediaID int, episode domain.EpisodeRef) error
}

// StreamStarter asks the backend to start a torrent or debrid stream for an
// episode, either auto-selecting the torrent or using the given selection.
type StreamStarter interface {
	StartTorrentStream(ctx context.Context, ep domain.EpisodeRef) error
	StartDebridStream(ctx context.Context, ep domain.EpisodeRef) error
	StartSelectedTorrentStream(ctx context.Context, ep domain.EpisodeRef, sel domain.StreamSelection) error
	StartSelectedDebridStream(ctx context.Context, ep domain.EpisodeRef, sel domain.StreamSelection) error
}

// Notifier surfaces transient user-visible messages.
type Notifier interface {
	Info(message string)
	Warn(message string)
}

type AutoplayInfoStore interface {
	Get(ctx context.Context) (domain.StreamAutoplayInfo, bool, error)
	Set(ctx context.Context, info domain.StreamAutoplayInfo) error
	Clear(ctx context.Context) error
}

type SelectedTorrentStore interface {
	Get(ctx context.Context) (domain.SelectedTorrent, bool, error)
	Set(ctx context.Context, sel domain.SelectedTorrent) error
	Clear(ctx context.Context) error
}
