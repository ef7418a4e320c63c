package domain

type StreamingType string

const (
	StreamingLocal   StreamingType = "local"
	StreamingTorrent StreamingType = "torrent"
	StreamingDebrid  StreamingType = "debrid"
)

func (t StreamingType) Valid() bool {
	return t == StreamingLocal || t == StreamingTorrent || t == StreamingDebrid
}

// EpisodeRef identifies an episode to play next.
type EpisodeRef struct {
	MediaID       int    `json:"mediaId"`
	EpisodeNumber int    `json:"episodeNumber"`
	AniDBEpisode  string `json:"aniDBEpisode,omitempty"`
	DisplayTitle  string `json:"displayTitle,omitempty"`
	LocalFilePath string `json:"localFilePath,omitempty"`
}

const AutoplayCountdownSeconds = 5

type AutoplayState struct {
	IsActive      bool           `json:"isActive"`
	Countdown     int            `json:"countdown"`
	NextEpisode   *EpisodeRef    `json:"nextEpisode"`
	StreamingType *StreamingType `json:"streamingType"`
}

func IdleAutoplayState() AutoplayState {
	return AutoplayState{Countdown: AutoplayCountdownSeconds}
}

type StreamAutoplayKind string

const (
	AutoplayTorrentStream StreamAutoplayKind = "torrentstream"
	AutoplayDebridStream  StreamAutoplayKind = "debridstream"
)

// StreamAutoplayInfo is the pending "next torrent/debrid episode" signal left
// behind by a stream that is currently playing.
type StreamAutoplayInfo struct {
	Kind          StreamAutoplayKind `json:"kind" bson:"kind"`
	MediaID       int                `json:"mediaId" bson:"mediaId"`
	EpisodeNumber int                `json:"episodeNumber" bson:"episodeNumber"`
	AniDBEpisode  string             `json:"aniDBEpisode" bson:"aniDBEpisode"`
	Episodes      []EpisodeRef       `json:"episodes,omitempty" bson:"episodes,omitempty"`
}

// Next returns the info for the following episode, or false when the episode
// list has no successor.
func (i StreamAutoplayInfo) Next() (StreamAutoplayInfo, bool) {
	for _, ep := range i.Episodes {
		if ep.EpisodeNumber == i.EpisodeNumber+1 && ep.AniDBEpisode != "" {
			next := i
			next.EpisodeNumber = ep.EpisodeNumber
			next.AniDBEpisode = ep.AniDBEpisode
			return next, true
		}
	}
	return StreamAutoplayInfo{}, false
}

// EpisodeRef describes the episode this info points at. Episode list entries
// usually carry no media ID of their own, so the info's media ID and AniDB
// episode fill any gaps.
func (i StreamAutoplayInfo) EpisodeRef() EpisodeRef {
	ref := EpisodeRef{EpisodeNumber: i.EpisodeNumber}
	for _, ep := range i.Episodes {
		if ep.EpisodeNumber == i.EpisodeNumber {
			ref = ep
			break
		}
	}
	if ref.MediaID == 0 {
		ref.MediaID = i.MediaID
	}
	if ref.AniDBEpisode == "" {
		ref.AniDBEpisode = i.AniDBEpisode
	}
	return ref
}

// TorrentRef is a torrent picked by the user for a stream.
type TorrentRef struct {
	Provider      string `json:"provider,omitempty" bson:"provider,omitempty"`
	Name          string `json:"name" bson:"name"`
	Link          string `json:"link,omitempty" bson:"link,omitempty"`
	MagnetLink    string `json:"magnetLink,omitempty" bson:"magnetLink,omitempty"`
	InfoHash      string `json:"infoHash,omitempty" bson:"infoHash,omitempty"`
	Resolution    string `json:"resolution,omitempty" bson:"resolution,omitempty"`
	ReleaseGroup  string `json:"releaseGroup,omitempty" bson:"releaseGroup,omitempty"`
	Size          int64  `json:"size,omitempty" bson:"size,omitempty"`
	EpisodeNumber int    `json:"episodeNumber" bson:"episodeNumber"`
	IsBatch       bool   `json:"isBatch" bson:"isBatch"`
}

type BatchFile struct {
	Index int    `json:"index" bson:"index"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Path  string `json:"path,omitempty" bson:"path,omitempty"`
}

// BatchEpisodeFiles tracks which file of a batch torrent is playing.
type BatchEpisodeFiles struct {
	Current              int         `json:"current" bson:"current"`
	CurrentEpisodeNumber int         `json:"currentEpisodeNumber" bson:"currentEpisodeNumber"`
	CurrentAniDBEpisode  string      `json:"currentAniDBEpisode" bson:"currentAniDBEpisode"`
	Files                []BatchFile `json:"files" bson:"files"`
}

// SelectedTorrent is the torrent the user chose for the media currently
// being streamed. BatchFiles is set when a file was picked out of a batch.
type SelectedTorrent struct {
	MediaID    int                `json:"mediaId" bson:"mediaId"`
	Torrent    TorrentRef         `json:"torrent" bson:"torrent"`
	BatchFiles *BatchEpisodeFiles `json:"batchFiles,omitempty" bson:"batchFiles,omitempty"`
}

// NextBatchFile returns the batch file whose index follows the current one.
func (s SelectedTorrent) NextBatchFile() (BatchFile, bool) {
	if s.BatchFiles == nil {
		return BatchFile{}, false
	}
	for _, f := range s.BatchFiles.Files {
		if f.Index == s.BatchFiles.Current+1 {
			return f, true
		}
	}
	return BatchFile{}, false
}

// StreamSelection asks the backend to stream a specific torrent instead of
// auto-selecting one. A nil FileIndex lets the backend pick the file.
type StreamSelection struct {
	Torrent   TorrentRef
	FileIndex *int
}
