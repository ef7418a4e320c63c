package resolve

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"torrentstream/playback/internal/domain"
)

var ErrInvalidTorrent = errors.New("invalid torrent")

// TorrentFiles is the file listing of a .torrent file.
type TorrentFiles struct {
	InfoHash string               `json:"infoHash"`
	Name     string               `json:"name"`
	Files    []domain.FilePreview `json:"files"`
}

// PreviewsFromMetaInfo reads a .torrent file and lists its files as previews
// in torrent order.
func PreviewsFromMetaInfo(r io.Reader) (TorrentFiles, error) {
	mi, err := metainfo.Load(r)
	if err != nil {
		return TorrentFiles{}, fmt.Errorf("%w: %v", ErrInvalidTorrent, err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return TorrentFiles{}, fmt.Errorf("%w: info: %v", ErrInvalidTorrent, err)
	}

	name := info.BestName()
	files := info.UpvertedFiles()
	out := TorrentFiles{
		InfoHash: mi.HashInfoBytes().HexString(),
		Name:     name,
		Files:    make([]domain.FilePreview, 0, len(files)),
	}
	for i := range files {
		fi := &files[i]
		display := fi.DisplayPath(&info)
		full := display
		if info.IsDir() {
			full = name + "/" + display
		}
		out.Files = append(out.Files, domain.FilePreview{
			Index:       i,
			DisplayPath: display,
			Path:        full,
			FileID:      strconv.Itoa(i),
			Length:      fi.Length,
		})
	}
	return out, nil
}

// ParseMagnet returns the lowercase hex info hash and display name of a
// magnet link.
func ParseMagnet(uri string) (string, string, error) {
	m, err := metainfo.ParseMagnetUri(strings.TrimSpace(uri))
	if err != nil {
		return "", "", fmt.Errorf("%w: magnet: %v", ErrInvalidTorrent, err)
	}
	if m.InfoHash == (metainfo.Hash{}) {
		return "", "", fmt.Errorf("%w: magnet has no info hash", ErrInvalidTorrent)
	}
	return m.InfoHash.HexString(), m.DisplayName, nil
}
