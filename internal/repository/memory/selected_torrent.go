package memory

import (
	"context"
	"sync"

	"torrentstream/playback/internal/domain"
)

// SelectedTorrentStore keeps the user's torrent choice in process.
type SelectedTorrentStore struct {
	mu  sync.RWMutex
	sel *domain.SelectedTorrent
}

func NewSelectedTorrentStore() *SelectedTorrentStore {
	return &SelectedTorrentStore{}
}

func (s *SelectedTorrentStore) Get(_ context.Context) (domain.SelectedTorrent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sel == nil {
		return domain.SelectedTorrent{}, false, nil
	}
	return cloneSelection(*s.sel), true, nil
}

func (s *SelectedTorrentStore) Set(_ context.Context, sel domain.SelectedTorrent) error {
	c := cloneSelection(sel)
	s.mu.Lock()
	s.sel = &c
	s.mu.Unlock()
	return nil
}

func (s *SelectedTorrentStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.sel = nil
	s.mu.Unlock()
	return nil
}

func cloneSelection(sel domain.SelectedTorrent) domain.SelectedTorrent {
	if sel.BatchFiles != nil {
		batch := *sel.BatchFiles
		batch.Files = append([]domain.BatchFile(nil), batch.Files...)
		sel.BatchFiles = &batch
	}
	return sel
}
