package memory

import (
	"context"
	"sync"

	"torrentstream/playback/internal/domain"
)

// AutoplayInfoStore keeps the pending stream autoplay info in process.
type AutoplayInfoStore struct {
	mu   sync.RWMutex
	info *domain.StreamAutoplayInfo
}

func NewAutoplayInfoStore() *AutoplayInfoStore {
	return &AutoplayInfoStore{}
}

func (s *AutoplayInfoStore) Get(_ context.Context) (domain.StreamAutoplayInfo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return domain.StreamAutoplayInfo{}, false, nil
	}
	return cloneInfo(*s.info), true, nil
}

func (s *AutoplayInfoStore) Set(_ context.Context, info domain.StreamAutoplayInfo) error {
	c := cloneInfo(info)
	s.mu.Lock()
	s.info = &c
	s.mu.Unlock()
	return nil
}

func (s *AutoplayInfoStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.info = nil
	s.mu.Unlock()
	return nil
}

func cloneInfo(info domain.StreamAutoplayInfo) domain.StreamAutoplayInfo {
	if info.Episodes != nil {
		info.Episodes = append([]domain.EpisodeRef(nil), info.Episodes...)
	}
	return info
}
