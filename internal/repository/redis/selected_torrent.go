package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"torrentstream/playback/internal/domain"
)

const selectedTorrentKey = "playback:autoplay:selected-torrent"

// SelectedTorrentStore keeps the user's torrent choice in Redis as JSON.
type SelectedTorrentStore struct {
	client client
	ttl    time.Duration
}

func NewSelectedTorrentStore(c *redis.Client, ttl time.Duration) *SelectedTorrentStore {
	return &SelectedTorrentStore{client: c, ttl: ttl}
}

func (s *SelectedTorrentStore) Get(ctx context.Context) (domain.SelectedTorrent, bool, error) {
	data, err := s.client.Get(ctx, selectedTorrentKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SelectedTorrent{}, false, nil
		}
		return domain.SelectedTorrent{}, false, err
	}
	var sel domain.SelectedTorrent
	if err := json.Unmarshal(data, &sel); err != nil {
		return domain.SelectedTorrent{}, false, err
	}
	return sel, true, nil
}

func (s *SelectedTorrentStore) Set(ctx context.Context, sel domain.SelectedTorrent) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, selectedTorrentKey, data, s.ttl).Err()
}

func (s *SelectedTorrentStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, selectedTorrentKey).Err()
}
