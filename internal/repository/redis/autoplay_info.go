package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"torrentstream/playback/internal/domain"
)

const autoplayInfoKey = "playback:autoplay:info"

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AutoplayInfoStore keeps the pending stream autoplay info in Redis as JSON.
// A zero ttl keeps the key until it is cleared.
type AutoplayInfoStore struct {
	client client
	ttl    time.Duration
}

func NewAutoplayInfoStore(c *redis.Client, ttl time.Duration) *AutoplayInfoStore {
	return &AutoplayInfoStore{client: c, ttl: ttl}
}

func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (s *AutoplayInfoStore) Get(ctx context.Context) (domain.StreamAutoplayInfo, bool, error) {
	data, err := s.client.Get(ctx, autoplayInfoKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StreamAutoplayInfo{}, false, nil
		}
		return domain.StreamAutoplayInfo{}, false, err
	}
	var info domain.StreamAutoplayInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.StreamAutoplayInfo{}, false, err
	}
	return info, true, nil
}

func (s *AutoplayInfoStore) Set(ctx context.Context, info domain.StreamAutoplayInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, autoplayInfoKey, data, s.ttl).Err()
}

func (s *AutoplayInfoStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, autoplayInfoKey).Err()
}
