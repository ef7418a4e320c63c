package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"torrentstream/playback/internal/domain"
)

type fakeClient struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestAutoplayInfoStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := &AutoplayInfoStore{client: fc, ttl: time.Hour}

	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}

	info := domain.StreamAutoplayInfo{
		Kind: domain.AutoplayTorrentStream, MediaID: 3, EpisodeNumber: 1, AniDBEpisode: "1",
		Episodes: []domain.EpisodeRef{{EpisodeNumber: 2, AniDBEpisode: "2"}},
	}
	if err := s.Set(ctx, info); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fc.ttls[autoplayInfoKey] != time.Hour {
		t.Fatalf("ttl = %v", fc.ttls[autoplayInfoKey])
	}

	got, ok, err := s.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if next, ok := got.Next(); !ok || next.EpisodeNumber != 2 {
		t.Fatalf("round-tripped info lost its episodes: %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("info should be gone")
	}
}

func TestAutoplayInfoStoreErrors(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := &AutoplayInfoStore{client: fc}

	fc.values[autoplayInfoKey] = "{not json"
	if _, _, err := s.Get(ctx); err == nil {
		t.Fatal("corrupt payload should fail")
	}

	boom := errors.New("connection refused")
	fc.err = boom
	if _, _, err := s.Get(ctx); !errors.Is(err, boom) {
		t.Fatalf("get err = %v", err)
	}
	if err := s.Set(ctx, domain.StreamAutoplayInfo{}); !errors.Is(err, boom) {
		t.Fatalf("set err = %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not-a-url://"); err == nil {
		t.Fatal("expected parse error")
	}
}
