package memory

import (
	"context"
	"testing"

	"torrentstream/playback/internal/domain"
)

func TestAutoplayInfoStore(t *testing.T) {
	ctx := context.Background()
	s := NewAutoplayInfoStore()

	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	episodes := []domain.EpisodeRef{{EpisodeNumber: 1, AniDBEpisode: "1"}, {EpisodeNumber: 2, AniDBEpisode: "2"}}
	info := domain.StreamAutoplayInfo{Kind: domain.AutoplayDebridStream, MediaID: 4, EpisodeNumber: 1, AniDBEpisode: "1", Episodes: episodes}
	if err := s.Set(ctx, info); err != nil {
		t.Fatalf("set: %v", err)
	}
	episodes[0].AniDBEpisode = "changed"

	got, ok, err := s.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Kind != domain.AutoplayDebridStream || got.MediaID != 4 || got.Episodes[0].AniDBEpisode != "1" {
		t.Fatalf("got %+v", got)
	}

	got.Episodes[1].AniDBEpisode = "mutated"
	again, _, _ := s.Get(ctx)
	if again.Episodes[1].AniDBEpisode != "2" {
		t.Fatal("callers must not share the stored slice")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("info should be gone after clear")
	}
}
