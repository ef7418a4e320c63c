package redis

import (
	"context"
	"testing"
	"time"

	"torrentstream/playback/internal/domain"
)

func TestSelectedTorrentStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := &SelectedTorrentStore{client: fc, ttl: time.Minute}

	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}

	sel := domain.SelectedTorrent{
		MediaID:    5,
		Torrent:    domain.TorrentRef{Name: "Show Batch", InfoHash: "abc", IsBatch: true},
		BatchFiles: &domain.BatchEpisodeFiles{Current: 1, Files: []domain.BatchFile{{Index: 1}, {Index: 2}}},
	}
	if err := s.Set(ctx, sel); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fc.ttls[selectedTorrentKey] != time.Minute {
		t.Fatalf("ttl = %v", fc.ttls[selectedTorrentKey])
	}
	if _, ok := fc.values[autoplayInfoKey]; ok {
		t.Fatal("selection must not share the autoplay info key")
	}

	got, ok, err := s.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if next, ok := got.NextBatchFile(); !ok || next.Index != 2 || got.Torrent.InfoHash != "abc" {
		t.Fatalf("round-tripped selection = %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("selection should be gone")
	}
}
