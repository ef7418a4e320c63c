package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"torrentstream/playback/internal/domain"
)

func TestToDocFromDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	info := domain.StreamAutoplayInfo{
		Kind:          domain.AutoplayTorrentStream,
		MediaID:       154587,
		EpisodeNumber: 5,
		AniDBEpisode:  "5",
		Episodes: []domain.EpisodeRef{
			{MediaID: 154587, EpisodeNumber: 5, AniDBEpisode: "5", DisplayTitle: "Episode 5"},
			{MediaID: 154587, EpisodeNumber: 6, AniDBEpisode: "6", DisplayTitle: "Episode 6"},
		},
	}

	doc := toDoc(info, now)
	if doc.ID != autoplayInfoID {
		t.Fatalf("doc id = %q", doc.ID)
	}
	if doc.UpdatedAt != now.Unix() {
		t.Fatalf("updatedAt = %d", doc.UpdatedAt)
	}

	got := fromDoc(doc)
	if got.Kind != info.Kind || got.MediaID != info.MediaID || got.EpisodeNumber != 5 || got.AniDBEpisode != "5" {
		t.Fatalf("got %+v", got)
	}
	if len(got.Episodes) != 2 || got.Episodes[1].DisplayTitle != "Episode 6" {
		t.Fatalf("episodes = %+v", got.Episodes)
	}
}

func TestDocBSONFieldNames(t *testing.T) {
	doc := toDoc(domain.StreamAutoplayInfo{Kind: domain.AutoplayDebridStream, MediaID: 1, EpisodeNumber: 2, AniDBEpisode: "2"}, time.Unix(0, 0))
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"_id", "kind", "mediaId", "episodeNumber", "aniDBEpisode", "updatedAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing field %q in %v", key, m)
		}
	}
	if _, ok := m["episodes"]; ok {
		t.Error("empty episode list should be omitted")
	}
}

func TestSelectedTorrentDocBSON(t *testing.T) {
	doc := selectedTorrentDoc{
		ID: selectedTorrentID,
		Selection: domain.SelectedTorrent{
			MediaID:    4,
			Torrent:    domain.TorrentRef{Name: "Show Batch", IsBatch: true},
			BatchFiles: &domain.BatchEpisodeFiles{Current: 2, Files: []domain.BatchFile{{Index: 2}, {Index: 3}}},
		},
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back selectedTorrentDoc
	if err := bson.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID == autoplayInfoID {
		t.Fatal("selection must not overwrite the autoplay info document")
	}
	if back.Selection.MediaID != 4 || !back.Selection.Torrent.IsBatch || back.Selection.BatchFiles.Current != 2 {
		t.Fatalf("selection = %+v", back.Selection)
	}

	for _, path := range [][]string{{"selection", "mediaId"}, {"selection", "torrent", "isBatch"}, {"selection", "batchFiles", "current"}} {
		if _, err := bson.Raw(raw).LookupErr(path...); err != nil {
			t.Errorf("missing %v: %v", path, err)
		}
	}
}
