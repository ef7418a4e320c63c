package loading

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"torrentstream/playback/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func message(t *testing.T, typ string, payload any) domain.StreamMessage {
	t.Helper()
	msg := domain.StreamMessage{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		msg.Payload = raw
	}
	return msg
}

func mustHandle(t *testing.T, m *Machine, msg domain.StreamMessage) {
	t.Helper()
	if err := m.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle %s: %v", msg.Type, err)
	}
}

func loadingOf(s domain.StreamStatus) domain.LoadingState {
	if s.Loading == nil {
		return ""
	}
	return *s.Loading
}

func TestFullAcquisitionSequence(t *testing.T) {
	m := New(discardLogger())

	mustHandle(t, m, message(t, domain.MsgTorrentLoading, nil))
	if got := loadingOf(m.Status()); got != domain.LoadingSearchingTorrents {
		t.Fatalf("after loading: %q", got)
	}

	mustHandle(t, m, message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{
		State: domain.LoadingCheckingTorrent, TorrentBeingChecked: "[Group] Show - 05 [1080p].mkv",
	}))
	s := m.Status()
	if loadingOf(s) != domain.LoadingCheckingTorrent || s.TorrentBeingChecked != "[Group] Show - 05 [1080p].mkv" {
		t.Fatalf("after checking: %+v", s)
	}

	mustHandle(t, m, message(t, domain.MsgTorrentLoaded, nil))
	s = m.Status()
	if loadingOf(s) != domain.LoadingSendingStreamToMPV || !s.Loaded {
		t.Fatalf("after loaded: %+v", s)
	}

	mustHandle(t, m, message(t, domain.MsgTorrentStartedPlaying, nil))
	s = m.Status()
	if s.Loading != nil || !s.PlaybackStarted {
		t.Fatalf("after started playing: %+v", s)
	}
	if s.Sequence != 4 {
		t.Fatalf("sequence = %d, want 4", s.Sequence)
	}
}

func TestStoppedIsHardReset(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgTorrentLoading, nil))
	mustHandle(t, m, message(t, domain.MsgTorrentStatus, domain.TorrentHealth{Seeders: 12, DownloadSpeed: "2 MB/s"}))
	mustHandle(t, m, message(t, domain.MsgTorrentStartedPlaying, nil))
	mustHandle(t, m, message(t, domain.MsgTorrentStopped, nil))

	s := m.Status()
	if s.Loading != nil || s.Health != nil || s.Loaded || s.PlaybackStarted || !s.Stopped {
		t.Fatalf("after stop: %+v", s)
	}
	if s.Phase() != "STOPPED" {
		t.Fatalf("phase = %q", s.Phase())
	}
}

func TestHealthDoesNotChangeLoadingState(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{State: domain.LoadingSelectingFile}))
	mustHandle(t, m, message(t, domain.MsgTorrentStatus, domain.TorrentHealth{Seeders: 3, ProgressPercentage: 12.5}))

	s := m.Status()
	if loadingOf(s) != domain.LoadingSelectingFile {
		t.Fatalf("loading state changed: %q", loadingOf(s))
	}
	if s.Health == nil || s.Health.Seeders != 3 || s.Health.ProgressPercentage != 12.5 {
		t.Fatalf("health = %+v", s.Health)
	}
	if !s.Loaded {
		t.Fatal("health report should mark the stream loaded")
	}
}

func TestLoadingStatusAfterStopAdoptsState(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgTorrentStopped, nil))
	mustHandle(t, m, message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{State: domain.LoadingAddingTorrent}))

	s := m.Status()
	if loadingOf(s) != domain.LoadingAddingTorrent || s.Stopped {
		t.Fatalf("status = %+v", s)
	}
}

func TestLoadingStatusMayMoveBackwards(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{State: domain.LoadingSelectingFile}))
	mustHandle(t, m, message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{State: domain.LoadingSearchingTorrents}))
	if got := loadingOf(m.Status()); got != domain.LoadingSearchingTorrents {
		t.Fatalf("loading = %q", got)
	}
}

func TestLoadingClearsPreviousSession(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgTorrentStatus, domain.TorrentHealth{Seeders: 1}))
	mustHandle(t, m, message(t, domain.MsgTorrentStartedPlaying, nil))
	mustHandle(t, m, message(t, domain.MsgTorrentLoading, nil))

	s := m.Status()
	if s.Health != nil || s.PlaybackStarted || s.Loaded {
		t.Fatalf("new load should start clean: %+v", s)
	}
}

func TestDebridStateRecorded(t *testing.T) {
	m := New(discardLogger())
	mustHandle(t, m, message(t, domain.MsgDebridStreamState, domain.DebridStreamState{
		Status: domain.DebridDownloading, TorrentName: "Show S01", Message: "caching",
	}))
	s := m.Status()
	if s.Debrid == nil || s.Debrid.Status != domain.DebridDownloading || s.Debrid.TorrentName != "Show S01" {
		t.Fatalf("debrid = %+v", s.Debrid)
	}
}

func TestInvalidMessages(t *testing.T) {
	m := New(discardLogger())

	err := m.Handle(context.Background(), domain.StreamMessage{Type: "torrent-exploded"})
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("unknown type err = %v", err)
	}

	err = m.Handle(context.Background(), domain.StreamMessage{Type: domain.MsgTorrentLoadingStatus})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("missing payload err = %v", err)
	}

	err = m.Handle(context.Background(), message(t, domain.MsgTorrentLoadingStatus, domain.LoadingStatusPayload{State: "WARMING_UP"}))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("bad state err = %v", err)
	}

	if s := m.Status(); s.Sequence != 0 {
		t.Fatalf("rejected messages must not change state: %+v", s)
	}
}

func TestSubscribersSeeEverySnapshot(t *testing.T) {
	m := New(discardLogger())
	updates, cancel := m.Subscribe(false)
	defer cancel()

	mustHandle(t, m, message(t, domain.MsgTorrentLoading, nil))
	mustHandle(t, m, message(t, domain.MsgTorrentLoaded, nil))

	for want := uint64(1); want <= 2; want++ {
		select {
		case s := <-updates:
			if s.Sequence != want {
				t.Fatalf("sequence = %d, want %d", s.Sequence, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for update")
		}
	}
}
