package eventstore

import (
	"errors"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"torrentstream/playback/internal/domain"
	"torrentstream/playback/internal/subtitle/framecache"
)

type countingDecoder struct {
	calls atomic.Int32
	fail  map[string]bool
	gate  chan struct{}
}

func (d *countingDecoder) Decode(payload string) (image.Image, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if d.fail[payload] {
		return nil, errors.New("broken payload")
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 2)), nil
}

type panickingDecoder struct{}

func (panickingDecoder) Decode(string) (image.Image, error) {
	panic("decoder exploded")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestStore(dec *countingDecoder, opts ...Option) (*Store, *framecache.Cache) {
	cache := framecache.New()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return New(cache, dec, opts...), cache
}

func TestAddDuplicateStoresOnceAndDecodesOnce(t *testing.T) {
	dec := &countingDecoder{}
	store, cache := newTestStore(dec)

	ev := domain.SubtitleEvent{StartTime: 1, Duration: 2, ImagePayload: "X", Width: 4, Height: 2}
	if !store.Add(ev) {
		t.Fatal("first Add returned false")
	}
	if store.Add(ev) {
		t.Fatal("second Add of identical event returned true")
	}
	store.Wait()

	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	if got := dec.calls.Load(); got != 1 {
		t.Fatalf("decode calls = %d, want 1", got)
	}
	if !cache.Has("X") {
		t.Fatal("decoded frame not cached")
	}
}

func TestAddDedupUsesPayloadPrefix(t *testing.T) {
	dec := &countingDecoder{}
	store, _ := newTestStore(dec)

	prefix := strings.Repeat("a", domain.KeyPayloadPrefix)
	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: prefix + "tail-one"})
	added := store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: prefix + "tail-two"})
	store.Wait()

	if added {
		t.Fatal("events sharing start, duration and payload prefix should collide")
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestSharedPayloadDecodedOnce(t *testing.T) {
	dec := &countingDecoder{}
	store, _ := newTestStore(dec)

	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "same"})
	store.Wait()
	store.Add(domain.SubtitleEvent{StartTime: 5, Duration: 1, ImagePayload: "same"})
	store.Wait()

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	if got := dec.calls.Load(); got != 1 {
		t.Fatalf("decode calls = %d, want 1", got)
	}
}

func TestEventsKeepInsertionOrder(t *testing.T) {
	store, _ := newTestStore(&countingDecoder{})
	starts := []float64{9, 1, 5}
	for _, s := range starts {
		store.Add(domain.SubtitleEvent{StartTime: s, Duration: 1, ImagePayload: "p"})
	}
	store.Wait()

	events := store.Events()
	for i, s := range starts {
		if events[i].StartTime != s {
			t.Fatalf("events[%d].StartTime = %v, want %v", i, events[i].StartTime, s)
		}
	}
}

func TestDecodeFailureReportedAndNotCached(t *testing.T) {
	dec := &countingDecoder{fail: map[string]bool{"bad": true}}
	var mu sync.Mutex
	var reported []domain.SubtitleEvent
	store, cache := newTestStore(dec, WithDecodeErrorHandler(func(ev domain.SubtitleEvent, err error) {
		mu.Lock()
		reported = append(reported, ev)
		mu.Unlock()
	}))

	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "bad"})
	store.Add(domain.SubtitleEvent{StartTime: 2, Duration: 1, ImagePayload: "good"})
	store.Wait()

	if cache.Has("bad") {
		t.Fatal("failed payload should not be cached")
	}
	if !cache.Has("good") {
		t.Fatal("healthy payload should still be cached")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || reported[0].ImagePayload != "bad" {
		t.Fatalf("reported = %+v", reported)
	}
	if store.Len() != 2 {
		t.Fatalf("failed event should stay stored, Len = %d", store.Len())
	}
}

func TestDecoderPanicIsContained(t *testing.T) {
	cache := framecache.New()
	var got error
	store := New(cache, panickingDecoder{},
		WithLogger(discardLogger()),
		WithDecodeErrorHandler(func(_ domain.SubtitleEvent, err error) { got = err }),
	)
	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "p"})
	store.Wait()

	if got == nil {
		t.Fatal("panic was not reported as a decode error")
	}
	if cache.Len() != 0 {
		t.Fatal("nothing should be cached after a panic")
	}
}

func TestClearDiscardsInflightDecode(t *testing.T) {
	dec := &countingDecoder{gate: make(chan struct{})}
	store, cache := newTestStore(dec)

	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "old"})
	store.Clear()
	close(dec.gate)
	store.Wait()

	if cache.Has("old") {
		t.Fatal("decode from a cleared session reached the cache")
	}
	if store.Len() != 0 {
		t.Fatalf("Len after Clear = %d", store.Len())
	}

	// The same event can be added again after a clear.
	if !store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "old"}) {
		t.Fatal("Add after Clear returned false")
	}
	store.Wait()
	if !cache.Has("old") {
		t.Fatal("re-added event was not decoded")
	}
}

func TestCloseStopsPendingDecodes(t *testing.T) {
	dec := &countingDecoder{gate: make(chan struct{})}
	store, _ := newTestStore(dec, WithDecodeLimit(1))

	store.Add(domain.SubtitleEvent{StartTime: 0, Duration: 1, ImagePayload: "a"})
	store.Add(domain.SubtitleEvent{StartTime: 1, Duration: 1, ImagePayload: "b"})

	done := make(chan struct{})
	go func() {
		store.Close()
		close(done)
	}()
	close(dec.gate)
	<-done

	if got := dec.calls.Load(); got > 2 {
		t.Fatalf("decode calls = %d", got)
	}
}
