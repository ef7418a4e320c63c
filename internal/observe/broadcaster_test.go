package observe

import "testing"

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[int](4)
	a, cancelA := b.Subscribe(false)
	c, cancelC := b.Subscribe(false)
	defer cancelA()
	defer cancelC()

	b.Publish(7)
	if got := <-a; got != 7 {
		t.Fatalf("a got %d", got)
	}
	if got := <-c; got != 7 {
		t.Fatalf("c got %d", got)
	}
}

func TestBroadcasterReplayLast(t *testing.T) {
	b := NewBroadcaster[string](1)
	b.Publish("first")
	b.Publish("second")

	ch, cancel := b.Subscribe(true)
	defer cancel()
	if got := <-ch; got != "second" {
		t.Fatalf("replayed %q, want second", got)
	}

	noReplay, cancel2 := b.Subscribe(false)
	defer cancel2()
	select {
	case v := <-noReplay:
		t.Fatalf("unexpected replay %q", v)
	default:
	}
}

func TestBroadcasterSlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBroadcaster[int](2)
	ch, cancel := b.Subscribe(false)
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}
	var got []int
	for len(ch) > 0 {
		got = append(got, <-ch)
	}
	if len(got) != 2 || got[1] != 5 {
		t.Fatalf("got %v, want last two ending in 5", got)
	}
}

func TestBroadcasterCancelIdempotent(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch, cancel := b.Subscribe(false)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", b.Subscribers())
	}
	b.Publish(1)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch, cancel := b.Subscribe(false)
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	cancel()
}

func TestToastsPublishLevels(t *testing.T) {
	toasts := NewToasts(nil)
	ch, cancel := toasts.Subscribe()
	defer cancel()

	toasts.Info("Playing next episode")
	toasts.Warn("Failed to play next episode")

	if got := <-ch; got.Level != ToastInfo || got.Message != "Playing next episode" {
		t.Fatalf("first toast = %+v", got)
	}
	if got := <-ch; got.Level != ToastWarning {
		t.Fatalf("second toast = %+v", got)
	}
}
