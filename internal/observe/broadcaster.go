// Package observe fans state snapshots out to subscribers.
package observe

import "sync"

// Broadcaster delivers every published value to all current subscribers.
// Slow subscribers lose the oldest pending value instead of blocking the
// publisher, so the last value published is always delivered.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	last   T
	hasVal bool
	buffer int
}

type subscription[T any] struct {
	ch chan T
}

func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster[T]{subs: make(map[*subscription[T]]struct{}), buffer: buffer}
}

// Subscribe returns a channel of values and a cancel func. When replay is
// true the most recent value, if any, is delivered first.
func (b *Broadcaster[T]) Subscribe(replay bool) (<-chan T, func()) {
	sub := &subscription[T]{ch: make(chan T, b.buffer)}
	b.mu.Lock()
	if replay && b.hasVal {
		sub.ch <- b.last
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
}

// Publish must not be called while holding locks that subscribers take.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = v
	b.hasVal = true
	for sub := range b.subs {
		for {
			select {
			case sub.ch <- v:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (b *Broadcaster[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasVal
}

func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every subscriber.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
