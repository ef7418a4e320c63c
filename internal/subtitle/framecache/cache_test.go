package framecache

import (
	"image"
	"sync"
	"testing"
)

func TestCachePutGet(t *testing.T) {
	c := New()
	if _, ok := c.Get("x"); ok {
		t.Fatal("empty cache returned a frame")
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c.Put("x", img)
	got, ok := c.Get("x")
	if !ok || got != img {
		t.Fatalf("Get after Put = %v, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestCachePutNilIgnored(t *testing.T) {
	c := New()
	c.Put("x", nil)
	if c.Has("x") {
		t.Fatal("nil frame should not be stored")
	}
}

func TestCacheClear(t *testing.T) {
	c := New()
	c.Put("a", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	c.Put("b", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
	if c.Has("a") {
		t.Fatal("frame survived Clear")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Put("k", img)
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Get("k")
		}()
	}
	wg.Wait()
	if !c.Has("k") {
		t.Fatal("frame missing after concurrent puts")
	}
}
