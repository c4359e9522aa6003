package tilecache_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/tilecache"
)

func testKey() tilecache.Key {
	return tilecache.Key{Part: 0, CanvasW: 256, CanvasH: 256, PosX: 0, PosY: 0, TileW: 3840, TileH: 3840}
}

func TestSaveThenLookup(t *testing.T) {
	c := tilecache.New(0)
	k := testKey()

	if _, ok := c.Lookup(k); ok {
		t.Fatalf("expected miss before Save")
	}
	c.Save(k, 1, []byte("tile-bytes"))

	b, ok := c.Lookup(k)
	if !ok || string(b) != "tile-bytes" {
		t.Fatalf("Lookup = %q, %v", b, ok)
	}
}

func TestFetchCoalescesConcurrentRenders(t *testing.T) {
	c := tilecache.New(0)
	k := testKey()

	var calls int32
	render := func(tilecache.Key) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("rendered"), nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := c.Fetch(k, 1, render)
			if err != nil {
				t.Errorf("Fetch: %v", err)
			}
			results[i] = b
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("render invoked %d times, want exactly 1 (coalescing contract)", got)
	}
	for i, b := range results {
		if string(b) != "rendered" {
			t.Errorf("result[%d] = %q, want identical bytes for every subscriber", i, b)
		}
	}
}

func TestInvalidateByPart(t *testing.T) {
	c := tilecache.New(0)
	k0 := testKey()
	k1 := testKey()
	k1.Part = 1

	c.Save(k0, 1, []byte("a"))
	c.Save(k1, 1, []byte("b"))

	removed := c.Invalidate(tilecache.InvalidateSpec{Part: 0})
	if len(removed) != 1 || removed[0] != k0 {
		t.Fatalf("Invalidate(part=0) removed %v, want [%v]", removed, k0)
	}
	if _, ok := c.Lookup(k0); ok {
		t.Errorf("k0 should have been evicted")
	}
	if _, ok := c.Lookup(k1); !ok {
		t.Errorf("k1 should survive a part-0 invalidation")
	}
}

func TestEvictionRespectsBudgetAndPins(t *testing.T) {
	c := tilecache.New(10)
	k0 := testKey()
	k1 := testKey()
	k1.PosX = 3840

	c.Pin(k0)
	c.Save(k0, 1, []byte("0123456789"))
	c.Save(k1, 1, []byte("9876543210"))

	if _, ok := c.Lookup(k0); !ok {
		t.Errorf("pinned entry k0 must survive eviction")
	}
}
