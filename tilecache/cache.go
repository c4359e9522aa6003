/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package tilecache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Render is supplied by the DocumentBroker and produces the bitmap for one
// tile by asking the Worker to render it. It is only ever invoked once per
// Key while a render is outstanding - Cache.Fetch coalesces concurrent
// callers onto the same invocation via the singleflight group.
type Render func(Key) ([]byte, error)

type entry struct {
	key     Key
	bytes   []byte
	version int64
	elem    *list.Element
}

// Cache is a per-document, byte-budgeted, LRU-evicted tile store with
// request coalescing. One Cache belongs to exactly one DocumentBroker.
type Cache struct {
	mu     sync.Mutex
	lru    *list.List
	byKey  map[Key]*entry
	budget int64
	used   int64
	pinned map[Key]int

	group singleflight.Group
}

// New returns an empty Cache bounded to budgetBytes. A budget of 0 means
// unbounded (eviction never runs).
func New(budgetBytes int64) *Cache {
	return &Cache{
		lru:    list.New(),
		byKey:  make(map[Key]*entry),
		budget: budgetBytes,
		pinned: make(map[Key]int),
	}
}

// Lookup returns the cached bitmap for desc, if present.
func (c *Cache) Lookup(k Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byKey[k]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(e.elem)
	return e.bytes, true
}

// Save stores bytes for k, replacing any older version atomically and
// evicting the least-recently-used unpinned entries until the cache is
// back under budget.
func (c *Cache) Save(k Key, version int64, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byKey[k]; ok {
		c.used -= int64(len(old.bytes))
		old.bytes = bytes
		old.version = version
		c.lru.MoveToFront(old.elem)
	} else {
		e := &entry{key: k, bytes: bytes, version: version}
		e.elem = c.lru.PushFront(e)
		c.byKey[k] = e
	}
	c.used += int64(len(bytes))
	c.evict()
}

func (c *Cache) evict() {
	if c.budget <= 0 {
		return
	}
	for c.used > c.budget {
		e := c.lru.Back()
		for e != nil && c.pinned[e.Value.(*entry).key] > 0 {
			e = e.Prev()
		}
		if e == nil {
			return
		}
		ent := e.Value.(*entry)
		c.lru.Remove(e)
		delete(c.byKey, ent.key)
		c.used -= int64(len(ent.bytes))
	}
}

// Fetch returns the cached bitmap for k if present; otherwise it calls
// render exactly once even if many goroutines call Fetch for the same k
// concurrently - the coalescing contract the tile cache exists to provide.
// Every caller, whether it triggered the render or piggy-backed on one
// already in flight, receives identical bytes.
func (c *Cache) Fetch(k Key, version int64, render Render) ([]byte, error) {
	if b, ok := c.Lookup(k); ok {
		return b, nil
	}

	v, err, _ := c.group.Do(k.String(), func() (interface{}, error) {
		b, err := render(k)
		if err != nil {
			return nil, err
		}
		c.Save(k, version, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Pin marks k as having an active subscriber, excluding it from eviction
// until Unpin is called the same number of times.
func (c *Cache) Pin(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned[k]++
}

// Unpin releases one pin placed by Pin.
func (c *Cache) Unpin(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinned[k] > 1 {
		c.pinned[k]--
	} else {
		delete(c.pinned, k)
	}
}

// InvalidateSpec describes what Invalidate removes: a rectangle within one
// part, an entire part, or the whole document.
type InvalidateSpec struct {
	All  bool
	Part int
	// Rect, when neither All nor whole-part, restricts invalidation to
	// tiles whose position falls within [X0,X1)x[Y0,Y1) in document units.
	HasRect        bool
	X0, Y0, X1, Y1 int
}

// Invalidate removes every entry matching spec and returns the keys removed,
// so the caller (the DocumentBroker) can notify subscribers to re-request.
func (c *Cache) Invalidate(spec InvalidateSpec) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []Key
	for k, e := range c.byKey {
		if !matches(k, spec) {
			continue
		}
		c.lru.Remove(e.elem)
		delete(c.byKey, k)
		c.used -= int64(len(e.bytes))
		removed = append(removed, k)
	}
	return removed
}

func matches(k Key, spec InvalidateSpec) bool {
	if spec.All {
		return true
	}
	if k.Part != spec.Part {
		return false
	}
	if !spec.HasRect {
		return true
	}
	return k.PosX >= spec.X0 && k.PosX < spec.X1 && k.PosY >= spec.Y0 && k.PosY < spec.Y1
}

// Len reports the number of cached entries, for admin/diagnostic use.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
