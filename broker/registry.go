/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package broker

import "sync"

// Registry maps document keys to their one live DocumentBroker. It is the
// single source of truth for the at-most-one-worker-per-document invariant:
// every lookup, insert and removal holds the same mutex, and a caller
// racing a broker mid-teardown waits on the registry's condition variable
// instead of creating a second broker for the same key.
type Registry struct {
	mu   sync.Mutex
	cond *sync.Cond
	m    map[Key]*DocumentBroker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{m: make(map[Key]*DocumentBroker)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// GetOrCreate returns the live broker for key, waiting out any in-progress
// teardown and constructing a fresh broker via newFn exactly once if none
// exists. At no point does it return two different brokers concurrently
// for the same key.
func (r *Registry) GetOrCreate(key Key, newFn func() *DocumentBroker) *DocumentBroker {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		b, ok := r.m[key]
		if !ok {
			b = newFn()
			r.m[key] = b
			return b
		}
		if b.State() != Dead {
			return b
		}
		// A broker exists but is mid-teardown; wait for Remove to drop it
		// before minting a replacement.
		r.cond.Wait()
	}
}

// Lookup returns the broker for key without creating one.
func (r *Registry) Lookup(key Key) (*DocumentBroker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[key]
	return b, ok
}

// Remove drops the Dead broker for key and wakes any goroutine waiting in
// GetOrCreate. Calling Remove for a broker that is not Dead is a logic
// error the caller must not make - the teardown sequence in §4.3 demands
// it complete only after the session set empties and any pending save
// settles.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
	r.cond.Broadcast()
}

// Len reports the number of tracked brokers (live or mid-teardown), for
// admin/diagnostic use.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// ForEach calls fn once for every tracked broker, for use by a periodic
// sweep such as the gateway's idle-autosave ticker. fn runs with the
// registry unlocked, so it may itself call back into Lookup/Remove; the
// snapshot it iterates may miss brokers created, or include ones removed,
// while it runs.
func (r *Registry) ForEach(fn func(*DocumentBroker)) {
	r.mu.Lock()
	brokers := make([]*DocumentBroker, 0, len(r.m))
	for _, b := range r.m {
		brokers = append(brokers, b)
	}
	r.mu.Unlock()

	for _, b := range brokers {
		fn(b)
	}
}
