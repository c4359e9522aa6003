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

package socket

import "sync"

// registry tracks every live Poll so that a process-wide shutdown can wake
// all of them without each caller needing a reference to every runtime -
// the same role the source's registry of wakeup-pipe write-ends plays
// during signal-driven termination.
var registry struct {
	mu    sync.Mutex
	polls map[*Poll]struct{}
}

func init() {
	registry.polls = make(map[*Poll]struct{})
}

func register(p *Poll) {
	registry.mu.Lock()
	registry.polls[p] = struct{}{}
	registry.mu.Unlock()
}

func unregister(p *Poll) {
	registry.mu.Lock()
	delete(registry.polls, p)
	registry.mu.Unlock()
}

// WakeupAll signals every registered Poll. It only ever writes to
// already-created pipes, so it is safe to call from a signal handler's
// goroutine the way the termination flag is set in the concurrency model.
func WakeupAll() {
	registry.mu.Lock()
	polls := make([]*Poll, 0, len(registry.polls))
	for p := range registry.polls {
		polls = append(polls, p)
	}
	registry.mu.Unlock()

	for _, p := range polls {
		p.Wakeup()
	}
}
