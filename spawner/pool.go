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

package spawner

import (
	"sync/atomic"

	"github.com/CollaboraOnline/online-sub004/logger"
)

// Pool keeps a Spawner topped up to a target number of pre-forked spare
// Workers, mirroring the "spawn N" command the Gateway sends whenever a
// spare is claimed by an incoming document.
type Pool struct {
	s      *Spawner
	target int64
}

// NewPool wraps a Spawner with a target spare count.
func NewPool(s *Spawner, initialTarget int) *Pool {
	p := &Pool{s: s}
	atomic.StoreInt64(&p.target, int64(initialTarget))
	return p
}

// SetTarget changes how many spares the pool tries to keep warm, the Go
// equivalent of the ForKit websocket's "spawn <count>" message.
func (p *Pool) SetTarget(n int) {
	atomic.StoreInt64(&p.target, int64(n))
}

// Topup spawns children until the Spawner's live count reaches the target,
// returning every newly spawned Child. A spawn failure is logged and ends
// this top-up; the missing spares are attempted again on the next call.
func (p *Pool) Topup() []*Child {
	target := int(atomic.LoadInt64(&p.target))
	var spawned []*Child
	for p.s.Len() < target {
		c, err := p.s.Spawn()
		if err != nil {
			p.s.log.Warn("spawn failed during pool top-up", logger.Fields{"error": err.Error()})
			break
		}
		spawned = append(spawned, c)
	}
	return spawned
}
