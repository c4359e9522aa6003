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

// Package childpool matches freshly spawned Workers, handed over by the
// Spawner's control connection, to the DocumentBrokers waiting for one. A
// spare Worker and a broker needing one rarely arrive at the same instant,
// so a spare with nobody waiting sits in a queue, and a broker with no
// spare on hand sits in the other queue, until Offer and Claim cross.
package childpool

import (
	"sync"

	"github.com/CollaboraOnline/online-sub004/broker"
	"github.com/CollaboraOnline/online-sub004/logger"
	"github.com/CollaboraOnline/online-sub004/socket"
	"github.com/CollaboraOnline/online-sub004/spawner"
	"github.com/CollaboraOnline/online-sub004/wsframe"
)

// Pool hands out spare Workers to DocumentBrokers as each becomes
// available. One Pool belongs to one Gateway process.
type Pool struct {
	poll *socket.Poll
	log  logger.Logger

	mu      sync.Mutex
	spares  []*boundWorker
	waiters []*broker.DocumentBroker
}

// New builds a Pool whose claimed Workers are driven by poll.
func New(poll *socket.Poll, log logger.Logger) *Pool {
	return &Pool{poll: poll, log: log}
}

// boundWorker is the Gateway-side connection to one spawned Worker, from
// before it is claimed by any document through to however many tile and
// save round-trips it serves for the broker it ends up bound to. The
// broker field starts nil and is set exactly once, by bindTo - the
// wsframe.Conn driving this Worker is constructed before its destination
// broker is known, so onMessage has to consult it through this
// indirection rather than closing over it directly.
type boundWorker struct {
	pid  int
	jail string

	conn   *wsframe.Conn
	handle *broker.WorkerHandle

	mu sync.Mutex
	b  *broker.DocumentBroker
}

func (w *boundWorker) bindTo(b *broker.DocumentBroker) {
	w.mu.Lock()
	w.b = b
	w.mu.Unlock()
	b.SetWorker(w.handle)
}

// onMessage is the wsframe.MessageHandler for this Worker's connection.
// Tile and save responses are pulled out and routed to the broker's
// waiting renderTile/RequestSave call; everything else - status,
// invalidatetiles, statusindicator, and the rest of the Worker's
// unaddressed chatter - is broadcast to every session on the document.
func (w *boundWorker) onMessage(_ wsframe.Opcode, payload []byte) {
	w.mu.Lock()
	b := w.b
	w.mu.Unlock()
	if b == nil {
		return
	}

	if k, bitmap, ok := broker.SplitTileResult(payload); ok {
		b.DeliverTileResult(k, bitmap)
		return
	}
	if body, ok := broker.SplitSaveResult(payload); ok {
		b.DeliverSaveResult(body)
		return
	}
	b.DispatchWorkerMessage(0, true, payload)
}

// Offer admits a Worker the Spawner just handed over, wrapping its
// connection in the WebSocket framer and inserting it into this Pool's
// Poll. If a broker is already waiting for a Worker, the two are bound
// immediately; otherwise the Worker waits as a spare.
func (p *Pool) Offer(spare spawner.SpareWorker) {
	w := &boundWorker{pid: spare.Pid, jail: spare.Jail}
	w.conn = wsframe.NewConn(spare.Conn, w.onMessage)

	sock, err := socket.New(spare.Conn, w.conn)
	if err != nil {
		p.log.Warn("adopting spare worker connection", logger.Fields{"pid": spare.Pid, "error": err.Error()})
		_ = spare.Conn.Close()
		return
	}

	conn := w.conn
	w.handle = broker.NewWorkerHandle(spare.Pid, sock.FD(), spare.Jail, func(msg []byte) error {
		p.poll.PostCallback(func() { conn.SendBinary(msg) })
		return nil
	})

	waiting := p.admitSpare(w)

	p.poll.InsertSocket(sock)

	if waiting != nil {
		w.bindTo(waiting)
	}
}

func (p *Pool) admitSpare(w *boundWorker) *broker.DocumentBroker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.waiters) > 0 {
		b := p.waiters[0]
		p.waiters = p.waiters[1:]
		return b
	}
	p.spares = append(p.spares, w)
	return nil
}

// Claim asks the Pool for a Worker on behalf of b, binding one
// immediately if a spare is on hand or queuing b to receive the next
// Worker Offer admits.
func (p *Pool) Claim(b *broker.DocumentBroker) {
	p.mu.Lock()
	var w *boundWorker
	if len(p.spares) > 0 {
		w = p.spares[0]
		p.spares = p.spares[1:]
	} else {
		p.waiters = append(p.waiters, b)
	}
	p.mu.Unlock()

	if w != nil {
		w.bindTo(b)
	}
}

// SpareCount reports how many Workers are queued unclaimed, for admin and
// test use.
func (p *Pool) SpareCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.spares)
}

// WaiterCount reports how many brokers are queued awaiting a Worker, for
// admin and test use.
func (p *Pool) WaiterCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
