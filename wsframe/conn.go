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

package wsframe

import (
	"io"
	"net"
	"time"

	"github.com/CollaboraOnline/online-sub004/ioutils"
	"github.com/CollaboraOnline/online-sub004/socket"
)

// PingFrequency is the liveness interval the framer sends an unsolicited
// Ping on, absent any other traffic.
const PingFrequency = 18 * time.Second

// InitialPingDelay defers the very first Ping so it does not race the
// handshake response on the wire.
const InitialPingDelay = 25 * time.Millisecond

// MessageHandler receives fully aggregated, unmasked application messages
// (FIN=1 Text/Binary, with any preceding Continuation frames already
// merged) and the opcode they arrived as.
type MessageHandler func(opcode Opcode, payload []byte)

// Conn is a socket.Handler that speaks the WebSocket framing protocol over
// one accepted connection: incremental frame parsing, ping/pong liveness,
// and the close handshake.
type Conn struct {
	raw      net.Conn
	counters *ioutils.Counters
	recv     MessageHandler

	inbuf   []byte
	msgBuf  []byte
	msgOp   Opcode
	haveMsg bool

	outq [][]byte

	shuttingDown bool
	upgradedAt   time.Time
	lastPingAt   time.Time
	lastPongAt   time.Time
}

// NewConn wraps raw (already upgraded) with the framer. recv is invoked
// synchronously from HandleReadable for every complete message - it must
// not block, per the poll loop's non-blocking-handler invariant. Every
// byte that crosses raw is tallied, so Counters() can feed the admin
// console's per-session traffic figures.
func NewConn(raw net.Conn, recv MessageHandler) *Conn {
	counted, counters := ioutils.NewCountedConn(raw)
	return &Conn{raw: counted, counters: counters, recv: recv, upgradedAt: time.Now()}
}

// Counters returns the running byte totals for this connection.
func (c *Conn) Counters() *ioutils.Counters { return c.counters }

// SendText enqueues a single-frame, FIN-set text message.
func (c *Conn) SendText(msg []byte) { c.enqueue(OpText, msg) }

// SendBinary enqueues a single-frame, FIN-set binary message.
func (c *Conn) SendBinary(msg []byte) { c.enqueue(OpBinary, msg) }

// SendPing enqueues a Ping control frame with no payload.
func (c *Conn) SendPing() { c.enqueue(OpPing, nil) }

// SendPong echoes payload back as a Pong.
func (c *Conn) SendPong(payload []byte) { c.enqueue(OpPong, payload) }

// Shutdown enqueues a Close frame carrying code and reason, and marks the
// connection as shutting down: subsequent inbound frames are ignored except
// an echoed Close, per the contract.
func (c *Conn) Shutdown(code uint16, reason string) {
	body := make([]byte, 2+len(reason))
	body[0] = byte(code >> 8)
	body[1] = byte(code)
	copy(body[2:], reason)
	c.enqueue(OpClose, body)
	c.shuttingDown = true
}

func (c *Conn) enqueue(op Opcode, payload []byte) {
	c.outq = append(c.outq, Encode(op, true, payload))
}

// PollEvents implements socket.Handler: this framer always wants to read,
// wants to write only when output is queued, and caps the timeout to the
// next ping tick.
func (c *Conn) PollEvents(timeoutMaxMs *int) uint32 {
	mask := uint32(0x001) // EPOLLIN
	if len(c.outq) > 0 {
		mask |= 0x004 // EPOLLOUT
	}

	due := c.nextPingDue()
	if ms := int(time.Until(due) / time.Millisecond); ms < *timeoutMaxMs {
		if ms < 0 {
			ms = 0
		}
		*timeoutMaxMs = ms
	}
	return mask
}

func (c *Conn) nextPingDue() time.Time {
	if c.lastPingAt.IsZero() {
		return c.upgradedAt.Add(InitialPingDelay)
	}
	return c.lastPingAt.Add(PingFrequency)
}

// HandleReadable implements socket.Handler.
func (c *Conn) HandleReadable() socket.Disposition {
	buf := make([]byte, 65536)
	n, err := c.raw.Read(buf)
	if err != nil {
		if err == io.EOF {
			return socket.Closed
		}
		return socket.Closed
	}
	c.inbuf = append(c.inbuf, buf[:n]...)

	for {
		frame, consumed, ferr := Decode(c.inbuf)
		if ferr != nil {
			c.Shutdown(CloseProtocolError, "protocol error")
			return socket.Continue
		}
		if consumed == 0 {
			break
		}
		c.inbuf = c.inbuf[consumed:]

		if disp := c.dispatch(frame); disp != socket.Continue {
			return disp
		}
	}
	return socket.Continue
}

func (c *Conn) dispatch(f Frame) socket.Disposition {
	if c.shuttingDown && f.Opcode != OpClose {
		return socket.Continue
	}
	switch f.Opcode {
	case OpPing:
		c.SendPong(f.Payload)
		return socket.Continue
	case OpPong:
		c.lastPongAt = time.Now()
		return socket.Continue
	case OpClose:
		if !c.shuttingDown {
			c.enqueue(OpClose, f.Payload)
		}
		return socket.Closed
	case OpContinuation:
		if c.haveMsg {
			c.msgBuf = append(c.msgBuf, f.Payload...)
			if f.Fin {
				c.deliver()
			}
		}
		return socket.Continue
	case OpText, OpBinary:
		if f.Fin {
			if c.recv != nil {
				c.recv(f.Opcode, f.Payload)
			}
		} else {
			c.haveMsg = true
			c.msgOp = f.Opcode
			c.msgBuf = append([]byte(nil), f.Payload...)
		}
		return socket.Continue
	default:
		c.Shutdown(CloseProtocolError, "unknown opcode")
		return socket.Continue
	}
}

func (c *Conn) deliver() {
	if c.recv != nil {
		c.recv(c.msgOp, c.msgBuf)
	}
	c.haveMsg = false
	c.msgBuf = nil
}

// HandleWritable implements socket.Handler: drains the outbound queue.
func (c *Conn) HandleWritable() socket.Disposition {
	for len(c.outq) > 0 {
		b := c.outq[0]
		n, err := c.raw.Write(b)
		if err != nil {
			return socket.Closed
		}
		if n < len(b) {
			c.outq[0] = b[n:]
			return socket.Continue
		}
		c.outq = c.outq[1:]
	}
	return socket.Continue
}

// HandleTimeout implements socket.Handler: fires the liveness ping.
func (c *Conn) HandleTimeout() socket.Disposition {
	if time.Now().After(c.nextPingDue()) {
		c.SendPing()
		c.lastPingAt = time.Now()
	}
	return socket.Continue
}
