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

// Package ioutils carries small I/O wrapping helpers shared by the socket
// and wsframe layers; iowrapper is the generic building block, this file
// applies it to the one concrete thing the rest of the module needs: a
// byte-counted net.Conn for the per-worker traffic figures the admin
// metrics expose.
package ioutils

import (
	"net"
	"sync/atomic"

	"github.com/CollaboraOnline/online-sub004/ioutils/iowrapper"
)

// Counters holds the running byte totals a CountedConn accumulates.
type Counters struct {
	BytesRead    atomic.Int64
	BytesWritten atomic.Int64
}

// CountedConn wraps a net.Conn so that every Read/Write updates a shared
// Counters value, without altering the data that flows through it.
type CountedConn struct {
	net.Conn
	wrap     iowrapper.IOWrapper
	counters *Counters
}

// NewCountedConn wraps conn, tallying bytes into the returned Counters.
func NewCountedConn(conn net.Conn) (*CountedConn, *Counters) {
	counters := &Counters{}
	w := iowrapper.New(conn)

	w.SetRead(func(p []byte) []byte {
		n, err := conn.Read(p)
		if n > 0 {
			counters.BytesRead.Add(int64(n))
		}
		if err != nil && n == 0 {
			return nil
		}
		return p[:n]
	})
	w.SetWrite(func(p []byte) []byte {
		n, err := conn.Write(p)
		if n > 0 {
			counters.BytesWritten.Add(int64(n))
		}
		if err != nil && n == 0 {
			return nil
		}
		return p[:n]
	})

	return &CountedConn{Conn: conn, wrap: w, counters: counters}, counters
}

// Read satisfies net.Conn via the counting wrapper instead of the embedded
// Conn directly, so every call is tallied.
func (c *CountedConn) Read(p []byte) (int, error) { return c.wrap.Read(p) }

// Write satisfies net.Conn via the counting wrapper.
func (c *CountedConn) Write(p []byte) (int, error) { return c.wrap.Write(p) }

// Counters returns the live byte totals for this connection.
func (c *CountedConn) Counters() *Counters { return c.counters }
