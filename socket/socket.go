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

// Package socket drives all non-blocking network I/O through a single
// cooperative epoll(7) loop per runtime instance. A process runs many Poll
// instances side by side - one for the gateway's client-facing listener, one
// for its admin endpoint, one per worker pipe pair - and every Socket is
// owned by exactly one of them at a time.
package socket

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	// DefaultSendBufferSize is the starting SO_SNDBUF request size.
	DefaultSendBufferSize = 16 * 1024
	// MaximumSendBufferSize caps the value SetSendBufferSize clamps to.
	MaximumSendBufferSize = 128 * 1024
)

// Disposition tells a Poll loop what to do with a Socket after its handler
// has run for one iteration.
type Disposition int

const (
	// Continue keeps the socket under this Poll's management.
	Continue Disposition = iota
	// Closed removes the socket; the loop closes its underlying fd.
	Closed
	// Moved removes the socket from this Poll without closing it - a
	// handler already arranged for another Poll to adopt it.
	Moved
)

// Handler is implemented once per protocol this runtime speaks: the
// WebSocket framer is one implementation, a plain HTTP request reader is
// another. Handlers must never block - the one goroutine driving a Poll
// services every socket it owns.
type Handler interface {
	// PollEvents returns the EPOLLIN/EPOLLOUT mask this socket currently
	// wants, and may lower timeoutMaxMs to express its own deadline (e.g.
	// the next ping tick).
	PollEvents(timeoutMaxMs *int) uint32

	// HandleReadable is invoked when EPOLLIN fired for this socket.
	HandleReadable() Disposition
	// HandleWritable is invoked when EPOLLOUT fired for this socket.
	HandleWritable() Disposition
	// HandleTimeout is invoked when no event arrived before the
	// handler's own requested deadline elapsed.
	HandleTimeout() Disposition
}

// Socket pairs a raw, non-blocking file descriptor with the Handler driving
// it and the bookkeeping a Poll needs: buffer sizing and the owning loop.
type Socket struct {
	Conn    net.Conn
	Handler Handler

	fd int

	mu          sync.Mutex
	sendBufSize int
	owner       *Poll
}

// New puts conn into non-blocking mode, extracts its raw descriptor, and
// pairs it with h. conn must wrap a *net.TCPConn or *net.UnixConn (anything
// whose SyscallConn exposes a raw fd); this is true for every listener the
// gateway, spawner and worker pipes use.
func New(conn net.Conn, h Handler) (*Socket, error) {
	raw, err := rawFD(conn)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(raw, true); err != nil {
		return nil, fmt.Errorf("socket: set nonblocking: %w", err)
	}
	return &Socket{Conn: conn, Handler: h, fd: raw, sendBufSize: DefaultSendBufferSize}, nil
}

// FD returns the OS-native descriptor, mirroring Socket::getFD in the
// source design.
func (s *Socket) FD() int { return s.fd }

// SetNoDelay toggles TCP_NODELAY for a TCP-backed socket; harmless no-op
// otherwise (unix-domain pipes have no Nagle algorithm to disable).
func (s *Socket) SetNoDelay(noDelay bool) {
	if tc, ok := s.Conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(noDelay)
	}
}

// SetSendBufferSize requests a kernel send-buffer size, clamping to
// MaximumSendBufferSize as the source implementation does.
func (s *Socket) SetSendBufferSize(size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size > MaximumSendBufferSize {
		size = MaximumSendBufferSize
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size); err != nil {
		s.sendBufSize = DefaultSendBufferSize
		return err
	}
	s.sendBufSize = size
	return nil
}

// SendBufferSize returns the cached send-buffer size.
func (s *Socket) SendBufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendBufSize
}

func (s *Socket) setOwner(p *Poll) {
	s.mu.Lock()
	s.owner = p
	s.mu.Unlock()
}

// Owner returns the Poll currently responsible for this socket, or nil if
// it has not yet been adopted by one.
func (s *Socket) Owner() *Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func rawFD(conn net.Conn) (int, error) {
	sc, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return 0, fmt.Errorf("socket: %T does not expose a raw file descriptor", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	cerr := raw.Control(func(p uintptr) { fd = int(p) })
	if cerr != nil {
		return 0, cerr
	}
	return fd, nil
}
