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

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

const defaultTimeoutMs = 1000

// Poll is one cooperative, single-goroutine epoll(7) event loop. Its zero
// value is not usable; construct with NewPoll. InsertSocket, PostCallback,
// Wakeup and Stop are safe to call from outside the loop's own
// goroutine - the socket-handling methods assume the caller is running inside
// Run, mirroring the "handler only runs on its owning thread" invariant.
type Poll struct {
	name string
	epfd int

	mu        sync.Mutex
	byFD      map[int]*Socket
	inserted  []*Socket
	callbacks []func()

	wakeR, wakeW int // ends of the self-pipe used for cross-thread Wakeup

	stop chan struct{}
	once sync.Once
}

// NewPoll creates a runtime identified by name (used only in logging); it is
// not yet running until Run (or StartThread) is called.
func NewPoll(name string) (*Poll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("socket: epoll_create1: %w", err)
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("socket: pipe2: %w", err)
	}

	p := &Poll{
		name:  name,
		epfd:  epfd,
		byFD:  make(map[int]*Socket),
		wakeR: fds[0],
		wakeW: fds[1],
		stop:  make(chan struct{}),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(p.wakeR)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, p.wakeR, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, fmt.Errorf("socket: registering wakeup pipe: %w", err)
	}
	register(p)
	return p, nil
}

// StartThread spawns a goroutine that calls Run until Stop is requested.
func (p *Poll) StartThread() {
	go p.Run()
}

// Stop requests the loop to exit; it finishes its current iteration and
// returns from Run. Safe to call from any goroutine.
func (p *Poll) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.Wakeup()
}

// Wakeup is signal-safe in spirit: it writes one byte to the internal pipe
// so a blocked epoll_wait returns promptly. Safe from any goroutine.
func (p *Poll) Wakeup() {
	var b [1]byte
	_, _ = unix.Write(p.wakeW, b[:])
}

// InsertSocket schedules s for management. Ownership transfers to this Poll
// at the next iteration, from whichever goroutine called InsertSocket.
func (p *Poll) InsertSocket(s *Socket) {
	p.mu.Lock()
	p.inserted = append(p.inserted, s)
	p.mu.Unlock()
	p.Wakeup()
}

// PostCallback requests fn run inside the loop's own goroutine at the next
// wakeup - the only sanctioned way to touch loop-owned state from another
// goroutine besides InsertSocket.
func (p *Poll) PostCallback(fn func()) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
	p.Wakeup()
}

// ReleaseSocket removes s from management without closing its descriptor.
// Must only be called from the loop's own goroutine.
func (p *Poll) ReleaseSocket(s *Socket) {
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, s.fd, nil)
	delete(p.byFD, s.fd)
}

// Run executes iterations until Stop is called.
func (p *Poll) Run() error {
	for {
		select {
		case <-p.stop:
			return nil
		default:
		}
		if err := p.iterate(); err != nil {
			return err
		}
	}
}

// iterate performs one pass of the algorithm: compute the aggregate
// timeout from every handler's PollEvents, block in epoll_wait, dispatch
// readable/writable/timeout to whichever handler owns the fd that fired,
// drain the wakeup pipe, then splice in sockets inserted since the last
// pass and run queued callbacks.
func (p *Poll) iterate() error {
	timeoutMs := defaultTimeoutMs

	p.mu.Lock()
	for _, s := range p.byFD {
		mask := s.Handler.PollEvents(&timeoutMs)
		ev := unix.EpollEvent{Events: mask | unix.EPOLLERR | unix.EPOLLHUP, Fd: int32(s.fd)}
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, s.fd, &ev)
	}
	p.mu.Unlock()

	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(p.epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("socket: epoll_wait: %w", err)
	}

	fired := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == p.wakeR {
			p.drainWakePipe()
			continue
		}
		fired[fd] = true
		p.dispatch(fd, events[i].Events)
	}

	if n == 0 {
		p.dispatchTimeouts()
	}

	p.drainInserts()
	p.drainCallbacks()
	return nil
}

func (p *Poll) dispatch(fd int, mask uint32) {
	p.mu.Lock()
	s, ok := p.byFD[fd]
	p.mu.Unlock()
	if !ok {
		return
	}

	var disp Disposition
	if mask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		disp = s.Handler.HandleReadable()
	}
	if disp == Continue && mask&unix.EPOLLOUT != 0 {
		disp = s.Handler.HandleWritable()
	}
	p.apply(s, disp)
}

func (p *Poll) dispatchTimeouts() {
	p.mu.Lock()
	sockets := make([]*Socket, 0, len(p.byFD))
	for _, s := range p.byFD {
		sockets = append(sockets, s)
	}
	p.mu.Unlock()

	for _, s := range sockets {
		p.apply(s, s.Handler.HandleTimeout())
	}
}

func (p *Poll) drainWakePipe() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *Poll) apply(s *Socket, disp Disposition) {
	switch disp {
	case Closed:
		p.ReleaseSocket(s)
		_ = unix.Close(s.fd)
	case Moved:
		p.ReleaseSocket(s)
	case Continue:
	}
}

func (p *Poll) drainInserts() {
	p.mu.Lock()
	ins := p.inserted
	p.inserted = nil
	p.mu.Unlock()

	for _, s := range ins {
		s.setOwner(p)
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(s.fd)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, s.fd, &ev); err != nil {
			continue
		}
		p.mu.Lock()
		p.byFD[s.fd] = s
		p.mu.Unlock()
	}
}

func (p *Poll) drainCallbacks() {
	p.mu.Lock()
	cbs := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, fn := range cbs {
		fn()
	}
}

// Name returns the runtime's diagnostic name.
func (p *Poll) Name() string { return p.name }

// Len reports how many sockets this Poll currently owns, for admin/test use.
func (p *Poll) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byFD)
}

// Close releases the epoll instance and wakeup pipe. Call after Run has
// returned.
func (p *Poll) Close() error {
	unregister(p)
	unix.Close(p.wakeR)
	unix.Close(p.wakeW)
	return unix.Close(p.epfd)
}
