package socket_test

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/socket"
)

type echoHandler struct {
	s        *socket.Socket
	readHits int32
}

func (h *echoHandler) PollEvents(timeoutMaxMs *int) uint32 { return 0x001 } // EPOLLIN
func (h *echoHandler) HandleReadable() socket.Disposition {
	atomic.AddInt32(&h.readHits, 1)
	buf := make([]byte, 4096)
	n, err := h.s.Conn.Read(buf)
	if err != nil || n == 0 {
		return socket.Closed
	}
	return socket.Continue
}
func (h *echoHandler) HandleWritable() socket.Disposition { return socket.Continue }
func (h *echoHandler) HandleTimeout() socket.Disposition  { return socket.Continue }

func TestPollDispatchesReadable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	p, err := socket.NewPoll("test")
	if err != nil {
		t.Fatalf("NewPoll: %v", err)
	}
	defer p.Close()

	s, err := socket.New(server, nil)
	if err != nil {
		t.Fatalf("socket.New: %v", err)
	}
	h := &echoHandler{s: s}
	s.Handler = h

	p.InsertSocket(s)
	go p.Run()
	defer p.Stop()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&h.readHits) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for HandleReadable to fire")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWakeupAllSignalsEveryPoll(t *testing.T) {
	p1, err := socket.NewPoll("p1")
	if err != nil {
		t.Fatalf("NewPoll: %v", err)
	}
	defer p1.Close()
	p2, err := socket.NewPoll("p2")
	if err != nil {
		t.Fatalf("NewPoll: %v", err)
	}
	defer p2.Close()

	// WakeupAll must not block or panic even with multiple live runtimes.
	socket.WakeupAll()
}
