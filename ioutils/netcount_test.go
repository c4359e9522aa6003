package ioutils

import (
	"net"
	"testing"
	"time"
)

func TestCountedConnTalliesReadAndWrittenBytes(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	counted, counters := NewCountedConn(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := counted.Read(buf)
		if err != nil {
			t.Errorf("Read: %v", err)
			return
		}
		if n != 5 {
			t.Errorf("Read n = %d, want 5", n)
		}
	}()

	if _, err := server.Write([]byte("hello")); err != nil {
		t.Fatalf("server.Write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read")
	}

	if got := counters.BytesRead.Load(); got != 5 {
		t.Fatalf("BytesRead = %d, want 5", got)
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		buf := make([]byte, 3)
		if _, err := server.Read(buf); err != nil {
			t.Errorf("server.Read: %v", err)
		}
	}()

	if _, err := counted.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write to be observed")
	}

	if got := counters.BytesWritten.Load(); got != 3 {
		t.Fatalf("BytesWritten = %d, want 3", got)
	}
}
