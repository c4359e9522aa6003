package httpserver

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/logger"
)

func testLogger() logger.Logger {
	return logger.New(io.Discard, logger.NilLevel)
}

func TestListenServesPlainHTTPAndShutdownStops(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	s := New(config.Net{Listen: "127.0.0.1:0"}, config.SSL{}, handler, testLogger())
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Shutdown()

	if !s.IsRunning() {
		t.Fatal("IsRunning() = false right after Listen")
	}
	if s.IsTLS() {
		t.Fatal("IsTLS() = true, want false")
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Fatalf("body = %q, want pong", body)
	}

	s.Shutdown()
	// Shutdown is synchronous with respect to the listener; give the
	// Serve goroutine's defer a moment to flip the running flag.
	time.Sleep(10 * time.Millisecond)
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after Shutdown")
	}
}

func TestListenRejectsMissingCertPaths(t *testing.T) {
	s := New(config.Net{Listen: "127.0.0.1:0"}, config.SSL{Enable: true}, http.NewServeMux(), testLogger())
	if err := s.Listen(); err == nil {
		t.Fatal("expected Listen to fail without cert/key paths")
	}
}
