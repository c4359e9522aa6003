package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CollaboraOnline/online-sub004/admin"
	"github.com/CollaboraOnline/online-sub004/broker"
	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/socket"
	"github.com/CollaboraOnline/online-sub004/wopi"
)

func testDeps(t *testing.T) Deps {
	t.Helper()

	reg := prometheus.NewRegistry()
	cfg := config.Default()

	allow, err := wopi.NewAllowList(cfg.Storage)
	if err != nil {
		t.Fatalf("NewAllowList: %v", err)
	}

	poll, err := socket.NewPoll("test")
	if err != nil {
		t.Fatalf("NewPoll: %v", err)
	}
	t.Cleanup(func() { _ = poll.Close() })

	return Deps{
		Config:  cfg,
		Log:     testLogger(),
		Metrics: admin.NewMetrics(reg),
		Reg:     reg,
		Brokers: broker.NewRegistry(),
		WopiCli: wopi.NewClient(nil, 1, 0),
		Allow:   allow,
		Poll:    poll,
	}
}

func TestDiscoveryHandlerReturnsWopiDiscoveryXML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/hosting/discovery", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml; charset=utf-8" {
		t.Fatalf("content-type = %q", ct)
	}
	if !containsAll(w.Body.String(), "<wopi-discovery>", "net-zone", "action") {
		t.Fatalf("unexpected discovery body: %s", w.Body.String())
	}
}

func TestWsUpgradeHandlerRejectsNonUpgradeRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/lool/ws?WOPISrc=https://example.test/files/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWsUpgradeHandlerRequiresWopiSrc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/lool/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAdminStatusHandlerRequiresAuthWhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := testDeps(t)
	d.Config.Admin.Enable = true
	encoded, err := admin.HashPassword("s3cr3t")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	d.Config.Admin.SecurePassword = encoded
	r := NewRouter(d)

	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without credentials = %d, want 401", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	req2.SetBasicAuth("admin", "s3cr3t")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("status with valid credentials = %d, want 200", w2.Code)
	}
}

func TestAdminStatusHandlerNotFoundWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
