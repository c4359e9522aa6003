package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/config"
)

const sample = `<?xml version="1.0"?>
<config>
  <ssl enable="true">
    <cert_file_path>/etc/cool/cert.pem</cert_file_path>
    <key_file_path>/etc/cool/key.pem</key_file_path>
  </ssl>
  <storage>
    <filesystem allow="false"></filesystem>
    <wopi allow="true">
      <host allow="true">https://nextcloud\.example\.com</host>
    </wopi>
  </storage>
  <net>
    <listen>:9980</listen>
    <service_root>/cool</service_root>
  </net>
  <logging level="warn"></logging>
  <num_prespawn_children>4</num_prespawn_children>
  <per_document>
    <idle_timeout_secs>1800</idle_timeout_secs>
    <autosave_duration_secs>120</autosave_duration_secs>
  </per_document>
</config>`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "coolwsd.xml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatalf("writing sample config: %v", err)
	}
	return path
}

func TestLoadParsesDocument(t *testing.T) {
	path := writeSample(t)

	root, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !root.SSL.Enable {
		t.Errorf("expected ssl enabled")
	}
	if root.NumPreSpawnChildren != 4 {
		t.Errorf("NumPreSpawnChildren = %d, want 4", root.NumPreSpawnChildren)
	}
	if root.Net.Listen != ":9980" {
		t.Errorf("Net.Listen = %q, want :9980", root.Net.Listen)
	}
	if len(root.Storage.Wopi.Host) != 1 || !root.Storage.Wopi.Host[0].Allow {
		t.Errorf("expected one allowed wopi host, got %+v", root.Storage.Wopi.Host)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	root, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if root.Net.Listen != config.Default().Net.Listen {
		t.Errorf("expected default listen address")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeSample(t)

	w, err := config.NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	seen := make(chan *config.Root, 1)
	w.OnReload(func(r *config.Root) error {
		seen <- r
		return nil
	})

	go w.Run()

	updated := []byte(`<?xml version="1.0"?><config><net><listen>:9999</listen></net></config>`)
	if err := os.WriteFile(path, updated, 0644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case r := <-seen:
		if r.Net.Listen != ":9999" {
			t.Errorf("reloaded listen = %q, want :9999", r.Net.Listen)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}
