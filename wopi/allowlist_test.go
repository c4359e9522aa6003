package wopi_test

import (
	"testing"

	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/wopi"
)

func TestAllowListMatchesInOrder(t *testing.T) {
	storage := config.Storage{}
	storage.Wopi.Allow = true
	storage.Wopi.Host = []config.StorageHost{
		{Allow: true, Pattern: `nextcloud\.example\.com`},
		{Allow: false, Pattern: `.*`},
	}

	al, err := wopi.NewAllowList(storage)
	if err != nil {
		t.Fatalf("NewAllowList: %v", err)
	}

	if !al.Allowed("nextcloud.example.com") {
		t.Error("expected nextcloud.example.com to be allowed")
	}
	if al.Allowed("evil.example.com") {
		t.Error("expected evil.example.com to fall through to the deny-all rule")
	}
}

func TestAllowListDisabledRejectsEverything(t *testing.T) {
	al, err := wopi.NewAllowList(config.Storage{})
	if err != nil {
		t.Fatalf("NewAllowList: %v", err)
	}
	if al.Allowed("anything.example.com") {
		t.Error("expected a disabled wopi storage section to reject every host")
	}
}
