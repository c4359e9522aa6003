package spawner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewJailIDProducesDistinctUnguessableIDs(t *testing.T) {
	a, err := NewJailID()
	if err != nil {
		t.Fatalf("NewJailID: %v", err)
	}
	b, err := NewJailID()
	if err != nil {
		t.Fatalf("NewJailID: %v", err)
	}
	if a == b {
		t.Fatal("expected two independently generated jail ids to differ")
	}
	if len(a) != 32 {
		t.Fatalf("expected a 32-character hex jail id, got %d chars: %q", len(a), a)
	}
}

func TestJailPaths_PrepareCreatesRootThenRemoveDeletesIt(t *testing.T) {
	base := t.TempDir()
	jail := JailPaths{ChildRoot: base, JailID: "deadbeefcafef00d"}

	if err := jail.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	info, err := os.Stat(jail.Root())
	if err != nil {
		t.Fatalf("expected jail root to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected jail root to be a directory")
	}
	if want := filepath.Join(base, "deadbeefcafef00d"); jail.Root() != want {
		t.Fatalf("Root() = %q, want %q", jail.Root(), want)
	}

	if err := jail.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(jail.Root()); !os.IsNotExist(err) {
		t.Fatalf("expected jail root to be gone after Remove, stat err = %v", err)
	}
}
