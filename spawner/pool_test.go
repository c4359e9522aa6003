package spawner

import (
	"io"
	"testing"

	"github.com/CollaboraOnline/online-sub004/logger"
)

func newTestSpawner(t *testing.T) *Spawner {
	t.Helper()
	log := logger.New(io.Discard, logger.InfoLevel)
	return New(log, WorkerBinary{Path: "/nonexistent/worker"}, t.TempDir(), t.TempDir(), t.TempDir(), "")
}

func TestPoolTopupIsNoopWhenTargetIsZero(t *testing.T) {
	s := newTestSpawner(t)
	p := NewPool(s, 0)

	spawned := p.Topup()
	if spawned != nil {
		t.Fatalf("expected no spawn attempts with target 0, got %d", len(spawned))
	}
	if s.Len() != 0 {
		t.Fatalf("expected Spawner to track 0 children, got %d", s.Len())
	}
}

func TestPoolSetTargetIsObservedByTopup(t *testing.T) {
	s := newTestSpawner(t)
	p := NewPool(s, 0)
	p.SetTarget(0)

	// With a target of 0, Topup must still be a no-op even after raising
	// and lowering the target back down - it never spawns speculatively.
	p.SetTarget(3)
	p.SetTarget(0)
	if spawned := p.Topup(); spawned != nil {
		t.Fatalf("expected no spawn attempts once target is lowered back to 0, got %d", len(spawned))
	}
}
