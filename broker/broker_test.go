package broker_test

import (
	"errors"
	"testing"

	liberr "github.com/CollaboraOnline/online-sub004/errors"

	"github.com/CollaboraOnline/online-sub004/broker"
)

func TestAddSessionAssignsIncreasingViewIDs(t *testing.T) {
	b := broker.New("k", "file:///t/a.odt", fakeStorage{}, 0)

	s1 := broker.NewClientSession("u1", "Alice", false)
	s2 := broker.NewClientSession("u2", "Bob", false)

	b.AddSession(s1)
	b.AddSession(s2)

	if s1.ViewID == s2.ViewID || s1.ViewID == 0 || s2.ViewID == 0 {
		t.Fatalf("expected distinct non-zero view ids, got %d and %d", s1.ViewID, s2.ViewID)
	}
}

func TestDispatchClientMessageQueuesWhileLoading(t *testing.T) {
	b := broker.New("k", "file:///t/a.odt", fakeStorage{}, 0)
	s := broker.NewClientSession("u1", "Alice", false)
	b.AddSession(s)

	if err := b.DispatchClientMessage(s.ID, []byte("key type=input")); err != nil {
		t.Fatalf("DispatchClientMessage while loading: %v", err)
	}
	if b.State() != broker.Loading {
		t.Fatalf("state = %v, want Loading", b.State())
	}
}

type failingStorage struct{ code liberr.Code }

func (f failingStorage) PutContents(broker.Key, []byte, string) error {
	return liberr.New(f.code, "upload", errors.New("boom"))
}
func (failingStorage) RefreshLock(broker.Key, string) error { return nil }

func TestSaveConflictTransitionsToDeadWithoutRetry(t *testing.T) {
	b := broker.New("k", "file:///t/a.odt", failingStorage{code: liberr.CodeStorageConflict}, 0)

	err := b.Save([]byte("contents"), true, false, false)
	if err == nil {
		t.Fatal("expected Save to return the storage conflict error")
	}
	if b.State() != broker.Dead {
		t.Fatalf("state = %v, want Dead after a non-retryable storage failure", b.State())
	}
}

func TestSaveTransientStaysLiveForCallerRetry(t *testing.T) {
	b := broker.New("k", "file:///t/a.odt", failingStorage{code: liberr.CodeStorageTransient}, 0)

	err := b.Save([]byte("contents"), true, false, false)
	if err == nil {
		t.Fatal("expected Save to surface the transient error")
	}
	if b.State() != broker.Live {
		t.Fatalf("state = %v, want Live so the caller can retry", b.State())
	}
}
