package broker_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/broker"
)

type fakeStorage struct{}

func (fakeStorage) PutContents(broker.Key, []byte, string) error { return nil }
func (fakeStorage) RefreshLock(broker.Key, string) error         { return nil }

func TestGetOrCreateReturnsSameBrokerForConcurrentCallers(t *testing.T) {
	reg := broker.NewRegistry()
	key := broker.Key("file:///t/hello.odt")

	var created int32
	var wg sync.WaitGroup
	results := make([]*broker.DocumentBroker, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.GetOrCreate(key, func() *broker.DocumentBroker {
				atomic.AddInt32(&created, 1)
				return broker.New(key, string(key), fakeStorage{}, 0)
			})
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("broker constructed %d times, want exactly 1 (at-most-one-worker invariant)", created)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d observed a different broker instance", i)
		}
	}
}

func TestGetOrCreateWaitsOutDeadBrokerBeforeReplacing(t *testing.T) {
	reg := broker.NewRegistry()
	key := broker.Key("file:///t/hello.odt")

	first := reg.GetOrCreate(key, func() *broker.DocumentBroker {
		return broker.New(key, string(key), fakeStorage{}, 0)
	})
	first.MarkWorkerDead()

	done := make(chan *broker.DocumentBroker, 1)
	go func() {
		done <- reg.GetOrCreate(key, func() *broker.DocumentBroker {
			return broker.New(key, string(key), fakeStorage{}, 0)
		})
	}()

	select {
	case <-done:
		t.Fatal("GetOrCreate returned before the dead broker was removed")
	case <-time.After(50 * time.Millisecond):
	}

	reg.Remove(key)

	select {
	case second := <-done:
		if second == first {
			t.Fatal("expected a fresh broker after the dead one was removed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GetOrCreate to unblock after Remove")
	}
}
