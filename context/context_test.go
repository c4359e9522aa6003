package context

import (
	"context"
	"testing"
)

func TestNewDefaultsToBackgroundWhenContextIsNil(t *testing.T) {
	cfg := New[string](nil)
	if cfg.GetContext() == nil {
		t.Fatal("GetContext returned nil")
	}
	if cfg.Err() != nil {
		t.Fatalf("Err() = %v, want nil", cfg.Err())
	}
}

func TestStoreLoadDeleteRoundTrip(t *testing.T) {
	cfg := New[string](nil)

	if _, ok := cfg.Load("missing"); ok {
		t.Fatal("Load on empty config should miss")
	}

	cfg.Store("k", 42)
	v, ok := cfg.Load("k")
	if !ok || v != 42 {
		t.Fatalf("Load(k) = %v, %v, want 42, true", v, ok)
	}

	cfg.Delete("k")
	if _, ok := cfg.Load("k"); ok {
		t.Fatal("key should be gone after Delete")
	}
}

func TestStoringNilValueIsANoop(t *testing.T) {
	cfg := New[string](nil)
	cfg.Store("k", nil)
	if _, ok := cfg.Load("k"); ok {
		t.Fatal("storing nil should not create a key")
	}
}

func TestLoadOrStoreAndLoadAndDelete(t *testing.T) {
	cfg := New[string](nil)

	v, loaded := cfg.LoadOrStore("k", 1)
	if loaded || v != 1 {
		t.Fatalf("first LoadOrStore = %v, %v, want 1, false", v, loaded)
	}

	v, loaded = cfg.LoadOrStore("k", 2)
	if !loaded || v != 1 {
		t.Fatalf("second LoadOrStore = %v, %v, want 1, true", v, loaded)
	}

	v, loaded = cfg.LoadAndDelete("k")
	if !loaded || v != 1 {
		t.Fatalf("LoadAndDelete = %v, %v, want 1, true", v, loaded)
	}
	if _, ok := cfg.Load("k"); ok {
		t.Fatal("key should be gone after LoadAndDelete")
	}
}

func TestWalkVisitsEveryEntryAndWalkLimitFilters(t *testing.T) {
	cfg := New[string](nil)
	cfg.Store("a", 1)
	cfg.Store("b", 2)
	cfg.Store("c", 3)

	seen := map[string]interface{}{}
	cfg.Walk(func(k string, v interface{}) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("Walk saw %d entries, want 3", len(seen))
	}

	limited := map[string]interface{}{}
	cfg.WalkLimit(func(k string, v interface{}) bool {
		limited[k] = v
		return true
	}, "a", "c")
	if len(limited) != 2 {
		t.Fatalf("WalkLimit saw %d entries, want 2", len(limited))
	}
	if _, ok := limited["b"]; ok {
		t.Fatal("WalkLimit should have excluded b")
	}
}

func TestCloneCopiesEntriesIntoAnIndependentMap(t *testing.T) {
	cfg := New[string](nil)
	cfg.Store("k", 1)

	clone := cfg.Clone(nil)
	clone.Store("k", 2)

	if v, _ := cfg.Load("k"); v != 1 {
		t.Fatalf("original mutated by clone: Load(k) = %v, want 1", v)
	}
	if v, _ := clone.Load("k"); v != 2 {
		t.Fatalf("Load(k) on clone = %v, want 2", v)
	}
}

func TestMergeCopiesSourceEntriesIn(t *testing.T) {
	a := New[string](nil)
	a.Store("a", 1)

	b := New[string](nil)
	b.Store("b", 2)

	if !a.Merge(b) {
		t.Fatal("Merge returned false")
	}
	if v, ok := a.Load("b"); !ok || v != 2 {
		t.Fatalf("a.Load(b) = %v, %v, want 2, true", v, ok)
	}
}

func TestMergeWithNilConfigFails(t *testing.T) {
	a := New[string](nil)
	if a.Merge(nil) {
		t.Fatal("Merge(nil) should return false")
	}
}

func TestValueFallsBackToUnderlyingContext(t *testing.T) {
	type ctxKey string
	parent := context.WithValue(context.Background(), ctxKey("outside"), "parent-value")

	cfg := New[string](parent)
	if got := cfg.Value(ctxKey("outside")); got != "parent-value" {
		t.Fatalf("Value(outside) = %v, want parent-value", got)
	}

	cfg.Store("inside", "config-value")
	if got := cfg.Value("inside"); got != "config-value" {
		t.Fatalf("Value(inside) = %v, want config-value", got)
	}
}
