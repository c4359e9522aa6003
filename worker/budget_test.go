package worker

import (
	"context"
	"testing"
	"time"
)

func TestRenderBudgetAllowsBurstThenThrottles(t *testing.T) {
	b := NewRenderBudget(1, 2)

	if !b.Allow() {
		t.Fatal("first tile in burst should be allowed")
	}
	if !b.Allow() {
		t.Fatal("second tile in burst should be allowed")
	}
	if b.Allow() {
		t.Fatal("third tile should exceed the burst and be denied")
	}
}

func TestRenderBudgetWaitRespectsContextCancellation(t *testing.T) {
	b := NewRenderBudget(0.001, 1)
	b.Allow() // drain the single burst slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := b.Wait(ctx); err == nil {
		t.Fatal("expected Wait to time out before the budget refills")
	}
}
