package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNotifierVersionMonotonic(t *testing.T) {
	n := NewNotifier()
	if n.Version() != 0 {
		t.Fatalf("fresh notifier version = %d, want 0", n.Version())
	}
	if got := n.Bump(); got != 1 {
		t.Fatalf("first bump = %d, want 1", got)
	}
	if got := n.Bump(); got != 2 {
		t.Fatalf("second bump = %d, want 2", got)
	}
}

func TestNotifierPending(t *testing.T) {
	n := NewNotifier()
	if n.Pending() {
		t.Fatal("fresh notifier should not be pending")
	}
	n.SetPending(true)
	if !n.Pending() {
		t.Fatal("expected pending")
	}
	n.SetPending(false)
	if n.Pending() {
		t.Fatal("expected not pending")
	}
}

func waitForClaim(t *testing.T, s *Scheduler, key string) (any, bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if value, ok := s.Claim(key); ok {
			return value, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, false
}

func TestSchedulerStagesAndClaims(t *testing.T) {
	n := NewNotifier()
	s := New(n, true)

	s.Precompute(context.Background(), "next-turn", func(context.Context) (any, error) {
		return 42, nil
	})

	value, ok := waitForClaim(t, s, "next-turn")
	if !ok {
		t.Fatal("expected staged result")
	}
	if value != 42 {
		t.Fatalf("claimed %v, want 42", value)
	}

	// Claiming consumes the result.
	if _, ok := s.Claim("next-turn"); ok {
		t.Fatal("claim should consume the staged result")
	}
}

func TestSchedulerDiscardsStaleResults(t *testing.T) {
	n := NewNotifier()
	s := New(n, true)

	started := make(chan struct{})
	release := make(chan struct{})
	s.Precompute(context.Background(), "next-turn", func(context.Context) (any, error) {
		close(started)
		<-release
		return 42, nil
	})

	<-started
	n.Bump() // state moved while speculation was in flight
	close(release)

	if _, ok := waitForClaim(t, s, "next-turn"); ok {
		t.Fatal("stale result must never be claimable")
	}
}

func TestSchedulerInvalidateCancelsWork(t *testing.T) {
	n := NewNotifier()
	s := New(n, true)

	var mu sync.Mutex
	var cancelled bool
	done := make(chan struct{})
	s.Precompute(context.Background(), "next-turn", func(ctx context.Context) (any, error) {
		defer close(done)
		select {
		case <-ctx.Done():
			mu.Lock()
			cancelled = true
			mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return 42, nil
		}
	})

	s.Invalidate()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if !cancelled {
		t.Fatal("invalidate should cancel in-flight work")
	}
	if _, ok := s.Claim("next-turn"); ok {
		t.Fatal("invalidate should drop staged results")
	}
}

func TestSchedulerDisabledStagesNothing(t *testing.T) {
	n := NewNotifier()
	s := New(n, false)

	s.Precompute(context.Background(), "next-turn", func(context.Context) (any, error) {
		t.Error("disabled scheduler must not run tasks")
		return nil, errors.New("unreachable")
	})

	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Claim("next-turn"); ok {
		t.Fatal("disabled scheduler must never stage results")
	}
}

func TestSchedulerFailedTaskStagesNothing(t *testing.T) {
	n := NewNotifier()
	s := New(n, true)

	done := make(chan struct{})
	s.Precompute(context.Background(), "next-turn", func(context.Context) (any, error) {
		defer close(done)
		return nil, errors.New("model unavailable")
	})

	<-done
	if _, ok := s.Claim("next-turn"); ok {
		t.Fatal("failed task must not stage a result")
	}
}
