package scheduler

import (
	"context"
	"log"
	"sync"
)

// Task computes a speculative result for one state version. The context
// is cancelled when the result is known to be stale; cancellation is
// advisory and late results are simply discarded.
type Task func(ctx context.Context) (any, error)

// Scheduler runs speculative work keyed by state version. A staged
// result is only handed out if the game state has not moved since the
// work was started, so speculation can never change observable
// outcomes, only latency.
type Scheduler struct {
	notifier *Notifier
	enabled  bool

	mu     sync.Mutex
	staged map[string]stagedResult
	cancel map[string]context.CancelFunc
}

type stagedResult struct {
	version int64
	value   any
}

// New builds a scheduler bound to the notifier's state version. A
// disabled scheduler stages nothing and Claim always misses.
func New(notifier *Notifier, enabled bool) *Scheduler {
	return &Scheduler{
		notifier: notifier,
		enabled:  enabled,
		staged:   make(map[string]stagedResult),
		cancel:   make(map[string]context.CancelFunc),
	}
}

// Enabled reports whether speculation is active.
func (s *Scheduler) Enabled() bool { return s.enabled }

// Precompute runs task in the background, staging its result under key
// for the current state version. Starting a new task for a key cancels
// the previous one.
func (s *Scheduler) Precompute(ctx context.Context, key string, task Task) {
	if !s.enabled {
		return
	}
	version := s.notifier.Version()

	taskCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if prev, ok := s.cancel[key]; ok {
		prev()
	}
	s.cancel[key] = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		value, err := task(taskCtx)
		if err != nil {
			if taskCtx.Err() == nil {
				log.Printf("warning: speculative computation %s failed: %v", key, err)
			}
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.notifier.Version() != version {
			return
		}
		s.staged[key] = stagedResult{version: version, value: value}
	}()
}

// Claim returns the staged result for key if it was computed against
// the current state version. Stale results are dropped on sight.
func (s *Scheduler) Claim(key string) (any, bool) {
	if !s.enabled {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.staged[key]
	if !ok {
		return nil, false
	}
	delete(s.staged, key)
	if result.version != s.notifier.Version() {
		return nil, false
	}
	return result.value, true
}

// Invalidate drops all staged results and cancels in-flight work.
// Called when the observable game state changes.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cancel := range s.cancel {
		cancel()
		delete(s.cancel, key)
	}
	for key := range s.staged {
		delete(s.staged, key)
	}
}
