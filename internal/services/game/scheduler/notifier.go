// Package scheduler provides the progress notifier and the speculative
// background computation used to hide generation latency.
package scheduler

import "sync/atomic"

// Notifier tracks a monotonically increasing state version and whether
// an assessment is in flight. It is safe for concurrent use and feeds
// the polling protocol.
type Notifier struct {
	version atomic.Int64
	pending atomic.Bool
}

// NewNotifier starts at version zero with no pending assessment.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Bump increments and returns the state version. Called on every
// committed action or assessment.
func (n *Notifier) Bump() int64 {
	return n.version.Add(1)
}

// Version returns the current state version.
func (n *Notifier) Version() int64 {
	return n.version.Load()
}

// SetPending marks whether resolution or assessment is in flight.
func (n *Notifier) SetPending(pending bool) {
	n.pending.Store(pending)
}

// Pending reports whether an assessment is in flight.
func (n *Notifier) Pending() bool {
	return n.pending.Load()
}
