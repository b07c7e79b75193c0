// Package credibility tracks the per-faction-pair credibility resource
// over the lifetime of one execution.
//
// The matrix is the mutable runtime state seeded from the scenario's
// starting values; the ledger layers turn accounting on top: cumulative
// cost per actor/target pair, reroll counts per turn, and the gating
// policy that drops triplet references an actor can no longer afford.
package credibility

import (
	"errors"
	"log"
	"sync"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

var (
	// ErrNegativeAmount indicates a charge or award below zero.
	ErrNegativeAmount = errors.New("credibility amount must be non-negative")
)

// Matrix is the mutable runtime credibility state. It is safe for
// concurrent use.
type Matrix struct {
	mu     sync.RWMutex
	values scenario.MatrixValues
}

// NewMatrix seeds runtime state from normalized scenario values.
func NewMatrix(values scenario.MatrixValues) *Matrix {
	copied := make(scenario.MatrixValues, len(values))
	for source, targets := range values {
		row := make(map[string]int, len(targets))
		for target, value := range targets {
			row[target] = scenario.ClampCredibility(value)
		}
		copied[source] = row
	}
	return &Matrix{values: copied}
}

// Value returns the current credibility of source toward target.
// Unknown pairs read as the neutral base; the diagonal is pinned.
func (m *Matrix) Value(source, target string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valueLocked(source, target)
}

func (m *Matrix) valueLocked(source, target string) int {
	if source == target {
		return scenario.DiagonalCredibility
	}
	if row, ok := m.values[source]; ok {
		if value, ok := row[target]; ok {
			return value
		}
	}
	return scenario.DefaultBaseCredibility
}

// Adjust shifts source's credibility toward target by delta, clamped to
// the valid range, and returns the new value. The diagonal never moves.
func (m *Matrix) Adjust(source, target string, delta int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if source == target {
		return scenario.DiagonalCredibility
	}
	row, ok := m.values[source]
	if !ok {
		row = make(map[string]int)
		m.values[source] = row
	}
	current, ok := row[target]
	if !ok {
		current = scenario.DefaultBaseCredibility
	}
	next := scenario.ClampCredibility(current + delta)
	row[target] = next
	return next
}

// Snapshot returns a deep copy of the full matrix for persistence.
func (m *Matrix) Snapshot() scenario.MatrixValues {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := make(scenario.MatrixValues, len(m.values))
	for source, targets := range m.values {
		row := make(map[string]int, len(targets))
		for target, value := range targets {
			row[target] = value
		}
		copied[source] = row
	}
	return copied
}

// Ledger accumulates credibility cost and reroll attempts per turn.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	matrix  *Matrix
	cost    map[pair]int
	rerolls int
}

type pair struct {
	actor  string
	target string
}

// NewLedger wraps a runtime matrix with turn accounting.
func NewLedger(matrix *Matrix) *Ledger {
	return &Ledger{
		matrix: matrix,
		cost:   make(map[pair]int),
	}
}

// Matrix exposes the underlying runtime matrix.
func (l *Ledger) Matrix() *Matrix { return l.matrix }

// BeginTurn resets the reroll counter. Accumulated cost survives;
// spending is never refunded across turns.
func (l *Ledger) BeginTurn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rerolls = 0
}

// RecordReroll increments and returns the turn's reroll counter. The
// first attempt of a turn reads as zero.
func (l *Ledger) RecordReroll() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rerolls++
	return l.rerolls
}

// RerollCount returns the current turn's reroll attempts.
func (l *Ledger) RerollCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rerolls
}

// Charge deducts amount from actor's credibility toward each target and
// accumulates it in the ledger. Cost only ever grows.
func (l *Ledger) Charge(actor string, targets []string, amount int) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, target := range targets {
		if target == actor {
			continue
		}
		l.matrix.Adjust(actor, target, -amount)
		l.cost[pair{actor, target}] += amount
	}
	return nil
}

// Award raises actor's credibility toward each target. Awards do not
// reduce accumulated cost.
func (l *Ledger) Award(actor string, targets []string, amount int) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, target := range targets {
		if target == actor {
			continue
		}
		l.matrix.Adjust(actor, target, amount)
	}
	return nil
}

// AccumulatedCost returns the total cost charged for the actor/target
// pair over the execution so far.
func (l *Ledger) AccumulatedCost(actor, target string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cost[pair{actor, target}]
}

// TotalCost sums cost across all pairs for the actor.
func (l *Ledger) TotalCost(actor string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for key, value := range l.cost {
		if key.actor == actor {
			total += value
		}
	}
	return total
}

// GateTripletRef applies credibility-based gating to an action's triplet
// reference. When the actor cannot afford the stake toward every target,
// the reference is cleared with a warning instead of blocking the turn.
func (l *Ledger) GateTripletRef(actor string, targets []string, stake, tripletRef int) int {
	if tripletRef == 0 {
		return 0
	}
	for _, target := range targets {
		if target == actor {
			continue
		}
		if l.matrix.Value(actor, target) < stake {
			log.Printf("warning: %s lacks credibility toward %s (have %d, need %d); clearing triplet ref %d",
				actor, target, l.matrix.Value(actor, target), stake, tripletRef)
			return 0
		}
	}
	return tripletRef
}
