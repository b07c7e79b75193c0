// Package roll resolves action attempts against a success threshold.
//
// The base chance mechanic is pluggable so alternative dice pools or
// scripted outcomes can be swapped in; the default strategy rolls two
// six-sided dice. Rolls are deterministic with respect to the seed on
// Input, so a recorded seed replays to the same outcome.
package roll

import (
	"errors"
	"math/rand"
)

// Die sides and count for the default strategy.
const (
	defaultDieSides = 6
	defaultDieCount = 2
)

var (
	// ErrInvalidThreshold indicates a non-positive success threshold.
	ErrInvalidThreshold = errors.New("success threshold must be positive")
)

// Input carries everything a strategy needs to resolve one attempt.
type Input struct {
	// ActorScore is the initiating faction's score for the action's
	// attribute, already clamped to [0, 10].
	ActorScore int
	// PlayerScore is the player faction's score for the same attribute.
	// It only contributes when Interactive is true.
	PlayerScore int
	// Interactive marks attempts made by a human-controlled faction.
	Interactive bool
	// Threshold is the minimum total that counts as success.
	Threshold int
	// Seed drives the pseudo-random base roll.
	Seed int64
}

// Result is the outcome of one resolved attempt.
type Result struct {
	// Base is the raw dice total before modifiers.
	Base int
	// Modifier is the sum of attribute contributions applied to Base.
	Modifier int
	// Total is Base plus Modifier.
	Total int
	// Success reports whether Total met the threshold. Ties succeed.
	Success bool
}

// Strategy resolves an attempt into a Result.
type Strategy interface {
	Resolve(input Input) (Result, error)
}

// TwoDice is the default strategy: the base roll is 2d6, the modifier is
// the actor's attribute score, plus the player's score for interactive
// attempts.
type TwoDice struct{}

// Resolve implements Strategy.
func (TwoDice) Resolve(input Input) (Result, error) {
	if input.Threshold <= 0 {
		return Result{}, ErrInvalidThreshold
	}

	rng := rand.New(rand.NewSource(input.Seed))
	base := 0
	for i := 0; i < defaultDieCount; i++ {
		base += rng.Intn(defaultDieSides) + 1
	}

	modifier := input.ActorScore
	if input.Interactive {
		modifier += input.PlayerScore
	}

	total := base + modifier
	return Result{
		Base:     base,
		Modifier: modifier,
		Total:    total,
		Success:  total >= input.Threshold,
	}, nil
}

// Fixed always produces the same base roll. It exists for scripted
// playthroughs and tests that need forced successes or failures.
type Fixed struct {
	Base int
}

// Resolve implements Strategy.
func (f Fixed) Resolve(input Input) (Result, error) {
	if input.Threshold <= 0 {
		return Result{}, ErrInvalidThreshold
	}

	modifier := input.ActorScore
	if input.Interactive {
		modifier += input.PlayerScore
	}

	total := f.Base + modifier
	return Result{
		Base:     f.Base,
		Modifier: modifier,
		Total:    total,
		Success:  total >= input.Threshold,
	}, nil
}

// MinBase and MaxBase bound the default strategy's base roll.
func MinBase() int { return defaultDieCount }
func MaxBase() int { return defaultDieCount * defaultDieSides }
