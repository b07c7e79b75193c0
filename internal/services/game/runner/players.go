// Package runner plays sequences of automated games against the engine
// for evaluation: no human in the loop, deterministic players, optional
// persistence.
package runner

import (
	"math/rand"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
)

// Player selects a faction to act as each turn and then chooses one of
// the offered options.
type Player interface {
	Name() string
	ChooseFaction(factions []string) string
	Choose(options []action.Option) action.Option
}

// RandomPlayer picks uniformly among factions and offered options.
type RandomPlayer struct {
	rng *rand.Rand
}

// NewRandomPlayer seeds a deterministic random player.
func NewRandomPlayer(seed int64) *RandomPlayer {
	return &RandomPlayer{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPlayer) Name() string { return "random" }

func (p *RandomPlayer) ChooseFaction(factions []string) string {
	if len(factions) == 0 {
		return ""
	}
	return factions[p.rng.Intn(len(factions))]
}

func (p *RandomPlayer) Choose(options []action.Option) action.Option {
	if len(options) == 0 {
		return action.FallbackOption()
	}
	return options[p.rng.Intn(len(options))]
}

// ActionFirstPlayer always acts as the first faction and prefers a
// world-changing action, falling back to the first option when none is
// offered.
type ActionFirstPlayer struct{}

func (ActionFirstPlayer) Name() string { return "action-first" }

func (ActionFirstPlayer) ChooseFaction(factions []string) string {
	if len(factions) == 0 {
		return ""
	}
	return factions[0]
}

func (ActionFirstPlayer) Choose(options []action.Option) action.Option {
	if len(options) == 0 {
		return action.FallbackOption()
	}
	for _, option := range options {
		if option.IsAction() {
			return option
		}
	}
	return options[0]
}

// NewPlayer resolves a player by name, defaulting to action-first.
func NewPlayer(name string, seed int64) Player {
	switch name {
	case "random":
		return NewRandomPlayer(seed)
	default:
		return ActionFirstPlayer{}
	}
}
