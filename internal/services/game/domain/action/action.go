// Package action models the choices a faction can take on its turn and
// the resolved outcome of taking one.
package action

import (
	"errors"
	"strings"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// OptionType discriminates between world-changing actions and table talk.
type OptionType string

const (
	// TypeAction attempts to change the state of the world. It costs
	// time and triggers a roll.
	TypeAction OptionType = "action"
	// TypeChat continues the conversation without advancing time.
	TypeChat OptionType = "chat"
	// TypeFallback marks the substituted option used when generation
	// produced nothing usable. It behaves like chat but is recorded
	// distinctly.
	TypeFallback OptionType = "fallback"
)

var (
	// ErrEmptyText indicates an option with no description.
	ErrEmptyText = errors.New("option text is required")
	// ErrUnknownType indicates an option type outside the known set.
	ErrUnknownType = errors.New("unknown option type")
)

// Option is one selectable move offered to a faction.
type Option struct {
	// Text is the natural-language description shown to the player.
	Text string
	// Type says whether choosing this advances the world or the chat.
	Type OptionType
	// Triplet is a 1-based reference to one of the acting faction's
	// triplets; zero means the option targets no triplet.
	Triplet int
	// Attribute names the capability the roll is weighed with.
	Attribute scenario.Attribute
}

// Validate checks structural invariants. Triplet range checks belong to
// the scenario, which knows each faction's triplet count.
func (o Option) Validate() error {
	if strings.TrimSpace(o.Text) == "" {
		return ErrEmptyText
	}
	switch o.Type {
	case TypeAction, TypeChat, TypeFallback:
		return nil
	default:
		return ErrUnknownType
	}
}

// IsAction reports whether choosing the option consumes world time.
func (o Option) IsAction() bool {
	return o.Type == TypeAction
}

// FallbackOption is offered when generation fails or produces nothing
// usable. It is always a safe chat continuation.
func FallbackOption() Option {
	return Option{
		Text: "Continue the discussion and probe for common ground.",
		Type: TypeFallback,
	}
}

// Attempt records everything about one resolved action, success or not.
// It is the unit the assessment pipeline and persistence layer consume.
type Attempt struct {
	Option         Option
	Actor          string
	Targets        []string
	Interactive    bool
	ActorScore     int
	PlayerScore    int
	EffectiveScore int
	Base           int
	Total          int
	Threshold      int
	Seed           int64
	Success        bool
	// CredibilityCost is charged to the actor toward each target on
	// every attempt; CredibilityGain is awarded only on success.
	CredibilityCost int
	CredibilityGain int
	// FailureText narrates the miss; empty on success.
	FailureText string
}

// Label summarizes the attempt for transcripts and logs.
func (a Attempt) Label() string {
	var b strings.Builder
	b.WriteString(a.Actor)
	if a.Success {
		b.WriteString(" succeeded: ")
	} else {
		b.WriteString(" failed: ")
	}
	b.WriteString(a.Option.Text)
	return b.String()
}
