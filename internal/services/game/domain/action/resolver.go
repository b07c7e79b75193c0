package action

import (
	"fmt"

	"github.com/balazsbme/futurehuman/internal/platform/random"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/roll"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// Flat credibility stakes for a resolved action.
const (
	DefaultCredibilityCost = 20
	DefaultCredibilityGain = 20
)

// Resolver turns a chosen action option into a resolved Attempt.
type Resolver struct {
	Scenario  scenario.Scenario
	Strategy  roll.Strategy
	Threshold int
	// NewSeed produces the seed for each attempt. Defaults to
	// crypto-random seeds; tests inject a fixed generator.
	NewSeed func() (int64, error)
}

// NewResolver builds a resolver with the default dice strategy.
func NewResolver(s scenario.Scenario, threshold int) *Resolver {
	return &Resolver{
		Scenario:  s,
		Strategy:  roll.TwoDice{},
		Threshold: threshold,
		NewSeed:   random.NewSeed,
	}
}

// Resolve rolls the option for actor against targets.
//
// The actor's attribute score weighs the roll; when the actor is the
// interactive player faction, the player score is the actor score and
// counts once more. Out-of-range triplet references are cleared before
// the attempt is recorded.
func (r *Resolver) Resolve(actor string, option Option, targets []string, interactive bool) (Attempt, error) {
	if err := option.Validate(); err != nil {
		return Attempt{}, fmt.Errorf("validate option: %w", err)
	}
	faction, ok := r.Scenario.Faction(actor)
	if !ok {
		return Attempt{}, fmt.Errorf("resolve action: unknown faction %q", actor)
	}

	option.Triplet = r.Scenario.ClampTripletRef(actor, option.Triplet)

	seed, err := r.newSeed()
	if err != nil {
		return Attempt{}, fmt.Errorf("resolve action: %w", err)
	}

	actorScore := faction.AttributeScore(option.Attribute)
	playerScore := 0
	if interactive {
		playerScore = actorScore
	}

	result, err := r.strategy().Resolve(roll.Input{
		ActorScore:  actorScore,
		PlayerScore: playerScore,
		Interactive: interactive,
		Threshold:   r.Threshold,
		Seed:        seed,
	})
	if err != nil {
		return Attempt{}, fmt.Errorf("resolve action: %w", err)
	}

	attempt := Attempt{
		Option:          option,
		Actor:           actor,
		Targets:         append([]string(nil), targets...),
		Interactive:     interactive,
		ActorScore:      actorScore,
		PlayerScore:     playerScore,
		EffectiveScore:  result.Modifier,
		Base:            result.Base,
		Total:           result.Total,
		Threshold:       r.Threshold,
		Seed:            seed,
		Success:         result.Success,
		CredibilityCost: DefaultCredibilityCost,
		CredibilityGain: DefaultCredibilityGain,
	}
	if !attempt.Success {
		attempt.FailureText = fmt.Sprintf(
			"%s attempted %q but fell short (rolled %d + %d against %d).",
			actor, option.Text, result.Base, result.Modifier, r.Threshold,
		)
	}
	return attempt, nil
}

func (r *Resolver) strategy() roll.Strategy {
	if r.Strategy == nil {
		return roll.TwoDice{}
	}
	return r.Strategy
}

func (r *Resolver) newSeed() (int64, error) {
	if r.NewSeed == nil {
		return random.NewSeed()
	}
	return r.NewSeed()
}
