// Package generation produces response options and progress assessments
// for factions, backed by a language model with a scripted stand-in for
// tests and offline runs.
package generation

import (
	"context"
	"errors"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// MaxOptions caps how many options one generation pass returns.
const MaxOptions = 3

var (
	// ErrNoOptions indicates a generation pass that produced nothing
	// usable. Callers substitute the fallback option.
	ErrNoOptions = errors.New("no usable options generated")
	// ErrNoAssessment indicates an assessment pass without ratings.
	ErrNoAssessment = errors.New("no assessment produced")
)

// OptionsRequest describes one option-generation call.
type OptionsRequest struct {
	Scenario scenario.Scenario
	// Actor is the faction the options are generated for.
	Actor string
	// Counterpart is the faction the actor is talking to.
	Counterpart string
	// History is the conversation so far, oldest first.
	History []string
	// ForceAction excludes chat options, ending a drawn-out exchange.
	ForceAction bool
}

// AssessmentRequest describes one progress-assessment call.
type AssessmentRequest struct {
	Scenario scenario.Scenario
	Round    int
	// History is the full action/chat transcript, oldest first.
	History []string
}

// Generator produces options and assessments. Implementations must be
// safe for concurrent use across executions.
type Generator interface {
	GenerateOptions(ctx context.Context, req OptionsRequest) ([]action.Option, error)
	AssessProgress(ctx context.Context, req AssessmentRequest) (assessment.Breakdown, error)
}

// sanitizeOptions validates, clamps, and caps raw generated options.
// An empty result after filtering maps to ErrNoOptions.
func sanitizeOptions(s scenario.Scenario, actor string, raw []action.Option, forceAction bool) ([]action.Option, error) {
	options := make([]action.Option, 0, MaxOptions)
	for _, option := range raw {
		if option.Validate() != nil {
			continue
		}
		if forceAction && !option.IsAction() {
			continue
		}
		option.Triplet = s.ClampTripletRef(actor, option.Triplet)
		options = append(options, option)
		if len(options) == MaxOptions {
			break
		}
	}
	if len(options) == 0 {
		return nil, ErrNoOptions
	}
	return options, nil
}
