package generation

import (
	"context"
	"fmt"
	"sync"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// Scripted is a deterministic Generator for tests and offline runs. It
// offers one action option per triplet of the acting faction and rates
// progress as a fixed per-round increment.
type Scripted struct {
	// ScorePerRound is added to every triplet rating each round,
	// capped at the maximum score.
	ScorePerRound int

	mu sync.Mutex
}

// GenerateOptions implements Generator.
func (s *Scripted) GenerateOptions(_ context.Context, req OptionsRequest) ([]action.Option, error) {
	faction, ok := req.Scenario.Faction(req.Actor)
	if !ok {
		return nil, fmt.Errorf("generate options: unknown faction %q", req.Actor)
	}

	raw := make([]action.Option, 0, len(faction.Triplets)+1)
	for i, triplet := range faction.Triplets {
		raw = append(raw, action.Option{
			Text:      fmt.Sprintf("Work to close the gap: %s", triplet.Gap),
			Type:      action.TypeAction,
			Triplet:   i + 1,
			Attribute: scenario.AttributePolicy,
		})
	}
	if !req.ForceAction {
		raw = append(raw, action.Option{
			Text: fmt.Sprintf("Ask %s to elaborate on their position.", req.Counterpart),
			Type: action.TypeChat,
		})
	}
	return sanitizeOptions(req.Scenario, req.Actor, raw, req.ForceAction)
}

// AssessProgress implements Generator.
func (s *Scripted) AssessProgress(_ context.Context, req AssessmentRequest) (assessment.Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perRound := s.ScorePerRound
	if perRound <= 0 {
		perRound = 10
	}
	score := req.Round * perRound
	if score > assessment.MaxTripletScore {
		score = assessment.MaxTripletScore
	}

	breakdown := make(assessment.Breakdown, len(req.Scenario.Factions))
	for _, faction := range req.Scenario.Factions {
		scores := make([]int, len(faction.Triplets))
		for i := range scores {
			scores[i] = score
		}
		breakdown[faction.Name] = scores
	}
	if len(breakdown) == 0 {
		return nil, ErrNoAssessment
	}
	return breakdown, nil
}
