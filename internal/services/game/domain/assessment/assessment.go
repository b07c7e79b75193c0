// Package assessment computes weighted progress scores from per-triplet
// ratings and decides whether an execution continues, wins, or loses.
package assessment

import (
	"errors"
	"fmt"
	"math"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// Score bounds for a single triplet rating.
const (
	MinTripletScore = 0
	MaxTripletScore = 100
)

var (
	// ErrScoreCount indicates a rating slice that does not match the
	// faction's triplet count.
	ErrScoreCount = errors.New("score count does not match triplet count")
)

// Verdict is the assessment engine's decision after a completed turn.
type Verdict string

const (
	VerdictContinue Verdict = "continue"
	VerdictWon      Verdict = "won"
	VerdictLost     Verdict = "lost"
)

// Breakdown maps each faction to its per-triplet scores, in triplet
// order. Factions without triplets carry an empty slice.
type Breakdown map[string][]int

// Assessment is one settled scoring pass over an execution.
type Assessment struct {
	Round     int
	Breakdown Breakdown
	// PerFaction holds the severity-weighted score of each faction.
	PerFaction map[string]float64
	// Final is the mean of PerFaction over factions with triplets.
	Final float64
}

// FactionScore computes the severity-weighted score for one faction.
// Each triplet's rating is weighted by its gap severity; a faction with
// no triplets scores zero.
func FactionScore(faction scenario.Faction, scores []int) (float64, error) {
	if len(scores) != len(faction.Triplets) {
		return 0, fmt.Errorf("%w: faction %q has %d triplets, got %d scores",
			ErrScoreCount, faction.Name, len(faction.Triplets), len(scores))
	}
	if len(faction.Triplets) == 0 {
		return 0, nil
	}

	weightedSum := 0
	weightTotal := 0
	for i, triplet := range faction.Triplets {
		score := clampScore(scores[i])
		weight := triplet.Weight()
		weightedSum += score * weight
		weightTotal += weight
	}
	return float64(weightedSum) / float64(weightTotal), nil
}

// Compute builds a full assessment from a breakdown. Factions present
// in the scenario but missing from the breakdown contribute zero, per
// the empty-scenario fallback. The final score averages only factions
// that have triplets.
func Compute(s scenario.Scenario, round int, breakdown Breakdown) (Assessment, error) {
	perFaction := make(map[string]float64, len(s.Factions))
	sum := 0.0
	counted := 0
	for _, faction := range s.Factions {
		if len(faction.Triplets) == 0 {
			perFaction[faction.Name] = 0
			continue
		}
		scores, ok := breakdown[faction.Name]
		if !ok {
			scores = make([]int, len(faction.Triplets))
		}
		score, err := FactionScore(faction, scores)
		if err != nil {
			return Assessment{}, err
		}
		perFaction[faction.Name] = score
		sum += score
		counted++
	}

	final := 0.0
	if counted > 0 {
		final = sum / float64(counted)
	}
	return Assessment{
		Round:      round,
		Breakdown:  breakdown,
		PerFaction: perFaction,
		Final:      final,
	}, nil
}

// Evaluate decides the execution's fate after a settled assessment.
//
// A win requires the final score to meet the threshold AND no assessment
// still pending; a pending assessment always continues the game so the
// win check never observes a partial score. Exhausting max rounds
// without a win loses.
func Evaluate(final float64, winThreshold int, pending bool, round, maxRounds int) Verdict {
	if !pending && final >= float64(winThreshold) {
		return VerdictWon
	}
	if round >= maxRounds {
		return VerdictLost
	}
	return VerdictContinue
}

// RoundedFinal returns the final score rounded to two decimals for
// display and persistence.
func RoundedFinal(final float64) float64 {
	return math.Round(final*100) / 100
}

func clampScore(score int) int {
	if score < MinTripletScore {
		return MinTripletScore
	}
	if score > MaxTripletScore {
		return MaxTripletScore
	}
	return score
}
