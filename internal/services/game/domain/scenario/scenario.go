// Package scenario models the immutable negotiation scenario content: the
// factions, their goal/gap triplets, and the starting credibility matrix.
//
// Scenario values are loaded once per execution and treated as read-only
// afterwards; mutable game state lives in the credibility and execution
// packages.
package scenario

import (
	"errors"
	"log"
	"strings"
)

// Attribute identifies a faction capability used to weigh action rolls.
type Attribute string

// Attributes a faction profile may score. Values outside this set score zero.
const (
	AttributeLeadership Attribute = "leadership"
	AttributeTechnology Attribute = "technology"
	AttributePolicy     Attribute = "policy"
	AttributeNetwork    Attribute = "network"
)

// ActionAttributes lists every scoreable attribute in canonical order.
var ActionAttributes = []Attribute{
	AttributeLeadership,
	AttributeTechnology,
	AttributePolicy,
	AttributeNetwork,
}

// Severity classifies the size of a triplet's gap.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityLarge    Severity = "Large"
	SeverityModerate Severity = "Moderate"
	SeveritySmall    Severity = "Small"
)

// ErrEmptyName indicates a faction without a name.
var ErrEmptyName = errors.New("faction name is required")

// Triplet is a three-part scoring criterion: the initial state at game
// start, the desired end state, and the gap between them.
type Triplet struct {
	Initial  string
	End      string
	Gap      string
	Severity Severity
}

// Weight returns the scoring weight derived from the gap severity.
func (t Triplet) Weight() int {
	switch t.Severity {
	case SeverityCritical:
		return 4
	case SeverityLarge:
		return 3
	case SeverityModerate:
		return 2
	case SeveritySmall:
		return 1
	default:
		return 1
	}
}

// Profile describes a faction persona and its attribute scores.
type Profile struct {
	Background  string
	Perks       string
	Weaknesses  string
	Motivations string
	Attributes  map[Attribute]int
}

// Faction is one negotiating party with its context and triplets.
type Faction struct {
	Name     string
	Context  string
	Triplets []Triplet
	Profile  Profile
}

// AttributeScore returns the faction's score for attribute, clamped to
// [0, 10]. Unknown or empty attributes score zero.
func (f Faction) AttributeScore(attribute Attribute) int {
	if attribute == "" || f.Profile.Attributes == nil {
		return 0
	}
	value, ok := f.Profile.Attributes[Attribute(strings.ToLower(string(attribute)))]
	if !ok {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 10 {
		return 10
	}
	return value
}

// TripletWeights returns the weight of each triplet in order.
func (f Faction) TripletWeights() []int {
	weights := make([]int, len(f.Triplets))
	for i, triplet := range f.Triplets {
		weights[i] = triplet.Weight()
	}
	return weights
}

// Scenario is the validated, immutable content for one game.
type Scenario struct {
	Name     string
	Factions []Faction
	Matrix   MatrixValues
}

// Faction returns the named faction, if present.
func (s Scenario) Faction(name string) (Faction, bool) {
	for _, faction := range s.Factions {
		if faction.Name == name {
			return faction, true
		}
	}
	return Faction{}, false
}

// FactionNames returns faction names in declaration order.
func (s Scenario) FactionNames() []string {
	names := make([]string, len(s.Factions))
	for i, faction := range s.Factions {
		names[i] = faction.Name
	}
	return names
}

// ClampTripletRef validates a 1-based triplet reference against the named
// faction. References outside [1, count] are cleared to zero and a warning
// records the original value; the zero reference means "no triplet".
func (s Scenario) ClampTripletRef(factionName string, ref int) int {
	if ref == 0 {
		return 0
	}
	faction, ok := s.Faction(factionName)
	if !ok {
		log.Printf("warning: triplet ref %d targets unknown faction %q; clearing", ref, factionName)
		return 0
	}
	if ref < 1 || ref > len(faction.Triplets) {
		log.Printf("warning: triplet ref %d out of range [1,%d] for faction %q; clearing", ref, len(faction.Triplets), factionName)
		return 0
	}
	return ref
}
