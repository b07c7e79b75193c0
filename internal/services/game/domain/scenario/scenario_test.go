package scenario

import (
	"testing"
	"testing/fstest"
)

const sampleScenario = `
factions:
  Governments:
    context: Coordinate national positions.
    triplets:
      - initial_state: Fragmented oversight
        end_state: Shared oversight body
        gap: No common charter
        severity: Critical
      - initial_state: Ad-hoc briefings
        end_state: Standing reviews
        gap: No cadence agreed
        severity: Small
    profile:
      background: Career negotiators.
      perks: Convening power.
      weaknesses: Slow consensus.
      motivations: Stability.
      leadership: 8
      technology: 3
      policy: 9
      network: 7
  Corporations:
    context: Protect commercial interests.
    triplets:
      - initial_state: Opaque reporting
        end_state: Audited disclosures
        gap: No audit standard
        severity: Moderate
    profile:
      background: Industry leads.
      leadership: 6
      technology: 12
      policy: 4
      network: 5
credibility:
  Governments:
    Corporations: 40
`

func TestLoadParsesFactionsAndTriplets(t *testing.T) {
	fsys := fstest.MapFS{
		"complete.yaml": &fstest.MapFile{Data: []byte(sampleScenario)},
	}

	s, err := Load(fsys, "complete")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}

	if len(s.Factions) != 2 {
		t.Fatalf("expected 2 factions, got %d", len(s.Factions))
	}

	gov, ok := s.Faction("Governments")
	if !ok {
		t.Fatal("expected Governments faction")
	}
	if len(gov.Triplets) != 2 {
		t.Fatalf("expected 2 triplets, got %d", len(gov.Triplets))
	}
	if gov.Triplets[0].Severity != SeverityCritical {
		t.Fatalf("expected Critical severity, got %q", gov.Triplets[0].Severity)
	}
	if got := gov.Triplets[0].Weight(); got != 4 {
		t.Fatalf("expected Critical weight 4, got %d", got)
	}
	if got := gov.AttributeScore(AttributePolicy); got != 9 {
		t.Fatalf("expected policy score 9, got %d", got)
	}
}

func TestLoadClampsAttributeScores(t *testing.T) {
	fsys := fstest.MapFS{
		"complete.yaml": &fstest.MapFile{Data: []byte(sampleScenario)},
	}

	s, err := Load(fsys, "complete")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}

	corp, ok := s.Faction("Corporations")
	if !ok {
		t.Fatal("expected Corporations faction")
	}
	if got := corp.AttributeScore(AttributeTechnology); got != 10 {
		t.Fatalf("expected technology clamped to 10, got %d", got)
	}
}

func TestLoadMissingScenarioFallsBack(t *testing.T) {
	s, err := Load(fstest.MapFS{}, "complete")
	if err != nil {
		t.Fatalf("missing scenario should not be fatal: %v", err)
	}
	if len(s.Factions) != 0 {
		t.Fatalf("expected empty faction set, got %d", len(s.Factions))
	}
	if s.Matrix["Governments"]["Governments"] != DiagonalCredibility {
		t.Fatal("expected default matrix with pinned diagonal")
	}
}

func TestLoadNormalizesSparseMatrix(t *testing.T) {
	fsys := fstest.MapFS{
		"complete.yaml": &fstest.MapFile{Data: []byte(sampleScenario)},
	}

	s, err := Load(fsys, "complete")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}

	if got := s.Matrix["Governments"]["Corporations"]; got != 40 {
		t.Fatalf("expected provided cell 40, got %d", got)
	}
	if got := s.Matrix["Corporations"]["Governments"]; got != DefaultBaseCredibility {
		t.Fatalf("expected missing cell to default to %d, got %d", DefaultBaseCredibility, got)
	}
	if got := s.Matrix["Corporations"]["Corporations"]; got != DiagonalCredibility {
		t.Fatalf("expected diagonal pinned at %d, got %d", DiagonalCredibility, got)
	}
	if got := s.Matrix["Regulators"]["CivilSociety"]; got == 0 {
		t.Fatal("expected canonical factions present in normalized matrix")
	}
}

func TestClampTripletRef(t *testing.T) {
	fsys := fstest.MapFS{
		"complete.yaml": &fstest.MapFile{Data: []byte(sampleScenario)},
	}

	s, err := Load(fsys, "complete")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}

	cases := []struct {
		name    string
		faction string
		ref     int
		want    int
	}{
		{"zero passes through", "Governments", 0, 0},
		{"valid first", "Governments", 1, 1},
		{"valid last", "Governments", 2, 2},
		{"past end cleared", "Governments", 3, 0},
		{"negative cleared", "Governments", -1, 0},
		{"unknown faction cleared", "Pirates", 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.ClampTripletRef(tc.faction, tc.ref); got != tc.want {
				t.Fatalf("ClampTripletRef(%q, %d) = %d, want %d", tc.faction, tc.ref, got, tc.want)
			}
		})
	}
}

func TestSeverityWeights(t *testing.T) {
	cases := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 4},
		{SeverityLarge, 3},
		{SeverityModerate, 2},
		{SeveritySmall, 1},
		{Severity("Unknown"), 1},
	}
	for _, tc := range cases {
		if got := (Triplet{Severity: tc.severity}).Weight(); got != tc.want {
			t.Fatalf("weight for %q = %d, want %d", tc.severity, got, tc.want)
		}
	}
}
