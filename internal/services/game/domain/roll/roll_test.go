package roll

import "testing"

func TestTwoDiceDeterministicForSeed(t *testing.T) {
	input := Input{ActorScore: 3, Threshold: 10, Seed: 42}

	first, err := TwoDice{}.Resolve(input)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := TwoDice{}.Resolve(input)
	if err != nil {
		t.Fatalf("resolve replay: %v", err)
	}

	if first != second {
		t.Fatalf("same seed should replay identically: %+v vs %+v", first, second)
	}
}

func TestTwoDiceBaseWithinBounds(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		result, err := TwoDice{}.Resolve(Input{Threshold: 10, Seed: seed})
		if err != nil {
			t.Fatalf("resolve seed %d: %v", seed, err)
		}
		if result.Base < MinBase() || result.Base > MaxBase() {
			t.Fatalf("seed %d base %d outside [%d,%d]", seed, result.Base, MinBase(), MaxBase())
		}
		if result.Total != result.Base+result.Modifier {
			t.Fatalf("seed %d total %d != base %d + modifier %d", seed, result.Total, result.Base, result.Modifier)
		}
	}
}

func TestTwoDicePlayerScoreOnlyWhenInteractive(t *testing.T) {
	agent, err := TwoDice{}.Resolve(Input{ActorScore: 4, PlayerScore: 5, Threshold: 10, Seed: 7})
	if err != nil {
		t.Fatalf("resolve agent: %v", err)
	}
	if agent.Modifier != 4 {
		t.Fatalf("agent attempt should ignore player score, modifier = %d", agent.Modifier)
	}

	interactive, err := TwoDice{}.Resolve(Input{ActorScore: 4, PlayerScore: 5, Interactive: true, Threshold: 10, Seed: 7})
	if err != nil {
		t.Fatalf("resolve interactive: %v", err)
	}
	if interactive.Modifier != 9 {
		t.Fatalf("interactive attempt should add player score, modifier = %d", interactive.Modifier)
	}
	if interactive.Base != agent.Base {
		t.Fatalf("same seed should give same base: %d vs %d", interactive.Base, agent.Base)
	}
}

func TestTwoDiceRejectsInvalidThreshold(t *testing.T) {
	if _, err := (TwoDice{}).Resolve(Input{Seed: 1}); err != ErrInvalidThreshold {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestFixedTieSucceeds(t *testing.T) {
	result, err := Fixed{Base: 6}.Resolve(Input{ActorScore: 4, Threshold: 10, Seed: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Total != 10 || !result.Success {
		t.Fatalf("total equal to threshold should succeed, got %+v", result)
	}

	result, err = Fixed{Base: 5}.Resolve(Input{ActorScore: 4, Threshold: 10, Seed: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Success {
		t.Fatalf("total below threshold should fail, got %+v", result)
	}
}
