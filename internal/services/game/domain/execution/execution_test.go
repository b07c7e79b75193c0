package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/roll"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

func testScenario() scenario.Scenario {
	return scenario.Scenario{
		Name: "test",
		Factions: []scenario.Faction{
			{
				Name: "Governments",
				Triplets: []scenario.Triplet{
					{Gap: "No common charter", Severity: scenario.SeveritySmall},
				},
				Profile: scenario.Profile{Attributes: map[scenario.Attribute]int{
					scenario.AttributePolicy: 5,
				}},
			},
			{
				Name: "Corporations",
				Triplets: []scenario.Triplet{
					{Gap: "No audit standard", Severity: scenario.SeveritySmall},
				},
			},
		},
		Matrix: scenario.NormalizeMatrix(nil, []string{"Governments", "Corporations"}),
	}
}

type recordingObserver struct {
	actions      []ActionRecord
	assessments  []AssessmentRecord
	credibility  []CredibilityRecord
	results      []ResultRecord
	actionErr    error
	resultCalled int
}

func (r *recordingObserver) RecordAction(_ context.Context, record ActionRecord) error {
	r.actions = append(r.actions, record)
	return r.actionErr
}

func (r *recordingObserver) RecordAssessment(_ context.Context, record AssessmentRecord) error {
	r.assessments = append(r.assessments, record)
	return nil
}

func (r *recordingObserver) RecordCredibility(_ context.Context, record CredibilityRecord) error {
	r.credibility = append(r.credibility, record)
	return nil
}

func (r *recordingObserver) RecordResult(_ context.Context, record ResultRecord) error {
	r.resultCalled++
	r.results = append(r.results, record)
	return nil
}

func newTestExecution(t *testing.T, observer Observer, base int, perRound int) *Execution {
	t.Helper()
	s := testScenario()
	cfg := gameconfig.Default()

	resolver := action.NewResolver(s, cfg.RollSuccessThreshold)
	resolver.Strategy = roll.Fixed{Base: base}
	resolver.NewSeed = func() (int64, error) { return 1, nil }

	e, err := New(Params{
		ID:        "exec-1",
		Scenario:  s,
		Config:    cfg,
		Generator: &generation.Scripted{ScorePerRound: perRound},
		Resolver:  resolver,
		Observer:  observer,
	})
	if err != nil {
		t.Fatalf("new execution: %v", err)
	}
	return e
}

func actionOption() action.Option {
	return action.Option{
		Text:      "Propose a shared oversight charter",
		Type:      action.TypeAction,
		Triplet:   1,
		Attribute: scenario.AttributePolicy,
	}
}

func TestNewExecutionStartsAwaitingAtRoundOne(t *testing.T) {
	e := newTestExecution(t, &recordingObserver{}, 8, 10)
	snap := e.Snapshot()
	if snap.State != StateAwaitingAction || snap.Round != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestSubmitActionAdvancesRound(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 8, 10)

	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := e.Snapshot()
	if snap.State != StateAwaitingAction {
		t.Fatalf("state = %v, want awaiting", snap.State)
	}
	if snap.Round != 2 {
		t.Fatalf("round = %d, want 2", snap.Round)
	}
	if snap.ElapsedYears != gameconfig.DefaultActionTimeCostYears {
		t.Fatalf("elapsed years = %v, want %v", snap.ElapsedYears, gameconfig.DefaultActionTimeCostYears)
	}
	if len(obs.actions) != 1 || len(obs.assessments) != 1 || len(obs.credibility) != 1 {
		t.Fatalf("expected one record each, got %d/%d/%d",
			len(obs.actions), len(obs.assessments), len(obs.credibility))
	}
	if snap.Version != 2 {
		t.Fatalf("version = %d, want 2 (action + assessment)", snap.Version)
	}
}

func TestChatDoesNotAdvanceRoundOrTime(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 8, 10)

	chat := action.Option{Text: "Probe for common ground", Type: action.TypeChat}
	if err := e.SubmitAction(context.Background(), "Governments", chat, []string{"Corporations"}, true); err != nil {
		t.Fatalf("submit chat: %v", err)
	}

	snap := e.Snapshot()
	if snap.Round != 1 || snap.ElapsedYears != 0 {
		t.Fatalf("chat must not consume a round or time: %+v", snap)
	}
	if len(obs.assessments) != 0 {
		t.Fatal("chat must not trigger an assessment")
	}
	if len(obs.actions) != 1 {
		t.Fatalf("chat should still be recorded, got %d actions", len(obs.actions))
	}
	if obs.actions[0].Attempt.CredibilityCost != 0 {
		t.Fatal("chat must not cost credibility")
	}
}

func TestWinAtThreshold(t *testing.T) {
	obs := &recordingObserver{}
	// 80 per round: round 1 assessment scores 80 >= threshold 71.
	e := newTestExecution(t, obs, 8, 80)

	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := e.Snapshot()
	if snap.State != StateWon {
		t.Fatalf("state = %v, want won", snap.State)
	}
	if snap.FinalScore != 80 {
		t.Fatalf("final score = %v, want 80", snap.FinalScore)
	}
	if len(obs.results) != 1 || obs.results[0].State != StateWon {
		t.Fatalf("expected one won result, got %+v", obs.results)
	}
}

func TestLossWhenRoundsExhausted(t *testing.T) {
	obs := &recordingObserver{}
	// 1 per round never reaches the threshold.
	e := newTestExecution(t, obs, 8, 1)

	var lastState State
	for i := 0; i < gameconfig.DefaultMaxRounds; i++ {
		err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
		if err != nil {
			t.Fatalf("submit round %d: %v", i+1, err)
		}
		lastState = e.Snapshot().State
	}

	if lastState != StateLost {
		t.Fatalf("state after max rounds = %v, want lost", lastState)
	}
	if got := e.Snapshot().Round; got != gameconfig.DefaultMaxRounds {
		t.Fatalf("round = %d, must never exceed max rounds %d", got, gameconfig.DefaultMaxRounds)
	}
	if len(obs.results) != 1 {
		t.Fatalf("expected exactly one result record, got %d", len(obs.results))
	}
}

func TestTerminalRejectsFurtherActions(t *testing.T) {
	e := newTestExecution(t, &recordingObserver{}, 8, 80)

	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true); err != nil {
		t.Fatalf("submit: %v", err)
	}
	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestRerollIncrementsCounterAndKeepsCost(t *testing.T) {
	obs := &recordingObserver{}
	// Base 2, actor 5, player 5: total 12 with interactive, but use a
	// low score scenario so the first roll fails.
	e := newTestExecution(t, obs, 1, 10)

	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if obs.actions[0].Attempt.Success {
		t.Fatal("first attempt should fail (1 + 5 < 10)")
	}
	if obs.credibility[0].RerollCount != 0 {
		t.Fatalf("first attempt reroll count = %d, want 0", obs.credibility[0].RerollCount)
	}

	if err := e.Reroll(context.Background()); err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if obs.credibility[1].RerollCount != 1 {
		t.Fatalf("reroll count = %d, want 1", obs.credibility[1].RerollCount)
	}
	for i, record := range obs.credibility {
		if record.Cost != action.DefaultCredibilityCost {
			t.Fatalf("attempt %d cost = %d, want the charged amount %d",
				i, record.Cost, action.DefaultCredibilityCost)
		}
	}
	if got := e.Ledger().AccumulatedCost("Governments", "Corporations"); got != 2*action.DefaultCredibilityCost {
		t.Fatalf("accumulated cost after reroll = %d, want %d", got, 2*action.DefaultCredibilityCost)
	}
}

func TestRerollCounterResetsNextTurn(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 1, 1)

	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.Reroll(context.Background()); err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, false); err != nil {
		t.Fatalf("next turn submit: %v", err)
	}

	last := obs.credibility[len(obs.credibility)-1]
	if last.RerollCount != 0 {
		t.Fatalf("new turn must reset reroll count, got %d", last.RerollCount)
	}
}

func TestRerollWithoutAttempt(t *testing.T) {
	e := newTestExecution(t, &recordingObserver{}, 8, 10)
	if err := e.Reroll(context.Background()); !errors.Is(err, ErrNoAttempt) {
		t.Fatalf("expected ErrNoAttempt, got %v", err)
	}
}

func TestObserverFailureIsAbsorbed(t *testing.T) {
	obs := &recordingObserver{actionErr: errors.New("database is locked")}
	e := newTestExecution(t, obs, 8, 10)

	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if err != nil {
		t.Fatalf("persistence failure must not fail the turn: %v", err)
	}
	if e.Snapshot().State.Terminal() {
		t.Fatal("absorbed write failure must not terminate the execution")
	}
}

func TestPermanentObserverFailureErrors(t *testing.T) {
	obs := &recordingObserver{actionErr: Permanent(errors.New("schema missing"))}
	e := newTestExecution(t, obs, 8, 10)

	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error from submit, got %v", err)
	}
	if e.Snapshot().State != StateErrored {
		t.Fatalf("permanent failure should error the execution, got %v", e.Snapshot().State)
	}
	if len(obs.results) != 1 || obs.results[0].State != StateErrored {
		t.Fatalf("expected one errored result record, got %+v", obs.results)
	}
	if len(obs.assessments) != 0 {
		t.Fatal("stopped turn must not reach assessment")
	}
	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true); !errors.Is(err, ErrTerminal) {
		t.Fatalf("errored execution must reject further actions, got %v", err)
	}
}

func TestResolverConfigFailureErrors(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 8, 10)

	err := e.SubmitAction(context.Background(), "Pirates", actionOption(), []string{"Corporations"}, false)
	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if e.Snapshot().State != StateErrored {
		t.Fatalf("state = %v, want errored", e.Snapshot().State)
	}
	if len(obs.results) != 1 || obs.results[0].State != StateErrored {
		t.Fatalf("expected errored result record, got %+v", obs.results)
	}
}

func TestOptionsFallbackOnGeneratorFailure(t *testing.T) {
	e := newTestExecution(t, &recordingObserver{}, 8, 10)

	// Unknown actor makes the scripted generator fail.
	options := e.Options(context.Background(), "Pirates", "Corporations")
	if len(options) != 1 {
		t.Fatalf("expected single fallback option, got %d", len(options))
	}
	if options[0] != action.FallbackOption() {
		t.Fatalf("expected fallback option, got %+v", options[0])
	}
}

func TestForceActionAfterExchanges(t *testing.T) {
	e := newTestExecution(t, &recordingObserver{}, 8, 10)

	chat := action.Option{Text: "Keep talking", Type: action.TypeChat}
	for i := 0; i < gameconfig.DefaultForceActionAfter; i++ {
		if err := e.SubmitAction(context.Background(), "Governments", chat, []string{"Corporations"}, true); err != nil {
			t.Fatalf("chat %d: %v", i, err)
		}
	}

	options := e.Options(context.Background(), "Governments", "Corporations")
	for _, option := range options {
		if !option.IsAction() {
			t.Fatalf("after %d exchanges every option must be an action, got %+v",
				gameconfig.DefaultForceActionAfter, option)
		}
	}
}

func TestAssessmentFallbackKeepsGame(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 8, 10)
	e.generator = failingAssessor{}

	err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	if err != nil {
		t.Fatalf("assessment failure must be absorbed: %v", err)
	}
	snap := e.Snapshot()
	if snap.State != StateAwaitingAction || snap.FinalScore != 0 {
		t.Fatalf("expected zero-score continue, got %+v", snap)
	}
}

type failingAssessor struct{}

func (failingAssessor) GenerateOptions(_ context.Context, req generation.OptionsRequest) ([]action.Option, error) {
	return (&generation.Scripted{}).GenerateOptions(context.Background(), req)
}

func (failingAssessor) AssessProgress(context.Context, generation.AssessmentRequest) (assessment.Breakdown, error) {
	return nil, errors.New("model unavailable")
}

// gatedAssessor blocks AssessProgress until released so tests can look
// at the execution mid-assessment.
type gatedAssessor struct {
	started chan struct{}
	release chan struct{}
	inner   generation.Generator
}

func newGatedAssessor(perRound int) *gatedAssessor {
	return &gatedAssessor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		inner:   &generation.Scripted{ScorePerRound: perRound},
	}
}

func (g *gatedAssessor) GenerateOptions(ctx context.Context, req generation.OptionsRequest) ([]action.Option, error) {
	return g.inner.GenerateOptions(ctx, req)
}

func (g *gatedAssessor) AssessProgress(ctx context.Context, req generation.AssessmentRequest) (assessment.Breakdown, error) {
	close(g.started)
	<-g.release
	return g.inner.AssessProgress(ctx, req)
}

func TestSnapshotObservesPendingAssessment(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExecution(t, obs, 8, 10)
	gate := newGatedAssessor(10)
	e.generator = gate

	done := make(chan error, 1)
	go func() {
		done <- e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true)
	}()

	<-gate.started
	snap := e.Snapshot()
	if snap.State != StateAssessing {
		t.Fatalf("state during assessment = %v, want assessing", snap.State)
	}
	if !snap.Pending {
		t.Fatal("in-flight assessment must surface as pending")
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if e.Snapshot().Pending {
		t.Fatal("pending must clear once the assessment settles")
	}
}

func TestParallelAssessmentSettlesOffSubmitPath(t *testing.T) {
	obs := &recordingObserver{}
	s := testScenario()
	cfg := gameconfig.Default()
	resolver := action.NewResolver(s, cfg.RollSuccessThreshold)
	resolver.Strategy = roll.Fixed{Base: 8}
	resolver.NewSeed = func() (int64, error) { return 1, nil }
	gate := newGatedAssessor(10)

	e, err := New(Params{
		ID:        "exec-parallel",
		Scenario:  s,
		Config:    cfg,
		Generator: gate,
		Resolver:  resolver,
		Observer:  obs,
		Parallel:  true,
	})
	if err != nil {
		t.Fatalf("new execution: %v", err)
	}

	if err := e.SubmitAction(context.Background(), "Governments", actionOption(), []string{"Corporations"}, true); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := e.Snapshot()
	if snap.State != StateAssessing || !snap.Pending {
		t.Fatalf("submit must return before the assessment settles, got %+v", snap)
	}
	if snap.Round != 1 {
		t.Fatalf("round must not advance before settlement, got %d", snap.Round)
	}

	close(gate.release)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.Snapshot().State == StateAssessing {
		time.Sleep(5 * time.Millisecond)
	}

	snap = e.Snapshot()
	if snap.State != StateAwaitingAction || snap.Round != 2 {
		t.Fatalf("settled snapshot = %+v, want awaiting round 2", snap)
	}
	if snap.Pending {
		t.Fatal("pending must clear once the assessment settles")
	}
	if len(obs.assessments) != 1 {
		t.Fatalf("expected one settled assessment, got %d", len(obs.assessments))
	}
}
