// Package execution drives one run of the negotiation game: the per-run
// state machine, turn resolution, credibility accounting, and the
// assessment that decides win, loss, or another round.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/balazsbme/futurehuman/internal/platform/id"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/credibility"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
	"github.com/balazsbme/futurehuman/internal/services/game/scheduler"
)

// Params wires one execution together.
type Params struct {
	ID        string
	Scenario  scenario.Scenario
	Config    gameconfig.Config
	Generator generation.Generator
	Resolver  *action.Resolver
	Observer  Observer
	Notifier  *scheduler.Notifier
	Clock     func() time.Time
	NewID     func() string
	// Parallel settles assessments on a background goroutine: a submit
	// returns once the roll is committed, and polls observe the
	// assessing window instead of waiting for it.
	Parallel bool
}

// Execution is a single run of the game. All methods are safe for
// concurrent use. turnMu serializes turn resolution; the observable
// fields have their own lock, held only for short copies, so state
// polls never wait on an in-flight turn.
type Execution struct {
	id        string
	scenario  scenario.Scenario
	cfg       gameconfig.Config
	generator generation.Generator
	resolver  *action.Resolver
	ledger    *credibility.Ledger
	observer  Observer
	notifier  *scheduler.Notifier
	clock     func() time.Time
	newID     func() string
	parallel  bool

	turnMu sync.Mutex

	mu           sync.RWMutex
	state        State
	round        int
	elapsedYears float64
	exchanges    int
	history      []string
	finalScore   float64

	// guarded by turnMu
	lastTurn   *turn
	lastBreak  assessment.Breakdown
	resultDone bool
}

type turn struct {
	actor       string
	option      action.Option
	targets     []string
	interactive bool
}

// New builds an execution in the awaiting-action state at round one.
func New(params Params) (*Execution, error) {
	if params.Generator == nil {
		return nil, fmt.Errorf("new execution: generator is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("new execution: resolver is required")
	}
	if params.ID == "" {
		params.ID = id.NewID()
	}
	if params.Observer == nil {
		params.Observer = NopObserver{}
	}
	if params.Notifier == nil {
		params.Notifier = scheduler.NewNotifier()
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	if params.NewID == nil {
		params.NewID = id.NewID
	}

	matrix := credibility.NewMatrix(params.Scenario.Matrix)
	return &Execution{
		id:        params.ID,
		scenario:  params.Scenario,
		cfg:       params.Config,
		generator: params.Generator,
		resolver:  params.Resolver,
		ledger:    credibility.NewLedger(matrix),
		observer:  params.Observer,
		notifier:  params.Notifier,
		clock:     params.Clock,
		newID:     params.NewID,
		parallel:  params.Parallel,
		state:     StateAwaitingAction,
		round:     1,
	}, nil
}

// ID returns the execution identifier.
func (e *Execution) ID() string { return e.id }

// Notifier exposes the progress notifier for the polling protocol.
func (e *Execution) Notifier() *scheduler.Notifier { return e.notifier }

// Ledger exposes the credibility ledger.
func (e *Execution) Ledger() *credibility.Ledger { return e.ledger }

// Scenario returns the immutable scenario content.
func (e *Execution) Scenario() scenario.Scenario { return e.scenario }

// Config returns the game tunables.
func (e *Execution) Config() gameconfig.Config { return e.cfg }

// Snapshot is a consistent read of the observable execution state.
type Snapshot struct {
	ID           string
	State        State
	Round        int
	MaxRounds    int
	ElapsedYears float64
	FinalScore   float64
	WinThreshold int
	History      []string
	Version      int64
	Pending      bool
}

// Snapshot returns the current observable state. It never waits on an
// in-flight turn, so a poll during a long-running assessment sees the
// assessing state and pending flag instead of blocking.
func (e *Execution) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		ID:           e.id,
		State:        e.state,
		Round:        e.round,
		MaxRounds:    e.cfg.MaxRounds,
		ElapsedYears: e.elapsedYears,
		FinalScore:   e.finalScore,
		WinThreshold: e.cfg.WinThreshold,
		History:      append([]string(nil), e.history...),
		Version:      e.notifier.Version(),
		Pending:      e.notifier.Pending(),
	}
}

func (e *Execution) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Execution) currentState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Execution) currentRound() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round
}

// Options generates the actor's choices for the current turn. When the
// generator fails or returns nothing usable, a fixed fallback option is
// substituted with a warning so the turn can always proceed.
func (e *Execution) Options(ctx context.Context, actor, counterpart string) []action.Option {
	e.mu.RLock()
	forceAction := e.exchanges >= e.cfg.ForceActionAfter
	history := append([]string(nil), e.history...)
	e.mu.RUnlock()

	options, err := e.generator.GenerateOptions(ctx, generation.OptionsRequest{
		Scenario:    e.scenario,
		Actor:       actor,
		Counterpart: counterpart,
		History:     history,
		ForceAction: forceAction,
	})
	if err != nil {
		log.Printf("warning: execution %s: option generation for %s failed: %v; using fallback", e.id, actor, err)
		return []action.Option{action.FallbackOption()}
	}
	return options
}

// SubmitAction resolves the chosen option for actor against targets.
// Chat options only extend the conversation; action options roll, move
// credibility, consume world time, and trigger an assessment.
func (e *Execution) SubmitAction(ctx context.Context, actor string, option action.Option, targets []string, interactive bool) error {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()

	state := e.currentState()
	if state.Terminal() {
		return ErrTerminal
	}
	if state != StateAwaitingAction {
		return ErrBusy
	}

	e.ledger.BeginTurn()
	e.lastTurn = &turn{actor: actor, option: option, targets: targets, interactive: interactive}
	return e.resolveTurn(ctx, actor, option, targets, interactive, false)
}

// Reroll re-attempts the current turn's action. Prior credibility cost
// stands; the reroll counter increments and the same option is rolled
// again.
func (e *Execution) Reroll(ctx context.Context) error {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()

	state := e.currentState()
	if state.Terminal() {
		return ErrTerminal
	}
	if state != StateAwaitingAction {
		return ErrBusy
	}
	if e.lastTurn == nil || !e.lastTurn.option.IsAction() {
		return ErrNoAttempt
	}

	e.ledger.RecordReroll()
	t := e.lastTurn
	return e.resolveTurn(ctx, t.actor, t.option, t.targets, t.interactive, true)
}

func (e *Execution) resolveTurn(ctx context.Context, actor string, option action.Option, targets []string, interactive bool, reroll bool) error {
	e.setState(StateResolving)
	e.notifier.SetPending(true)

	if option.IsAction() {
		option.Triplet = e.ledger.GateTripletRef(actor, targets, action.DefaultCredibilityCost, option.Triplet)
	}

	attempt, err := e.resolver.Resolve(actor, option, targets, interactive)
	if err != nil {
		return e.fail(ctx, fmt.Errorf("resolve action: %w", err))
	}

	if option.IsAction() {
		if err := e.ledger.Charge(actor, targets, attempt.CredibilityCost); err != nil {
			return e.fail(ctx, fmt.Errorf("charge credibility: %w", err))
		}
		if attempt.Success {
			if err := e.ledger.Award(actor, targets, attempt.CredibilityGain); err != nil {
				return e.fail(ctx, fmt.Errorf("award credibility: %w", err))
			}
		}
	} else {
		attempt.CredibilityCost = 0
		attempt.CredibilityGain = 0
	}

	e.mu.Lock()
	if option.IsAction() {
		if !reroll {
			e.elapsedYears += e.cfg.ActionTimeCostYears
		}
		e.exchanges = 0
	} else {
		e.exchanges++
	}
	e.history = append(e.history, attempt.Label())
	e.mu.Unlock()

	actionID := e.newID()
	if err := e.recordAction(ctx, actionID, attempt); err != nil {
		return e.fail(ctx, err)
	}
	if err := e.recordCredibility(ctx, actionID, attempt); err != nil {
		return e.fail(ctx, err)
	}
	e.notifier.Bump()

	if !option.IsAction() {
		e.setState(StateAwaitingAction)
		e.notifier.SetPending(false)
		return nil
	}

	e.setState(StateAssessing)
	if e.parallel {
		go e.settleAssessment(actionID, reroll)
		return nil
	}
	return e.assess(ctx, actionID, reroll)
}

// settleAssessment runs the assessment for a committed action off the
// submit path. Polls observe the assessing state until it lands.
func (e *Execution) settleAssessment(actionID string, reroll bool) {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()
	if err := e.assess(context.Background(), actionID, reroll); err != nil {
		log.Printf("execution %s: background assessment: %v", e.id, err)
	}
}

func (e *Execution) assess(ctx context.Context, actionID string, reroll bool) error {
	round := e.currentRound()
	e.mu.RLock()
	history := append([]string(nil), e.history...)
	e.mu.RUnlock()

	breakdown, err := e.generator.AssessProgress(ctx, generation.AssessmentRequest{
		Scenario: e.scenario,
		Round:    round,
		History:  history,
	})
	if err != nil {
		log.Printf("warning: execution %s: assessment failed: %v; reusing last settled breakdown", e.id, err)
		breakdown = e.lastBreak
		if breakdown == nil {
			breakdown = make(assessment.Breakdown)
		}
	} else {
		e.lastBreak = breakdown
	}

	settled, err := assessment.Compute(e.scenario, round, breakdown)
	if err != nil {
		return e.fail(ctx, fmt.Errorf("compute assessment: %w", err))
	}
	final := assessment.RoundedFinal(settled.Final)
	e.mu.Lock()
	e.finalScore = final
	e.mu.Unlock()

	if err := e.recordAssessment(ctx, actionID, settled); err != nil {
		return e.fail(ctx, err)
	}
	e.notifier.Bump()

	verdict := assessment.Evaluate(settled.Final, e.cfg.WinThreshold, false, round, e.cfg.MaxRounds)
	switch verdict {
	case assessment.VerdictWon:
		e.setState(StateWon)
		e.recordResult(ctx)
	case assessment.VerdictLost:
		e.setState(StateLost)
		e.recordResult(ctx)
	default:
		e.mu.Lock()
		if !reroll {
			e.round++
		}
		e.state = StateAwaitingAction
		e.mu.Unlock()
	}
	e.notifier.SetPending(false)
	return nil
}

// fail routes an unrecoverable failure into the terminal errored state,
// records the result, and stops the turn.
func (e *Execution) fail(ctx context.Context, err error) error {
	log.Printf("execution %s: unrecoverable failure: %v", e.id, err)
	e.setState(StateErrored)
	e.recordResult(ctx)
	e.notifier.SetPending(false)
	return Permanent(err)
}

func (e *Execution) recordAction(ctx context.Context, actionID string, attempt action.Attempt) error {
	err := e.observer.RecordAction(ctx, ActionRecord{
		ExecutionID: e.id,
		ActionID:    actionID,
		Round:       e.currentRound(),
		Attempt:     attempt,
		CreatedAt:   e.clock(),
	})
	return e.absorbObserverErr("action", err)
}

func (e *Execution) recordCredibility(ctx context.Context, actionID string, attempt action.Attempt) error {
	err := e.observer.RecordCredibility(ctx, CredibilityRecord{
		ExecutionID: e.id,
		SnapshotID:  e.newID(),
		ActionID:    actionID,
		Cost:        attempt.CredibilityCost,
		RerollCount: e.ledger.RerollCount(),
		Matrix:      e.ledger.Matrix().Snapshot(),
		CreatedAt:   e.clock(),
	})
	return e.absorbObserverErr("credibility", err)
}

func (e *Execution) recordAssessment(ctx context.Context, actionID string, settled assessment.Assessment) error {
	err := e.observer.RecordAssessment(ctx, AssessmentRecord{
		ExecutionID:  e.id,
		AssessmentID: e.newID(),
		ActionID:     actionID,
		Scenario:     e.scenario.Name,
		Round:        e.currentRound(),
		Assessment:   settled,
		CreatedAt:    e.clock(),
	})
	return e.absorbObserverErr("assessment", err)
}

func (e *Execution) recordResult(ctx context.Context) {
	if e.resultDone {
		return
	}
	e.resultDone = true
	snap := e.Snapshot()
	err := e.observer.RecordResult(ctx, ResultRecord{
		ExecutionID: e.id,
		ResultID:    e.newID(),
		State:       snap.State,
		FinalScore:  snap.FinalScore,
		Rounds:      snap.Round,
		CreatedAt:   e.clock(),
	})
	if err != nil {
		log.Printf("warning: execution %s: result write skipped: %v", e.id, err)
	}
}

// absorbObserverErr absorbs transient persistence failures with a
// warning so gameplay continues. Permanent failures propagate and
// terminate the turn.
func (e *Execution) absorbObserverErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return fmt.Errorf("%s write: %w", kind, err)
	}
	log.Printf("warning: execution %s: %s write skipped: %v", e.id, kind, err)
	return nil
}
