package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/balazsbme/futurehuman/internal/platform/id"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/execution"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// Params configures one evaluation run.
type Params struct {
	Scenario  scenario.Scenario
	Game      gameconfig.Config
	Generator generation.Generator
	// CacheTTL bounds each game's generation cache; every game wraps
	// Generator in its own cache.
	CacheTTL time.Duration
	Player   Player
	Games    int
	// Observer receives every game's records; nil disables recording.
	Observer execution.Observer
	// OnCreate is called with each new execution id before play, so a
	// store can register the execution row first.
	OnCreate func(ctx context.Context, executionID string) error
}

// GameResult summarizes one finished game.
type GameResult struct {
	ExecutionID string
	State       execution.State
	FinalScore  float64
	Rounds      int
}

// Summary aggregates an evaluation run.
type Summary struct {
	Games   []GameResult
	Wins    int
	Losses  int
	Errored int
}

// Run plays the configured number of automated games sequentially.
func Run(ctx context.Context, params Params) (Summary, error) {
	if params.Player == nil {
		return Summary{}, fmt.Errorf("run: player is required")
	}
	if params.Games < 1 {
		params.Games = 1
	}

	var summary Summary
	for i := 0; i < params.Games; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := playGame(ctx, params)
		if err != nil {
			return summary, fmt.Errorf("game %d: %w", i+1, err)
		}
		summary.Games = append(summary.Games, result)
		switch result.State {
		case execution.StateWon:
			summary.Wins++
		case execution.StateLost:
			summary.Losses++
		default:
			summary.Errored++
		}
		log.Printf("game %d/%d: %s score=%.2f rounds=%d",
			i+1, params.Games, result.State, result.FinalScore, result.Rounds)
	}
	return summary, nil
}

func playGame(ctx context.Context, params Params) (GameResult, error) {
	executionID := id.NewID()
	if params.OnCreate != nil {
		if err := params.OnCreate(ctx, executionID); err != nil {
			return GameResult{}, fmt.Errorf("register execution: %w", err)
		}
	}

	exec, err := execution.New(execution.Params{
		ID:        executionID,
		Scenario:  params.Scenario,
		Config:    params.Game,
		Generator: generation.NewCached(params.Generator, params.CacheTTL),
		Resolver:  action.NewResolver(params.Scenario, params.Game.RollSuccessThreshold),
		Observer:  params.Observer,
	})
	if err != nil {
		return GameResult{}, err
	}

	factions := params.Scenario.FactionNames()

	// Chat exchanges do not advance rounds, so bound the loop by the
	// worst case of a full conversation before every action.
	maxTurns := params.Game.MaxRounds * (params.Game.ForceActionAfter + 2)
	for turn := 0; turn < maxTurns; turn++ {
		snap := exec.Snapshot()
		if snap.State.Terminal() {
			break
		}

		actor := params.Player.ChooseFaction(factions)
		if actor == "" {
			actor = params.Game.PlayerFaction
		}
		counterpart := pickCounterpart(params.Scenario, actor)
		options := exec.Options(ctx, actor, counterpart)
		option := params.Player.Choose(options)
		err := exec.SubmitAction(ctx, actor, option, []string{counterpart}, false)
		if err != nil {
			if execution.IsPermanent(err) {
				break
			}
			return GameResult{}, err
		}
	}

	snap := exec.Snapshot()
	if !snap.State.Terminal() {
		log.Printf("warning: execution %s still %s after %d turns; abandoning",
			executionID, snap.State, maxTurns)
	}
	return GameResult{
		ExecutionID: executionID,
		State:       snap.State,
		FinalScore:  snap.FinalScore,
		Rounds:      snap.Round,
	}, nil
}

func pickCounterpart(s scenario.Scenario, player string) string {
	for _, name := range s.FactionNames() {
		if name != player {
			return name
		}
	}
	return player
}
