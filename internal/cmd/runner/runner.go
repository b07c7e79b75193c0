// Package runner is the entrypoint for automated evaluation runs.
package runner

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	platformcmd "github.com/balazsbme/futurehuman/internal/platform/cmd"
	"github.com/balazsbme/futurehuman/internal/platform/random"
	"github.com/balazsbme/futurehuman/internal/services/game/content"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
	gamerunner "github.com/balazsbme/futurehuman/internal/services/game/runner"
	"github.com/balazsbme/futurehuman/internal/services/game/storage/sqlite"
)

// Config holds environment-driven settings for the runner.
type Config struct {
	ContentDir      string `env:"FUTUREHUMAN_CONTENT_DIR"`
	DBEnabled       bool   `env:"FUTUREHUMAN_DB_ENABLED" envDefault:"false"`
	DBPath          string `env:"FUTUREHUMAN_DB_PATH" envDefault:"futurehuman.db"`
	CacheTTLSeconds int    `env:"FUTUREHUMAN_CACHE_TTL_SECONDS" envDefault:"3600"`
	GeminiAPIKey    string `env:"FUTUREHUMAN_GEMINI_API_KEY"`
	GeminiModel     string `env:"FUTUREHUMAN_GEMINI_MODEL"`
}

// Main parses configuration and plays the requested games.
func Main(ctx context.Context, args []string) error {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return err
	}

	games := 1
	playerName := "action-first"
	var seed int64

	flags := flag.NewFlagSet(platformcmd.ServiceRunner, flag.ContinueOnError)
	flags.IntVar(&games, "games", games, "number of games to play")
	flags.StringVar(&playerName, "player", playerName, "player strategy: random or action-first")
	flags.Int64Var(&seed, "seed", seed, "random player seed (0 picks one)")
	flags.StringVar(&cfg.ContentDir, "content-dir", cfg.ContentDir, "scenario content directory (defaults to embedded content)")
	flags.BoolVar(&cfg.DBEnabled, "db-enabled", cfg.DBEnabled, "persist execution history")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	if err := platformcmd.ParseArgs(flags, args); err != nil {
		return err
	}

	if seed == 0 {
		var err error
		seed, err = random.NewSeed()
		if err != nil {
			return fmt.Errorf("new seed: %w", err)
		}
	}

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceRunner, func(ctx context.Context) error {
		return run(ctx, cfg, games, playerName, seed)
	})
}

func run(ctx context.Context, cfg Config, games int, playerName string, seed int64) error {
	contentFS := resolveContentFS(cfg)

	gameCfg, err := gameconfig.Load(contentFS)
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}
	scen, err := scenario.Load(contentFS, gameCfg.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	var generator generation.Generator
	if cfg.GeminiAPIKey == "" {
		log.Printf("warning: FUTUREHUMAN_GEMINI_API_KEY unset; using scripted generator")
		generator = &generation.Scripted{}
	} else {
		gemini, err := generation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("new gemini generator: %w", err)
		}
		defer gemini.Close()
		generator = gemini
	}

	params := gamerunner.Params{
		Scenario:  scen,
		Game:      gameCfg,
		Generator: generator,
		CacheTTL:  time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Player:    gamerunner.NewPlayer(playerName, seed),
		Games:     games,
	}

	if cfg.DBEnabled {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()
		params.Observer = store
		params.OnCreate = func(ctx context.Context, executionID string) error {
			return store.CreateExecution(ctx, sqlite.ExecutionRecord{
				ExecutionID:          executionID,
				AutomatedClass:       playerName,
				Scenario:             scen.Name,
				WinThreshold:         gameCfg.WinThreshold,
				MaxRounds:            gameCfg.MaxRounds,
				RollSuccessThreshold: gameCfg.RollSuccessThreshold,
				AgentMaxExchanges:    gameCfg.ForceActionAfter,
				PlayerClass:          gameCfg.PlayerFaction,
				CreatedAt:            time.Now(),
			})
		}
	}

	summary, err := gamerunner.Run(ctx, params)
	if err != nil {
		return err
	}

	log.Printf("runner finished: games=%d wins=%d losses=%d errored=%d",
		len(summary.Games), summary.Wins, summary.Losses, summary.Errored)
	return nil
}

func resolveContentFS(cfg Config) fs.FS {
	if cfg.ContentDir == "" {
		return content.FS
	}
	return os.DirFS(cfg.ContentDir)
}
