// Package game wires configuration, content, storage, and the HTTP app
// into the game service entrypoint.
package game

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	platformcmd "github.com/balazsbme/futurehuman/internal/platform/cmd"
	"github.com/balazsbme/futurehuman/internal/services/game/app"
	"github.com/balazsbme/futurehuman/internal/services/game/content"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
	"github.com/balazsbme/futurehuman/internal/services/game/storage/sqlite"
)

// Config holds environment-driven settings for the game service.
type Config struct {
	Addr              string `env:"FUTUREHUMAN_HTTP_ADDR" envDefault:":8080"`
	ContentDir        string `env:"FUTUREHUMAN_CONTENT_DIR"`
	DBEnabled         bool   `env:"FUTUREHUMAN_DB_ENABLED" envDefault:"false"`
	DBPath            string `env:"FUTUREHUMAN_DB_PATH" envDefault:"futurehuman.db"`
	EnableParallelism bool   `env:"FUTUREHUMAN_ENABLE_PARALLELISM" envDefault:"false"`
	AgentMaxExchanges int    `env:"FUTUREHUMAN_AGENT_MAX_EXCHANGES" envDefault:"8"`
	CacheTTLSeconds   int    `env:"FUTUREHUMAN_CACHE_TTL_SECONDS" envDefault:"3600"`
	LogLevel          string `env:"FUTUREHUMAN_LOG_LEVEL" envDefault:"info"`
	GeminiAPIKey      string `env:"FUTUREHUMAN_GEMINI_API_KEY"`
	GeminiModel       string `env:"FUTUREHUMAN_GEMINI_MODEL"`
}

// Normalize validates tunables, substituting defaults with a warning
// instead of failing startup.
func (c *Config) Normalize() {
	if c.AgentMaxExchanges < 1 {
		log.Printf("warning: FUTUREHUMAN_AGENT_MAX_EXCHANGES=%d invalid; using %d",
			c.AgentMaxExchanges, gameconfig.DefaultForceActionAfter)
		c.AgentMaxExchanges = gameconfig.DefaultForceActionAfter
	}
	if c.CacheTTLSeconds < 1 {
		log.Printf("warning: FUTUREHUMAN_CACHE_TTL_SECONDS=%d invalid; using %d",
			c.CacheTTLSeconds, int(generation.DefaultCacheTTL.Seconds()))
		c.CacheTTLSeconds = int(generation.DefaultCacheTTL.Seconds())
	}
}

// Main parses configuration and runs the service until ctx is done.
func Main(ctx context.Context, args []string) error {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return err
	}

	flags := flag.NewFlagSet(platformcmd.ServiceGame, flag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.StringVar(&cfg.ContentDir, "content-dir", cfg.ContentDir, "scenario content directory (defaults to embedded content)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flags.BoolVar(&cfg.DBEnabled, "db-enabled", cfg.DBEnabled, "persist execution history")
	if err := platformcmd.ParseArgs(flags, args); err != nil {
		return err
	}
	cfg.Normalize()

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceGame, func(ctx context.Context) error {
		return Run(ctx, cfg)
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	contentFS := resolveContentFS(cfg)

	gameCfg, err := gameconfig.Load(contentFS)
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}
	gameCfg.ForceActionAfter = cfg.AgentMaxExchanges

	scen, err := scenario.Load(contentFS, gameCfg.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	generator, closeGenerator, err := buildGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGenerator()

	var store *sqlite.Store
	if cfg.DBEnabled {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()
	}

	server, err := app.NewServer(app.Deps{
		Scenario:          scen,
		Game:              gameCfg,
		Generator:         generator,
		Store:             store,
		EnableParallelism: cfg.EnableParallelism,
		CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("game listening addr=%s scenario=%s db=%t parallelism=%t",
			cfg.Addr, scen.Name, cfg.DBEnabled, cfg.EnableParallelism)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func resolveContentFS(cfg Config) fs.FS {
	if cfg.ContentDir == "" {
		return content.FS
	}
	return os.DirFS(cfg.ContentDir)
}

// buildGenerator picks the Gemini-backed generator when an API key is
// configured and the scripted one otherwise. Each execution wraps it in
// its own TTL cache.
func buildGenerator(ctx context.Context, cfg Config) (generation.Generator, func(), error) {
	if cfg.GeminiAPIKey == "" {
		log.Printf("warning: FUTUREHUMAN_GEMINI_API_KEY unset; using scripted generator")
		return &generation.Scripted{}, func() {}, nil
	}

	gemini, err := generation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, fmt.Errorf("new gemini generator: %w", err)
	}
	return gemini, gemini.Close, nil
}
