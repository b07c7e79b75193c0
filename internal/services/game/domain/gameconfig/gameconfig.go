// Package gameconfig loads per-game tunables from YAML with typed
// defaults. Malformed values fall back to the default for that field
// with a warning; a missing file yields the full default set.
package gameconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent or invalid.
const (
	DefaultScenario             = "complete"
	DefaultWinThreshold         = 71
	DefaultMaxRounds            = 10
	DefaultRollSuccessThreshold = 10
	DefaultActionTimeCostYears  = 0.5
	DefaultForceActionAfter     = 8
	DefaultPlayerFaction        = "Governments"
	defaultConfigFile           = "game.yaml"
)

// Config holds the validated per-game tunables.
type Config struct {
	Scenario             string
	WinThreshold         int
	MaxRounds            int
	RollSuccessThreshold int
	ActionTimeCostYears  float64
	// ForceActionAfter caps chat-only exchanges before an agent must
	// pick an action option.
	ForceActionAfter int
	PlayerFaction    string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scenario:             DefaultScenario,
		WinThreshold:         DefaultWinThreshold,
		MaxRounds:            DefaultMaxRounds,
		RollSuccessThreshold: DefaultRollSuccessThreshold,
		ActionTimeCostYears:  DefaultActionTimeCostYears,
		ForceActionAfter:     DefaultForceActionAfter,
		PlayerFaction:        DefaultPlayerFaction,
	}
}

type configFile struct {
	Scenario             *string  `yaml:"scenario"`
	WinThreshold         *int     `yaml:"win_threshold"`
	MaxRounds            *int     `yaml:"max_rounds"`
	RollSuccessThreshold *int     `yaml:"roll_success_threshold"`
	ActionTimeCostYears  *float64 `yaml:"action_time_cost_years"`
	ForceActionAfter     *int     `yaml:"conversation_force_action_after"`
	PlayerFaction        *string  `yaml:"player_faction"`
}

// Load reads game.yaml from contentFS. A missing file is not an error.
func Load(contentFS fs.FS) (Config, error) {
	data, err := fs.ReadFile(contentFS, defaultConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("warning: %s not found; using default game config", defaultConfigFile)
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read game config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse game config: %w", err)
	}

	cfg := Default()
	if file.Scenario != nil && *file.Scenario != "" {
		cfg.Scenario = *file.Scenario
	}
	cfg.WinThreshold = positiveOr("win_threshold", file.WinThreshold, cfg.WinThreshold)
	cfg.MaxRounds = positiveOr("max_rounds", file.MaxRounds, cfg.MaxRounds)
	cfg.RollSuccessThreshold = positiveOr("roll_success_threshold", file.RollSuccessThreshold, cfg.RollSuccessThreshold)
	cfg.ForceActionAfter = positiveOr("conversation_force_action_after", file.ForceActionAfter, cfg.ForceActionAfter)
	if file.ActionTimeCostYears != nil {
		if *file.ActionTimeCostYears <= 0 {
			log.Printf("warning: action_time_cost_years=%v invalid; using default %v",
				*file.ActionTimeCostYears, cfg.ActionTimeCostYears)
		} else {
			cfg.ActionTimeCostYears = *file.ActionTimeCostYears
		}
	}
	if file.PlayerFaction != nil && *file.PlayerFaction != "" {
		cfg.PlayerFaction = *file.PlayerFaction
	}
	return cfg, nil
}

func positiveOr(field string, value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	if *value <= 0 {
		log.Printf("warning: %s=%d invalid; using default %d", field, *value, fallback)
		return fallback
	}
	return *value
}
