// Package sqlite persists execution history to a SQLite database.
//
// All record operations are idempotent inserts. Transient write
// contention is retried a bounded number of times and then skipped with
// a warning: persistence is an observability concern and must never
// fail gameplay.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/balazsbme/futurehuman/internal/platform/storage/sqlitemigrate"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/execution"
	"github.com/balazsbme/futurehuman/internal/services/game/storage/sqlite/migrations"
)

const (
	busyRetries    = 3
	busyRetryDelay = 25 * time.Millisecond
)

// Store is the SQLite-backed execution state store. It implements
// execution.Observer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection
	// also keeps in-memory databases and pragmas consistent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecutionRecord captures the configuration an execution started with.
type ExecutionRecord struct {
	ExecutionID          string
	PlayerClass          string
	AutomatedClass       string
	ConfigJSON           string
	LogLevel             string
	EnableParallelism    bool
	AgentMaxExchanges    int
	Scenario             string
	WinThreshold         int
	MaxRounds            int
	RollSuccessThreshold int
	Notes                string
	CreatedAt            time.Time
}

// CreateExecution registers a new execution row. Required before any
// dependent record lands, so a failure here is permanent.
func (s *Store) CreateExecution(ctx context.Context, record ExecutionRecord) error {
	configJSON := record.ConfigJSON
	if configJSON == "" {
		configJSON = "{}"
	}
	err := s.write(ctx, `
INSERT OR IGNORE INTO executions (
    execution_id, player_class, automated_player_class, config_json,
    log_level, enable_parallelism, automated_agent_max_exchanges,
    scenario, win_threshold, max_rounds, roll_success_threshold,
    notes, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ExecutionID, record.PlayerClass, record.AutomatedClass, configJSON,
		record.LogLevel, boolToInt(record.EnableParallelism), record.AgentMaxExchanges,
		record.Scenario, record.WinThreshold, record.MaxRounds, record.RollSuccessThreshold,
		record.Notes, record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return execution.Permanent(fmt.Errorf("create execution: %w", err))
	}
	return nil
}

// DeleteExecution removes the execution and, through cascade rules, all
// its actions, assessments, and credibility snapshots.
func (s *Store) DeleteExecution(ctx context.Context, executionID string) error {
	if err := s.write(ctx, "DELETE FROM executions WHERE execution_id = ?", executionID); err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	return nil
}

// RecordAction implements execution.Observer.
func (s *Store) RecordAction(ctx context.Context, record execution.ActionRecord) error {
	attempt := record.Attempt

	targetsJSON, err := json.Marshal(attempt.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	optionJSON, err := json.Marshal(map[string]any{
		"text":              attempt.Option.Text,
		"type":              string(attempt.Option.Type),
		"related-triplet":   attempt.Option.Triplet,
		"related-attribute": string(attempt.Option.Attribute),
	})
	if err != nil {
		return fmt.Errorf("marshal option: %w", err)
	}

	var relatedTriplet any
	if attempt.Option.Triplet > 0 {
		relatedTriplet = attempt.Option.Triplet
	}
	var relatedAttribute any
	if attempt.Option.Attribute != "" {
		relatedAttribute = string(attempt.Option.Attribute)
	}

	writeErr := s.write(ctx, `
INSERT OR IGNORE INTO actions (
    action_id, execution_id, actor, title, option_text, option_type,
    related_triplet, related_attribute, success, roll_total,
    actor_score, player_score, effective_score,
    credibility_cost, credibility_gain, targets_json, failure_text,
    round_number, option_json, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ActionID, record.ExecutionID, attempt.Actor, attempt.Label(),
		attempt.Option.Text, string(attempt.Option.Type),
		relatedTriplet, relatedAttribute, boolToInt(attempt.Success), attempt.Total,
		attempt.ActorScore, attempt.PlayerScore, attempt.EffectiveScore,
		attempt.CredibilityCost, attempt.CredibilityGain, string(targetsJSON),
		attempt.FailureText, record.Round, string(optionJSON),
		record.CreatedAt.UTC().UnixMilli(),
	)
	return s.skipContention("action", writeErr)
}

// RecordAssessment implements execution.Observer.
func (s *Store) RecordAssessment(ctx context.Context, record execution.AssessmentRecord) error {
	assessmentJSON, err := json.Marshal(map[string]any{
		"round":       record.Assessment.Round,
		"breakdown":   record.Assessment.Breakdown,
		"per_faction": record.Assessment.PerFaction,
		"final":       record.Assessment.Final,
	})
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	writeErr := s.write(ctx, `
INSERT OR IGNORE INTO assessments (
    assessment_id, execution_id, action_id, scenario,
    final_weighted_score, assessment_json
) VALUES (?, ?, ?, ?, ?, ?)`,
		record.AssessmentID, record.ExecutionID, record.ActionID, record.Scenario,
		record.Assessment.Final, string(assessmentJSON),
	)
	return s.skipContention("assessment", writeErr)
}

// RecordCredibility implements execution.Observer.
func (s *Store) RecordCredibility(ctx context.Context, record execution.CredibilityRecord) error {
	matrixJSON, err := json.Marshal(record.Matrix)
	if err != nil {
		return fmt.Errorf("marshal credibility matrix: %w", err)
	}

	writeErr := s.write(ctx, `
INSERT OR IGNORE INTO credibility (
    credibility_vector_id, execution_id, action_id, cost,
    reroll_attempt_count, credibility_json
) VALUES (?, ?, ?, ?, ?, ?)`,
		record.SnapshotID, record.ExecutionID, record.ActionID,
		record.Cost, record.RerollCount, string(matrixJSON),
	)
	return s.skipContention("credibility", writeErr)
}

// RecordResult implements execution.Observer. The terminal result is
// written at most once per execution.
func (s *Store) RecordResult(ctx context.Context, record execution.ResultRecord) error {
	errorInfo := ""
	if record.State == execution.StateErrored {
		errorInfo = "execution terminated on unrecoverable failure"
	}

	writeErr := s.write(ctx, `
INSERT OR IGNORE INTO results (
    execution_id, successful_execution, result, error_info, created_at
) VALUES (?, ?, ?, ?, ?)`,
		record.ExecutionID, boolToInt(record.State == execution.StateWon),
		fmt.Sprintf("%s (final score %.2f after %d rounds)", record.State, record.FinalScore, record.Rounds),
		errorInfo, record.CreatedAt.UTC().UnixMilli(),
	)
	return s.skipContention("result", writeErr)
}

// write executes a statement, retrying transient lock contention.
func (s *Store) write(ctx context.Context, query string, args ...any) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busyRetryDelay):
		}
	}
	return err
}

// skipContention absorbs exhausted-contention failures so gameplay
// continues; any other failure propagates to the caller.
func (s *Store) skipContention(kind string, err error) error {
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		log.Printf("warning: %s write skipped after %d retries: %v", kind, busyRetries, err)
		return nil
	}
	return err
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "database is locked") ||
		strings.Contains(value, "database table is locked") ||
		strings.Contains(value, "sqlite_busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
