package execution

import (
	"context"
	"time"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
)

// ActionRecord is the persisted view of one resolved attempt.
type ActionRecord struct {
	ExecutionID string
	ActionID    string
	Round       int
	Attempt     action.Attempt
	CreatedAt   time.Time
}

// AssessmentRecord is the persisted view of one settled assessment.
type AssessmentRecord struct {
	ExecutionID  string
	AssessmentID string
	ActionID     string
	Scenario     string
	Round        int
	Assessment   assessment.Assessment
	CreatedAt    time.Time
}

// CredibilityRecord snapshots the credibility matrix after an action.
type CredibilityRecord struct {
	ExecutionID string
	SnapshotID  string
	ActionID    string
	Cost        int
	RerollCount int
	Matrix      scenario.MatrixValues
	CreatedAt   time.Time
}

// ResultRecord is the single terminal outcome of an execution.
type ResultRecord struct {
	ExecutionID string
	ResultID    string
	State       State
	FinalScore  float64
	Rounds      int
	CreatedAt   time.Time
}

// Observer receives every committed state change of an execution.
// Implementations must treat failures as their own concern: a returned
// error is logged and absorbed unless marked Permanent.
type Observer interface {
	RecordAction(ctx context.Context, record ActionRecord) error
	RecordAssessment(ctx context.Context, record AssessmentRecord) error
	RecordCredibility(ctx context.Context, record CredibilityRecord) error
	RecordResult(ctx context.Context, record ResultRecord) error
}

// NopObserver discards all records.
type NopObserver struct{}

func (NopObserver) RecordAction(context.Context, ActionRecord) error         { return nil }
func (NopObserver) RecordAssessment(context.Context, AssessmentRecord) error { return nil }
func (NopObserver) RecordCredibility(context.Context, CredibilityRecord) error {
	return nil
}
func (NopObserver) RecordResult(context.Context, ResultRecord) error { return nil }
