// Package app exposes the game engine over JSON HTTP and owns the
// lifecycle of in-memory executions.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/balazsbme/futurehuman/internal/platform/id"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/execution"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/gameconfig"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/generation"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/scenario"
	"github.com/balazsbme/futurehuman/internal/services/game/scheduler"
	"github.com/balazsbme/futurehuman/internal/services/game/storage/sqlite"
)

// Deps wires the server's collaborators. Store is optional; a nil store
// keeps executions in memory only. Each execution wraps Generator in
// its own TTL cache, so CacheTTL bounds staleness per run.
type Deps struct {
	Scenario          scenario.Scenario
	Game              gameconfig.Config
	Generator         generation.Generator
	Store             *sqlite.Store
	EnableParallelism bool
	CacheTTL          time.Duration
	Clock             func() time.Time
}

// Server handles the execution lifecycle endpoints.
type Server struct {
	deps Deps

	mu         sync.RWMutex
	executions map[string]*entry
}

type entry struct {
	exec  *execution.Execution
	sched *scheduler.Scheduler
}

// NewServer builds a server ready to mount.
func NewServer(deps Deps) (*Server, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("new server: generator is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Server{
		deps:       deps,
		executions: make(map[string]*entry),
	}, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /executions", s.handleCreate)
	mux.HandleFunc("GET /executions/{id}/state", s.handleState)
	mux.HandleFunc("GET /executions/{id}/options", s.handleOptions)
	mux.HandleFunc("POST /executions/{id}/actions", s.handleAction)
	mux.HandleFunc("POST /executions/{id}/reroll", s.handleReroll)
	mux.HandleFunc("DELETE /executions/{id}", s.handleDelete)
	return mux
}

type createRequest struct {
	PlayerFaction string `json:"player_faction"`
	Notes         string `json:"notes"`
}

type createResponse struct {
	ExecutionID   string `json:"execution_id"`
	PlayerFaction string `json:"player_faction"`
	Round         int    `json:"round"`
	MaxRounds     int    `json:"max_rounds"`
	WinThreshold  int    `json:"win_threshold"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := s.deps.Game
	if req.PlayerFaction != "" {
		if _, ok := s.deps.Scenario.Faction(req.PlayerFaction); !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown faction %q", req.PlayerFaction))
			return
		}
		cfg.PlayerFaction = req.PlayerFaction
	}

	executionID := id.NewID()
	notifier := scheduler.NewNotifier()

	var observer execution.Observer = execution.NopObserver{}
	if s.deps.Store != nil {
		observer = s.deps.Store
	}

	exec, err := execution.New(execution.Params{
		ID:        executionID,
		Scenario:  s.deps.Scenario,
		Config:    cfg,
		Generator: generation.NewCached(s.deps.Generator, s.deps.CacheTTL),
		Resolver:  action.NewResolver(s.deps.Scenario, cfg.RollSuccessThreshold),
		Observer:  observer,
		Notifier:  notifier,
		Clock:     s.deps.Clock,
		Parallel:  s.deps.EnableParallelism,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if s.deps.Store != nil {
		err := s.deps.Store.CreateExecution(r.Context(), sqlite.ExecutionRecord{
			ExecutionID:          executionID,
			Scenario:             s.deps.Scenario.Name,
			WinThreshold:         cfg.WinThreshold,
			MaxRounds:            cfg.MaxRounds,
			RollSuccessThreshold: cfg.RollSuccessThreshold,
			AgentMaxExchanges:    cfg.ForceActionAfter,
			EnableParallelism:    s.deps.EnableParallelism,
			PlayerClass:          cfg.PlayerFaction,
			Notes:                req.Notes,
			CreatedAt:            s.deps.Clock(),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	s.mu.Lock()
	s.executions[executionID] = &entry{
		exec:  exec,
		sched: scheduler.New(notifier, s.deps.EnableParallelism),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, createResponse{
		ExecutionID:   executionID,
		PlayerFaction: cfg.PlayerFaction,
		Round:         1,
		MaxRounds:     cfg.MaxRounds,
		WinThreshold:  cfg.WinThreshold,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("execution not found"))
		return
	}
	writeJSON(w, http.StatusOK, pollPayload(e.exec.Snapshot()))
}

type optionsResponse struct {
	Options []optionPayload `json:"options"`
}

type optionPayload struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Triplet   int    `json:"related-triplet,omitempty"`
	Attribute string `json:"related-attribute,omitempty"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("execution not found"))
		return
	}

	actor, err := s.resolveActor(e, r.URL.Query().Get("actor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	counterpart := s.counterpart(actor)

	var options []action.Option
	if staged, ok := e.sched.Claim(optionsKey(actor)); ok {
		options = staged.([]action.Option)
	} else {
		options = e.exec.Options(r.Context(), actor, counterpart)
	}

	payload := optionsResponse{Options: make([]optionPayload, 0, len(options))}
	for _, option := range options {
		payload.Options = append(payload.Options, optionPayload{
			Text:      option.Text,
			Type:      string(option.Type),
			Triplet:   option.Triplet,
			Attribute: string(option.Attribute),
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

type actionRequest struct {
	Actor   string        `json:"actor"`
	Option  optionPayload `json:"option"`
	Targets []string      `json:"targets"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("execution not found"))
		return
	}

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	option := action.Option{
		Text:      req.Option.Text,
		Type:      action.OptionType(req.Option.Type),
		Triplet:   req.Option.Triplet,
		Attribute: scenario.Attribute(req.Option.Attribute),
	}
	actor, err := s.resolveActor(e, req.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = []string{s.counterpart(actor)}
	}

	// The observable state is about to change; staged speculation is
	// stale by definition.
	e.sched.Invalidate()

	if err := e.exec.SubmitAction(r.Context(), actor, option, targets, true); err != nil {
		writeSubmitError(w, err)
		return
	}

	s.precomputeNextOptions(e, actor)
	writeJSON(w, http.StatusOK, pollPayload(e.exec.Snapshot()))
}

func (s *Server) handleReroll(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("execution not found"))
		return
	}

	e.sched.Invalidate()
	if err := e.exec.Reroll(r.Context()); err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollPayload(e.exec.Snapshot()))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	executionID := r.PathValue("id")

	s.mu.Lock()
	e, ok := s.executions[executionID]
	if ok {
		delete(s.executions, executionID)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("execution not found"))
		return
	}
	e.sched.Invalidate()

	if s.deps.Store != nil {
		if err := s.deps.Store.DeleteExecution(r.Context(), executionID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func optionsKey(actor string) string { return "options:" + actor }

// precomputeNextOptions speculatively generates the acting faction's
// next options while the player reads the new state. A stale result is
// discarded by the scheduler's version check.
func (s *Server) precomputeNextOptions(e *entry, actor string) {
	if !e.sched.Enabled() || e.exec.Snapshot().State.Terminal() {
		return
	}
	counterpart := s.counterpart(actor)
	e.sched.Precompute(context.Background(), optionsKey(actor), func(ctx context.Context) (any, error) {
		return e.exec.Options(ctx, actor, counterpart), nil
	})
}

// resolveActor validates the requested acting faction, defaulting to
// the execution's player faction when none is named.
func (s *Server) resolveActor(e *entry, requested string) (string, error) {
	if requested == "" {
		return e.exec.Config().PlayerFaction, nil
	}
	if _, ok := s.deps.Scenario.Faction(requested); !ok {
		return "", fmt.Errorf("unknown faction %q", requested)
	}
	return requested, nil
}

// counterpart picks the faction the player is negotiating with: the
// first scenario faction that is not the player.
func (s *Server) counterpart(player string) string {
	for _, name := range s.deps.Scenario.FactionNames() {
		if name != player {
			return name
		}
	}
	return player
}

func (s *Server) lookup(executionID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[executionID]
	return e, ok
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, execution.ErrTerminal):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, execution.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, execution.ErrNoAttempt):
		writeError(w, http.StatusBadRequest, err)
	case execution.IsPermanent(err):
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("warning: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
