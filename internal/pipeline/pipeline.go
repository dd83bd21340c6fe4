// Package pipeline coordinates a full generation round: planning against the
// session, graph validation, and scheduled synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/forgeline/forgeline/internal/graph"
	"github.com/forgeline/forgeline/internal/planner"
	"github.com/forgeline/forgeline/internal/scheduler"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/pkg/models"
)

// Outcome names how a submission round ended.
const (
	OutcomeClarification  = "clarification"
	OutcomeComplete       = "complete"
	OutcomePartialFailure = "partial_failure"
)

// RunRecord summarizes one submission round for persistence.
type RunRecord struct {
	SessionID      string
	Instructions   string
	Outcome        string
	ComponentCount int
	DoneCount      int
	FailedCount    int
	BlockedCount   int
}

// Recorder persists run history. Recording failures are logged, never
// surfaced: history is an observability concern, not part of the result.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Result is the outcome of one submission round. Exactly one of Question,
// Manifest, or Failure is populated.
type Result struct {
	// SessionID identifies the session the round ran under.
	SessionID string
	// Question is set when the planner needs clarification before planning.
	Question string
	// Plan is the acquired plan; nil on clarification rounds.
	Plan *models.Plan
	// Manifest is set when every component was generated.
	Manifest models.Manifest
	// Failure is set when generation completed with failed or blocked
	// components; it carries the done subset.
	Failure *scheduler.PartialFailure
}

// Pipeline runs submission rounds. It is safe for concurrent use; rounds on
// the same session serialize on the session lock.
type Pipeline struct {
	planner  *planner.Planner
	synth    scheduler.Synthesizer
	sessions *session.Store
	schedCfg scheduler.Config
	recorder Recorder
}

// New creates a Pipeline. recorder may be nil to disable run history.
func New(p *planner.Planner, synth scheduler.Synthesizer, sessions *session.Store, schedCfg scheduler.Config, recorder Recorder) *Pipeline {
	return &Pipeline{
		planner:  p,
		synth:    synth,
		sessions: sessions,
		schedCfg: schedCfg,
		recorder: recorder,
	}
}

// Sessions exposes the session store, for reset handling.
func (pl *Pipeline) Sessions() *session.Store {
	return pl.sessions
}

// Submit runs one round for the given session: plan (or ask for
// clarification), validate the dependency graph, and execute synthesis. An
// empty sessionID starts a new session. Structural plan errors (unknown
// dependencies, cycles) are returned before any synthesis call is made.
func (pl *Pipeline) Submit(ctx context.Context, sessionID, instructions string) (*Result, error) {
	sess := pl.sessions.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()

	planResult, err := pl.planner.Plan(ctx, sess, instructions)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}

	if !planResult.IsReady() {
		log.Printf("[pipeline] session %s: clarification needed", sess.ID)
		pl.record(ctx, RunRecord{
			SessionID:    sess.ID,
			Instructions: instructions,
			Outcome:      OutcomeClarification,
		})
		return &Result{SessionID: sess.ID, Question: planResult.Question}, nil
	}

	g, err := graph.Build(planResult.Plan)
	if err != nil {
		return nil, fmt.Errorf("session %s: invalid plan: %w", sess.ID, err)
	}

	log.Printf("[pipeline] session %s: executing %d components", sess.ID, g.Size())
	manifest, err := scheduler.New(g, pl.synth, pl.schedCfg).Execute(ctx)
	if err != nil {
		var partial *scheduler.PartialFailure
		if !errors.As(err, &partial) {
			return nil, fmt.Errorf("session %s: %w", sess.ID, err)
		}
		pl.record(ctx, RunRecord{
			SessionID:      sess.ID,
			Instructions:   instructions,
			Outcome:        OutcomePartialFailure,
			ComponentCount: g.Size(),
			DoneCount:      len(partial.Done),
			FailedCount:    len(partial.Failed),
			BlockedCount:   len(partial.Blocked),
		})
		return &Result{SessionID: sess.ID, Plan: planResult.Plan, Failure: partial}, nil
	}

	pl.record(ctx, RunRecord{
		SessionID:      sess.ID,
		Instructions:   instructions,
		Outcome:        OutcomeComplete,
		ComponentCount: g.Size(),
		DoneCount:      len(manifest),
	})
	return &Result{SessionID: sess.ID, Plan: planResult.Plan, Manifest: manifest}, nil
}

// Reset discards the given session's conversation and plan state.
func (pl *Pipeline) Reset(sessionID string) bool {
	return pl.sessions.Clear(sessionID)
}

func (pl *Pipeline) record(ctx context.Context, rec RunRecord) {
	if pl.recorder == nil {
		return
	}
	if err := pl.recorder.RecordRun(ctx, rec); err != nil {
		log.Printf("[pipeline] failed to record run for session %s: %v", rec.SessionID, err)
	}
}
