// Package scheduler drives concurrent synthesis calls in dependency order,
// with bounded concurrency, per-component retry, and failure propagation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/forgeline/forgeline/internal/graph"
	"github.com/forgeline/forgeline/internal/sanitize"
	"github.com/forgeline/forgeline/pkg/models"
)

// ErrEmptySource indicates synthesis output was empty after sanitization.
// It is retried under the same policy as any other attempt failure.
var ErrEmptySource = errors.New("synthesis produced empty source after sanitization")

// DependencySummary is the interface contract a component is synthesized
// against: its dependency's identity and declared exports, taken literally
// from the plan rather than from generated text, so synthesis order never
// changes what a sibling receives.
type DependencySummary struct {
	// ID is the dependency's component ID.
	ID string
	// FilePath is where the dependency will live in the project.
	FilePath string
	// ExportedSymbols is the dependency's declared export list.
	ExportedSymbols []models.ExportedSymbol
}

// Synthesizer produces raw source text for a single component.
type Synthesizer interface {
	Synthesize(ctx context.Context, spec models.ComponentSpec, deps []DependencySummary) (string, error)
}

// SynthesizeFunc adapts a function to the Synthesizer interface.
type SynthesizeFunc func(ctx context.Context, spec models.ComponentSpec, deps []DependencySummary) (string, error)

// Synthesize calls the function.
func (f SynthesizeFunc) Synthesize(ctx context.Context, spec models.ComponentSpec, deps []DependencySummary) (string, error) {
	return f(ctx, spec, deps)
}

// Config bounds the scheduler's concurrency and retry behavior. The caller
// chooses the values; the scheduler hardcodes nothing but the fallbacks.
type Config struct {
	// MaxConcurrency is the bound on in-flight synthesis calls. Values
	// below 1 are treated as 1.
	MaxConcurrency int
	// MaxAttempts is the per-component retry budget. Values below 1 are
	// treated as the default of 3.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts; attempt n waits
	// (n-1) * RetryBackoff, which keeps retries deterministic.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	return c
}

// PartialFailure enumerates the outcome of a run in which at least one
// component failed or was blocked. The successfully generated subset is
// returned for partial use.
type PartialFailure struct {
	// Done maps every completed component to its sanitized source.
	Done models.Manifest
	// Failed lists components whose synthesis exhausted the retry budget.
	Failed []models.ComponentFailure
	// Blocked lists components never attempted because an ancestor failed.
	Blocked []string
}

func (e *PartialFailure) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		failed = append(failed, f.ComponentID)
	}
	return fmt.Sprintf("generation incomplete: %d done, failed [%s], blocked [%s]",
		len(e.Done), strings.Join(failed, ", "), strings.Join(e.Blocked, ", "))
}

// Scheduler executes one validated dependency graph. A Scheduler instance is
// single-use: its execution-state table belongs to exactly one run.
type Scheduler struct {
	graph *graph.Graph
	synth Synthesizer
	cfg   Config
}

// New creates a Scheduler for the given graph and synthesis capability.
func New(g *graph.Graph, synth Synthesizer, cfg Config) *Scheduler {
	return &Scheduler{
		graph: g,
		synth: synth,
		cfg:   cfg.withDefaults(),
	}
}

// cell is the per-component state record, owned by the Execute loop.
type cell struct {
	state   State
	source  string
	failure *models.ComponentFailure
}

// completion is a worker's report back to the coordinating loop.
type completion struct {
	id      string
	source  string
	failure *models.ComponentFailure
}

// Execute fans out synthesis calls in dependency order until every component
// reaches a terminal state. It returns the complete manifest when every
// component is done, or a *PartialFailure error enumerating the failed and
// blocked components alongside the done subset.
//
// All state transitions happen on this goroutine; workers only perform the
// synthesis call and report over a channel, so readiness re-evaluation is
// free of lost updates. On context cancellation Execute returns the context
// error and the run's state table is simply discarded.
func (s *Scheduler) Execute(ctx context.Context) (models.Manifest, error) {
	cells := make(map[string]*cell, s.graph.Size())
	for _, id := range s.graph.ComponentIDs() {
		cells[id] = &cell{state: StatePending}
	}

	// Seed the ready queue with the zero-dependency frontier, ordered by
	// component ID for reproducible launch order.
	var queue []string
	for _, id := range s.graph.Roots() {
		cells[id].state = StateReady
		queue = append(queue, id)
	}

	// Buffered so late workers never block after cancellation.
	results := make(chan completion, s.graph.Size())
	inflight := 0
	terminal := 0

	for terminal < s.graph.Size() {
		for inflight < s.cfg.MaxConcurrency && len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			cells[id].state = StateRunning
			inflight++
			log.Printf("[scheduler] launching %s (%d in flight)", id, inflight)
			go s.runComponent(ctx, id, results)
		}

		if inflight == 0 {
			// No work running and nothing ready: every remaining
			// component must already be terminal.
			break
		}

		select {
		case <-ctx.Done():
			// In-flight calls observe the same ctx and unwind on
			// their own; their components stay non-terminal.
			return nil, ctx.Err()

		case c := <-results:
			inflight--
			if c.failure != nil {
				cells[c.id].state = StateFailed
				cells[c.id].failure = c.failure
				terminal++
				terminal += s.blockDependents(c.id, cells)
				continue
			}

			cells[c.id].state = StateDone
			cells[c.id].source = c.source
			terminal++
			queue = s.promoteDependents(c.id, cells, queue)
		}
	}

	return s.collect(cells)
}

// promoteDependents moves dependents of a completed component from Pending
// to Ready once all of their dependencies are done, keeping the queue sorted
// by component ID.
func (s *Scheduler) promoteDependents(id string, cells map[string]*cell, queue []string) []string {
	for _, depID := range s.graph.Dependents(id) {
		if cells[depID].state != StatePending {
			continue
		}
		ready := true
		for _, need := range s.graph.Dependencies(depID) {
			if cells[need].state != StateDone {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		cells[depID].state = StateReady
		at := sort.SearchStrings(queue, depID)
		queue = append(queue, "")
		copy(queue[at+1:], queue[at:])
		queue[at] = depID
	}
	return queue
}

// blockDependents marks every transitive dependent of a failed component as
// Blocked and returns how many components newly reached a terminal state.
func (s *Scheduler) blockDependents(failedID string, cells map[string]*cell) int {
	blocked := 0
	for _, depID := range s.graph.TransitiveDependents(failedID) {
		if cells[depID].state == StatePending {
			cells[depID].state = StateBlocked
			blocked++
			log.Printf("[scheduler] blocked %s (depends on failed %s)", depID, failedID)
		}
	}
	return blocked
}

// runComponent performs the bounded retry loop for one component and reports
// exactly one completion. Retries reuse identical inputs with a deterministic
// backoff between attempts.
func (s *Scheduler) runComponent(ctx context.Context, id string, results chan<- completion) {
	spec, _ := s.graph.Spec(id)
	deps := s.dependencySummaries(id)

	var lastErr error
	kind := models.FailureImplementation

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 && s.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			case <-time.After(time.Duration(attempt-1) * s.cfg.RetryBackoff):
			}
		}

		raw, err := s.synth.Synthesize(ctx, spec, deps)
		if err != nil {
			lastErr = err
			kind = models.FailureImplementation
			log.Printf("[scheduler] %s attempt %d/%d failed: %v", id, attempt, s.cfg.MaxAttempts, err)
			continue
		}

		source := sanitize.Clean(raw)
		if source == "" {
			lastErr = ErrEmptySource
			kind = models.FailureSanitization
			log.Printf("[scheduler] %s attempt %d/%d produced empty source", id, attempt, s.cfg.MaxAttempts)
			continue
		}

		results <- completion{id: id, source: source}
		return
	}

done:
	results <- completion{id: id, failure: &models.ComponentFailure{
		ComponentID: id,
		Kind:        kind,
		Attempts:    s.cfg.MaxAttempts,
		Error:       lastErr.Error(),
	}}
}

// dependencySummaries builds the exported-symbol summaries a component's
// synthesis call receives for each of its dependencies.
func (s *Scheduler) dependencySummaries(id string) []DependencySummary {
	depIDs := s.graph.Dependencies(id)
	summaries := make([]DependencySummary, 0, len(depIDs))
	for _, depID := range depIDs {
		depSpec, _ := s.graph.Spec(depID)
		summaries = append(summaries, DependencySummary{
			ID:              depSpec.ID,
			FilePath:        depSpec.FilePath,
			ExportedSymbols: depSpec.ExportedSymbols,
		})
	}
	return summaries
}

// collect assembles the final manifest or partial failure from the state
// table once every component is terminal.
func (s *Scheduler) collect(cells map[string]*cell) (models.Manifest, error) {
	done := make(models.Manifest)
	var failed []models.ComponentFailure
	var blocked []string

	for _, id := range s.graph.ComponentIDs() {
		c := cells[id]
		switch c.state {
		case StateDone:
			done[id] = c.source
		case StateFailed:
			failed = append(failed, *c.failure)
		case StateBlocked:
			blocked = append(blocked, id)
		}
	}

	if len(failed) == 0 && len(blocked) == 0 {
		return done, nil
	}
	return nil, &PartialFailure{Done: done, Failed: failed, Blocked: blocked}
}
