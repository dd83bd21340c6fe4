package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/session"
)

// scriptedCompleter replays canned responses and records requests.
type scriptedCompleter struct {
	responses []string
	requests  []llm.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

const validPlanJSON = `{
  "components": [
    {"id": "navbar", "file_path": "src/components/Navbar.tsx",
     "exported_symbols": [{"name": "Navbar"}]},
    {"id": "app", "file_path": "src/App.tsx", "dependency_ids": ["navbar"]}
  ]
}`

func newSession(t *testing.T) (*session.Store, *session.Session) {
	t.Helper()
	store := session.NewStore()
	sess := store.GetOrCreate("")
	sess.Lock()
	t.Cleanup(sess.Unlock)
	return store, sess
}

func TestPlanClarification(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{"What should the dashboard display?"}}
	_, sess := newSession(t)

	p := New(fake, "test-model", 3)
	result, err := p.Plan(context.Background(), sess, "build me a dashboard")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if result.IsReady() {
		t.Fatal("expected clarification, got plan")
	}
	if result.Question != "What should the dashboard display?" {
		t.Errorf("unexpected question: %q", result.Question)
	}
	if sess.Phase() != session.PhaseAwaitingClarification {
		t.Errorf("expected phase awaiting_clarification, got %s", sess.Phase())
	}
}

func TestPlanReady(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{validPlanJSON}}
	_, sess := newSession(t)

	p := New(fake, "test-model", 3)
	result, err := p.Plan(context.Background(), sess, "build a todo app")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if !result.IsReady() {
		t.Fatalf("expected ready plan, got question %q", result.Question)
	}
	if len(result.Plan.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(result.Plan.Components))
	}
	if result.Plan.SessionID != sess.ID {
		t.Errorf("plan session id %q does not match session %q", result.Plan.SessionID, sess.ID)
	}
	if sess.Phase() != session.PhaseAcquired {
		t.Errorf("expected phase plan_acquired, got %s", sess.Phase())
	}
}

func TestPlanRetriesMalformedOutput(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{
		`{"components": [`, // truncated JSON
		`{"components": [{"id": "", "file_path": "a.tsx"}]}`, // structurally invalid
		validPlanJSON,
	}}
	_, sess := newSession(t)

	p := New(fake, "test-model", 3)
	result, err := p.Plan(context.Background(), sess, "build a todo app")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !result.IsReady() {
		t.Fatal("expected ready plan on third attempt")
	}
	if len(fake.requests) != 3 {
		t.Errorf("expected 3 planning calls, got %d", len(fake.requests))
	}

	// Each retry appends a corrective message to the request context.
	last := fake.requests[2]
	corrective := last.Messages[len(last.Messages)-1]
	if corrective.Role != llm.RoleUser || !strings.Contains(corrective.Content, "not a valid plan") {
		t.Errorf("expected trailing corrective message, got %+v", corrective)
	}
}

func TestPlanBudgetExhausted(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{
		`{"components": [`,
		`{"components": [`,
		validPlanJSON, // never reached with budget 2
	}}
	_, sess := newSession(t)

	p := New(fake, "test-model", 2)
	_, err := p.Plan(context.Background(), sess, "build a todo app")
	if err == nil {
		t.Fatal("expected PlanningError")
	}

	var planErr *PlanningError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanningError, got %T: %v", err, err)
	}
	if planErr.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", planErr.Attempts)
	}
	if len(fake.requests) != 2 {
		t.Errorf("expected 2 planning calls, got %d", len(fake.requests))
	}
}

func TestPlanReplanningDiscardsPreviousResult(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{validPlanJSON, "Which colour scheme?"}}
	_, sess := newSession(t)

	p := New(fake, "test-model", 3)
	if _, err := p.Plan(context.Background(), sess, "build a todo app"); err != nil {
		t.Fatalf("first round failed: %v", err)
	}
	if sess.Phase() != session.PhaseAcquired {
		t.Fatalf("expected acquired after first round, got %s", sess.Phase())
	}

	// A new round on an acquired session re-enters planning.
	result, err := p.Plan(context.Background(), sess, "actually make it a notes app")
	if err != nil {
		t.Fatalf("second round failed: %v", err)
	}
	if result.IsReady() {
		t.Fatal("expected clarification in second round")
	}
	if sess.Phase() != session.PhaseAwaitingClarification {
		t.Errorf("expected awaiting_clarification, got %s", sess.Phase())
	}
}

func TestParseResponseFencedPlan(t *testing.T) {
	raw := "```json\n" + validPlanJSON + "\n```"
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !result.IsReady() {
		t.Fatal("expected plan from fenced JSON")
	}
}

func TestParseResponseEmpty(t *testing.T) {
	if _, err := ParseResponse("   \n"); err == nil {
		t.Fatal("expected error for empty response")
	}
}
