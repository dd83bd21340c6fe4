package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forgeline/forgeline/internal/graph"
	"github.com/forgeline/forgeline/internal/pipeline"
	"github.com/forgeline/forgeline/internal/scheduler"
	"github.com/forgeline/forgeline/pkg/models"
)

type fakeSubmitter struct {
	result   *pipeline.Result
	err      error
	sessions map[string]bool
}

func (f *fakeSubmitter) Submit(_ context.Context, _, _ string) (*pipeline.Result, error) {
	return f.result, f.err
}

func (f *fakeSubmitter) Reset(id string) bool {
	if f.sessions[id] {
		delete(f.sessions, id)
		return true
	}
	return false
}

type fakeAssembler struct {
	materialized bool
}

func (f *fakeAssembler) Materialize(_ context.Context, sessionID string, _ *models.Plan, _ models.Manifest) (string, error) {
	f.materialized = true
	return "/projects/" + sessionID, nil
}

func (f *fakeAssembler) Archive(dir string) (string, error) {
	return dir + ".zip", nil
}

func postInstructions(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) instructionsResponse {
	t.Helper()
	var resp instructionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func testResultComplete() *pipeline.Result {
	return &pipeline.Result{
		SessionID: "sess-1",
		Plan: &models.Plan{
			SessionID: "sess-1",
			Components: []models.ComponentSpec{
				{ID: "navbar", FilePath: "src/Navbar.tsx"},
			},
		},
		Manifest: models.Manifest{"navbar": "export const Navbar = () => null;"},
	}
}

func TestInstructionsComplete(t *testing.T) {
	assembler := &fakeAssembler{}
	s := New(&fakeSubmitter{result: testResultComplete()}, assembler)

	rec := postInstructions(t, s, `{"instructions": "build a navbar"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode(t, rec)
	if resp.Status != pipeline.OutcomeComplete {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.Files["src/Navbar.tsx"] != "export const Navbar = () => null;" {
		t.Errorf("files keyed by path expected, got %v", resp.Files)
	}
	if !assembler.materialized || resp.ProjectDir != "/projects/sess-1" || resp.Archive != "/projects/sess-1.zip" {
		t.Errorf("expected materialized project, got %+v", resp)
	}
}

func TestInstructionsClarification(t *testing.T) {
	s := New(&fakeSubmitter{result: &pipeline.Result{
		SessionID: "sess-1",
		Question:  "Which pages do you need?",
	}}, nil)

	resp := decode(t, postInstructions(t, s, `{"instructions": "build an app"}`))
	if resp.Status != pipeline.OutcomeClarification || resp.Question != "Which pages do you need?" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestInstructionsPartialFailure(t *testing.T) {
	result := testResultComplete()
	result.Manifest = nil
	result.Failure = &scheduler.PartialFailure{
		Done: models.Manifest{"navbar": "export const Navbar = () => null;"},
		Failed: []models.ComponentFailure{
			{ComponentID: "footer", Kind: models.FailureImplementation, Attempts: 3, Error: "refused"},
		},
		Blocked: []string{"app"},
	}
	s := New(&fakeSubmitter{result: result}, nil)

	rec := postInstructions(t, s, `{"instructions": "build an app"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Status != pipeline.OutcomePartialFailure {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].ComponentID != "footer" {
		t.Errorf("unexpected failed set: %+v", resp.Failed)
	}
	if len(resp.Blocked) != 1 || resp.Blocked[0] != "app" {
		t.Errorf("unexpected blocked set: %v", resp.Blocked)
	}
	if len(resp.Files) != 1 {
		t.Errorf("expected done subset in files, got %v", resp.Files)
	}
}

func TestInstructionsValidation(t *testing.T) {
	s := New(&fakeSubmitter{}, nil)

	if rec := postInstructions(t, s, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid body, got %d", rec.Code)
	}
	if rec := postInstructions(t, s, `{"instructions": ""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty instructions, got %d", rec.Code)
	}
}

func TestInstructionsStructuralErrorStatus(t *testing.T) {
	s := New(&fakeSubmitter{err: &graph.CyclicDependencyError{Members: []string{"a", "b", "a"}}}, nil)

	rec := postInstructions(t, s, `{"instructions": "build something circular"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for cyclic plan, got %d", rec.Code)
	}
}

func TestReset(t *testing.T) {
	s := New(&fakeSubmitter{sessions: map[string]bool{"sess-1": true}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/reset", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/reset", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := New(&fakeSubmitter{}, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
