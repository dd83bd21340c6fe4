// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/forgeline/forgeline/internal/graph"
	"github.com/forgeline/forgeline/internal/pipeline"
	"github.com/forgeline/forgeline/internal/planner"
	"github.com/forgeline/forgeline/pkg/models"
)

// Submitter runs generation rounds. Implemented by *pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, sessionID, instructions string) (*pipeline.Result, error)
	Reset(sessionID string) bool
}

// Materializer writes a completed manifest to disk and packages it.
// Implemented by *assemble.Assembler.
type Materializer interface {
	Materialize(ctx context.Context, sessionID string, plan *models.Plan, manifest models.Manifest) (string, error)
	Archive(projectDir string) (string, error)
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	submitter Submitter
	assembler Materializer
	mux       *http.ServeMux
}

// New creates a Server. assembler may be nil to return generated files inline
// only, without writing a project directory.
func New(submitter Submitter, assembler Materializer) *Server {
	s := &Server{
		submitter: submitter,
		assembler: assembler,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/v1/instructions", s.handleInstructions)
	s.mux.HandleFunc("POST /api/v1/sessions/{id}/reset", s.handleReset)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type instructionsRequest struct {
	SessionID    string `json:"session_id"`
	Instructions string `json:"instructions"`
}

type instructionsResponse struct {
	SessionID  string                    `json:"session_id"`
	Status     string                    `json:"status"`
	Question   string                    `json:"question,omitempty"`
	Files      map[string]string         `json:"files,omitempty"`
	Failed     []models.ComponentFailure `json:"failed,omitempty"`
	Blocked    []string                  `json:"blocked,omitempty"`
	ProjectDir string                    `json:"project_dir,omitempty"`
	Archive    string                    `json:"archive,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	var req instructionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Instructions == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "instructions must not be empty"})
		return
	}

	result, err := s.submitter.Submit(r.Context(), req.SessionID, req.Instructions)
	if err != nil {
		writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
		return
	}

	if result.Question != "" {
		writeJSON(w, http.StatusOK, instructionsResponse{
			SessionID: result.SessionID,
			Status:    pipeline.OutcomeClarification,
			Question:  result.Question,
		})
		return
	}

	if result.Failure != nil {
		writeJSON(w, http.StatusOK, instructionsResponse{
			SessionID: result.SessionID,
			Status:    pipeline.OutcomePartialFailure,
			Files:     filesByPath(result.Plan, result.Failure.Done),
			Failed:    result.Failure.Failed,
			Blocked:   result.Failure.Blocked,
		})
		return
	}

	resp := instructionsResponse{
		SessionID: result.SessionID,
		Status:    pipeline.OutcomeComplete,
		Files:     filesByPath(result.Plan, result.Manifest),
	}
	if s.assembler != nil {
		dir, err := s.assembler.Materialize(r.Context(), result.SessionID, result.Plan, result.Manifest)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "materializing project: " + err.Error()})
			return
		}
		archive, err := s.assembler.Archive(dir)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "archiving project: " + err.Error()})
			return
		}
		resp.ProjectDir = dir
		resp.Archive = archive
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.submitter.Reset(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session " + id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filesByPath re-keys a manifest from component IDs to plan file paths.
func filesByPath(plan *models.Plan, manifest models.Manifest) map[string]string {
	files := make(map[string]string, len(manifest))
	for _, id := range manifest.IDs() {
		if spec := plan.Component(id); spec != nil {
			files[spec.FilePath] = manifest[id]
		}
	}
	return files
}

// statusForError maps pipeline failures to HTTP status codes. Structural plan
// errors are the client's plan problem (unprocessable); planning-capability
// failures are upstream (bad gateway).
func statusForError(err error) int {
	var unknownDep *graph.UnknownDependencyError
	var cycle *graph.CyclicDependencyError
	if errors.As(err, &unknownDep) || errors.As(err, &cycle) {
		return http.StatusUnprocessableEntity
	}
	var planErr *planner.PlanningError
	if errors.As(err, &planErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] writing response: %v", err)
	}
}
