package server

import (
	"net/http"

	"github.com/jonathan/codecraft/internal/implementation"
)

// handleGenerate implements one recommendation. Execution failures come back
// as a failed job with status 200; only request errors change the status code.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req implementation.GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	job, err := s.deps.Implementer.Generate(r.Context(), req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, job)
}

// handleBatch implements several recommendations against one repository.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req implementation.BatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	batch, err := s.deps.Implementer.Batch(r.Context(), req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, batch)
}

// handleStatus returns one job when implementationId is given, otherwise the
// repository's job history, most recent first.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.deps.Implementer.Status(r.Context(), q.Get("repoUrl"), q.Get("implementationId"))
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if result.Job != nil {
		s.jsonResponse(r.Context(), w, http.StatusOK, result.Job)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, result.Jobs)
}

// handlePlan describes what a batch would do without cloning or opening PRs.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req implementation.PlanRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	plans, err := s.deps.Implementer.Plan(r.Context(), req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, plans)
}
