package server

import (
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/jonathan/codecraft/internal/analysis"
	"github.com/jonathan/codecraft/internal/github"
)

// AnalyzeRequest asks for an AI report on a repository.
type AnalyzeRequest struct {
	RepoURL string `json:"repoUrl" validate:"required"`
}

// handleAnalyze collects repository context from GitHub and returns an AI report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Analyzer == nil {
		s.failure(ctx, w, &ErrUnavailable{Feature: "analysis"})
		return
	}

	var req AnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(ctx, w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(ctx, w, err)
		return
	}
	ref, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		s.failure(ctx, w, &ErrValidation{Field: "repoUrl", Message: err.Error()})
		return
	}

	repo, err := analysis.Collect(ctx, s.deps.GitHub, ref)
	if err != nil {
		s.failure(ctx, w, err)
		return
	}

	report, err := s.deps.Analyzer.Analyze(ctx, repo)
	if err != nil {
		// The model itself failing is a dependency failure, not ours.
		if HTTPStatus(err) == http.StatusInternalServerError {
			clog.FromContext(ctx).Errorf("Analysis of %s failed: %v", ref.FullName(), err)
			s.errorResponse(ctx, w, http.StatusBadGateway, "analysis failed")
			return
		}
		s.failure(ctx, w, err)
		return
	}
	s.jsonResponse(ctx, w, http.StatusOK, report)
}
