package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/codecraft/internal/github"
)

// MergeRequest is the body of a pull request merge.
type MergeRequest struct {
	CommitMessage string `json:"commitMessage,omitempty"`
	MergeMethod   string `json:"mergeMethod,omitempty" validate:"omitempty,oneof=merge squash rebase"`
}

// emptyIfNil keeps list responses encoded as [] rather than null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	repos, err := s.deps.GitHub.ListRepositories(r.Context(), opts)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(repos))
}

func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	repo, err := s.deps.GitHub.GetRepository(r.Context(), repoFromPath(r))
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, repo)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	branches, err := s.deps.GitHub.ListBranches(r.Context(), repoFromPath(r), opts)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(branches))
}

// handleListCommits lists commits, optionally on the branch named by ?branch.
func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	commits, err := s.deps.GitHub.ListCommits(r.Context(), repoFromPath(r), r.URL.Query().Get("branch"), opts)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(commits))
}

func (s *Server) handleListPulls(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	prs, err := s.deps.GitHub.ListPullRequests(r.Context(), repoFromPath(r), opts)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(prs))
}

func (s *Server) handleCreatePull(w http.ResponseWriter, r *http.Request) {
	var req github.NewPullRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	pr, err := s.deps.GitHub.CreatePullRequest(r.Context(), repoFromPath(r), req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusCreated, pr)
}

func (s *Server) handleUpdatePull(w http.ResponseWriter, r *http.Request) {
	number, err := pathNumber(r, "number")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	var upd github.PullRequestUpdate
	if err := decodeBody(r, &upd); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&upd); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	pr, err := s.deps.GitHub.UpdatePullRequest(r.Context(), repoFromPath(r), number, upd)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, pr)
}

// handleMergePull merges a pull request. An empty body merges with the
// repository's default commit message and method.
func (s *Server) handleMergePull(w http.ResponseWriter, r *http.Request) {
	number, err := pathNumber(r, "number")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	var req MergeRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	result, err := s.deps.GitHub.MergePullRequest(r.Context(), repoFromPath(r), number, req.CommitMessage, req.MergeMethod)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, result)
}

func (s *Server) handleClosePull(w http.ResponseWriter, r *http.Request) {
	number, err := pathNumber(r, "number")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	pr, err := s.deps.GitHub.ClosePullRequest(r.Context(), repoFromPath(r), number)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, pr)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	issues, err := s.deps.GitHub.ListIssues(r.Context(), repoFromPath(r), opts)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(issues))
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req github.IssueRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		s.failure(r.Context(), w, &ErrValidation{Field: "title", Message: "is required"})
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	issue, err := s.deps.GitHub.CreateIssue(r.Context(), repoFromPath(r), req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusCreated, issue)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	number, err := pathNumber(r, "number")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	var req github.IssueRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	issue, err := s.deps.GitHub.UpdateIssue(r.Context(), repoFromPath(r), number, req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, issue)
}

func (s *Server) handleCloseIssue(w http.ResponseWriter, r *http.Request) {
	number, err := pathNumber(r, "number")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	issue, err := s.deps.GitHub.CloseIssue(r.Context(), repoFromPath(r), number)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, issue)
}
