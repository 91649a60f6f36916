package server

import (
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/deploy"
	"github.com/jonathan/codecraft/internal/github"
)

// DeployRequest asks for a repository branch to be deployed. When ProjectID
// names a stored project, its deployment URL is updated.
type DeployRequest struct {
	Project   string     `json:"project" validate:"required"`
	RepoURL   string     `json:"repoUrl" validate:"required"`
	Branch    string     `json:"branch,omitempty"`
	Target    string     `json:"target,omitempty" validate:"omitempty,oneof=production preview"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
}

// handleDeploy triggers a deployment of a GitHub repository.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Deployer == nil {
		s.failure(ctx, w, &ErrUnavailable{Feature: "deployments"})
		return
	}

	var req DeployRequest
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

	repo, err := s.deps.GitHub.GetRepository(ctx, ref)
	if err != nil {
		s.failure(ctx, w, err)
		return
	}
	branch := req.Branch
	if branch == "" {
		branch = repo.DefaultBranch
	}

	d, err := s.deps.Deployer.Deploy(ctx, deploy.DeployRequest{
		Project: req.Project,
		RepoID:  repo.ID,
		Branch:  branch,
		Target:  req.Target,
	})
	if err != nil {
		s.failure(ctx, w, err)
		return
	}

	if req.ProjectID != nil && s.deps.Projects != nil {
		if err := s.deps.Projects.SetDeploymentURL(ctx, *req.ProjectID, d.URL); err != nil {
			clog.FromContext(ctx).Warnf("Failed to record deployment URL for project %s: %v", req.ProjectID, err)
		}
	}
	s.jsonResponse(ctx, w, http.StatusAccepted, d)
}

// handleGetDeployment reports the state of a deployment.
func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Deployer == nil {
		s.failure(ctx, w, &ErrUnavailable{Feature: "deployments"})
		return
	}

	d, err := s.deps.Deployer.GetDeployment(ctx, r.PathValue("id"))
	if err != nil {
		s.failure(ctx, w, err)
		return
	}
	s.jsonResponse(ctx, w, http.StatusOK, d)
}
