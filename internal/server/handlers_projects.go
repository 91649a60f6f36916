package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/db"
)

// ProjectRequest is the body of project create and update calls.
type ProjectRequest struct {
	OwnerID       *uuid.UUID `json:"ownerId,omitempty"`
	Name          string     `json:"name" validate:"required"`
	Description   string     `json:"description,omitempty"`
	RepoURL       string     `json:"repoUrl,omitempty" validate:"omitempty,url"`
	TechStack     []string   `json:"techStack,omitempty"`
	DeploymentURL string     `json:"deploymentUrl,omitempty" validate:"omitempty,url"`
}

func (req *ProjectRequest) toProject(id uuid.UUID) *db.Project {
	return &db.Project{
		ID:            id,
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		Description:   req.Description,
		RepoURL:       req.RepoURL,
		TechStack:     db.StringArray(req.TechStack),
		DeploymentURL: req.DeploymentURL,
	}
}

// handleListProjects lists projects, optionally filtered by ?ownerId.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var (
		projects []db.Project
		err      error
	)
	if raw := r.URL.Query().Get("ownerId"); raw != "" {
		ownerID, perr := uuid.Parse(raw)
		if perr != nil {
			s.failure(r.Context(), w, &ErrValidation{Field: "ownerId", Message: "Invalid UUID"})
			return
		}
		projects, err = s.deps.Projects.ListProjectsByOwner(r.Context(), ownerID)
	} else {
		projects, err = s.deps.Projects.ListProjects(r.Context())
	}
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(projects))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	project, err := s.deps.Projects.GetProject(r.Context(), id)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if project == nil {
		s.failure(r.Context(), w, &ErrNotFound{Resource: "project", ID: id.String()})
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, project)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	project := req.toProject(uuid.Nil)
	if err := s.deps.Projects.CreateProject(r.Context(), project); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusCreated, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	var req ProjectRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	project := req.toProject(id)
	if err := s.deps.Projects.UpdateProject(r.Context(), project); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := s.deps.Projects.DeleteProject(r.Context(), id); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
