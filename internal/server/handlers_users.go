package server

import (
	"net/http"

	"github.com/jonathan/codecraft/internal/db"
)

// UserRequest is the body of user create and update calls.
type UserRequest struct {
	GitHubLogin string `json:"githubLogin" validate:"required"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	AvatarURL   string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.ListUsers(r.Context())
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(users))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	user, err := s.deps.Users.GetUser(r.Context(), id)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if user == nil {
		s.failure(r.Context(), w, &ErrNotFound{Resource: "user", ID: id.String()})
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	existing, err := s.deps.Users.GetUserByLogin(r.Context(), req.GitHubLogin)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if existing != nil {
		s.failure(r.Context(), w, &ErrConflict{Resource: "user", Field: "githubLogin", Value: req.GitHubLogin})
		return
	}

	user := &db.User{
		GitHubLogin: req.GitHubLogin,
		Name:        req.Name,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
	}
	if err := s.deps.Users.CreateUser(r.Context(), user); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusCreated, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	var req UserRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	user := &db.User{
		ID:          id,
		GitHubLogin: req.GitHubLogin,
		Name:        req.Name,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
	}
	if err := s.deps.Users.UpdateUser(r.Context(), user); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := s.deps.Users.DeleteUser(r.Context(), id); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListUserProjects lists the projects owned by a user.
func (s *Server) handleListUserProjects(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	projects, err := s.deps.Projects.ListProjectsByOwner(r.Context(), id)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, emptyIfNil(projects))
}
