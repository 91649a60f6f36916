package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/server/middleware"
	"github.com/jonathan/codecraft/internal/types"
)

// UpdateMentorRequest holds the editable mentor profile fields.
type UpdateMentorRequest struct {
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Expertise []string `json:"expertise,omitempty"`
	Bio       string   `json:"bio,omitempty"`
}

func (s *Server) handleRegisterMentor(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterMentorRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	resp, err := s.mentors.Register(r.Context(), &req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusCreated, resp)
}

func (s *Server) handleLoginMentor(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	resp, err := s.mentors.Login(r.Context(), &req)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) handleListMentors(w http.ResponseWriter, r *http.Request) {
	mentors, err := s.deps.Mentors.ListMentors(r.Context())
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	out := make([]*types.Mentor, 0, len(mentors))
	for i := range mentors {
		out = append(out, mentors[i].ToAPI())
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, out)
}

func (s *Server) handleGetMentor(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	mentor, err := s.deps.Mentors.GetMentor(r.Context(), id)
	if err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if mentor == nil {
		s.failure(r.Context(), w, &ErrNotFound{Resource: "mentor", ID: id.String()})
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, mentor.ToAPI())
}

func (s *Server) handleUpdateMentor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownMentorID(w, r)
	if !ok {
		return
	}
	var req UpdateMentorRequest
	if err := decodeBody(r, &req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		s.failure(r.Context(), w, err)
		return
	}

	mentor := &db.Mentor{
		ID:        id,
		Name:      req.Name,
		Email:     req.Email,
		Expertise: db.StringArray(req.Expertise),
		Bio:       req.Bio,
	}
	if err := s.deps.Mentors.UpdateMentor(r.Context(), mentor); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, mentor.ToAPI())
}

func (s *Server) handleDeleteMentor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownMentorID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Mentors.DeleteMentor(r.Context(), id); err != nil {
		s.failure(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownMentorID parses the mentor id path parameter. With authentication on,
// mentors may only change their own account.
func (s *Server) ownMentorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(r.Context(), w, err)
		return uuid.Nil, false
	}
	if s.deps.JWT == nil {
		return id, true
	}
	caller, err := middleware.MentorID(r)
	if err != nil || caller != id {
		s.errorResponse(r.Context(), w, http.StatusForbidden, "Forbidden")
		return uuid.Nil, false
	}
	return id, true
}
