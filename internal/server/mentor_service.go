package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/codecraft/internal/config"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/types"
)

// MentorService provides business logic for mentor authentication
type MentorService struct {
	store     MentorStore
	passwords *config.PasswordConfig
	tokens    *JWTService
}

// NewMentorService creates a new MentorService with the given dependencies
func NewMentorService(store MentorStore, passwords *config.PasswordConfig, tokens *JWTService) *MentorService {
	return &MentorService{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
	}
}

// Register creates a mentor account and signs a token for it
func (s *MentorService) Register(ctx context.Context, req *types.RegisterMentorRequest) (*types.LoginResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.store.GetMentorByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existing != nil {
		return nil, &ErrEmailAlreadyExists{Email: db.NormalizeEmail(req.Email)}
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	mentor := &db.Mentor{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Expertise:    db.StringArray(req.Expertise),
		Bio:          req.Bio,
	}
	if err := s.store.CreateMentor(ctx, mentor); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, db.ErrEmailTaken) {
			return nil, &ErrEmailAlreadyExists{Email: db.NormalizeEmail(req.Email)}
		}
		return nil, fmt.Errorf("failed to create mentor: %w", err)
	}

	return s.issue(mentor)
}

// Login authenticates a mentor by email and password
func (s *MentorService) Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	mentor, err := s.store.GetMentorByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get mentor by email: %w", err)
	}
	// Unknown email and wrong password are indistinguishable to the caller.
	if mentor == nil || !s.passwords.VerifyPassword(req.Password, mentor.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}

	return s.issue(mentor)
}

func (s *MentorService) issue(mentor *db.Mentor) (*types.LoginResponse, error) {
	token, err := s.tokens.GenerateToken(mentor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &types.LoginResponse{Mentor: mentor.ToAPI(), Token: token}, nil
}
