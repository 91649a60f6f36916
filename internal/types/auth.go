package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RegisterMentorRequest represents the request to create a new mentor account.
type RegisterMentorRequest struct {
	Name      string   `json:"name" validate:"required,min=1"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	Expertise []string `json:"expertise,omitempty"`
	Bio       string   `json:"bio,omitempty"`
}

// LoginRequest represents the mentor login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Mentor represents a mentor profile for API responses (avoids import cycle with db package).
type Mentor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Expertise []string  `json:"expertise"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginResponse represents the login/register response with mentor data and authentication token.
type LoginResponse struct {
	Mentor *Mentor `json:"mentor"`
	Token  string  `json:"token"`
}

// Validate validates the RegisterMentorRequest using the validator.
func (r *RegisterMentorRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
