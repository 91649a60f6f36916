// Package server provides the HTTP REST API for the codecraft service.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/codecraft/internal/analysis"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/deploy"
	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/implementation"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrConflict indicates a uniqueness constraint would be violated
type ErrConflict struct {
	Resource string
	Field    string
	Value    string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Resource, e.Field, e.Value)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates the requested resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnavailable indicates an optional integration is not configured
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not configured", e.Feature)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation     *ErrValidation
		implValidation *implementation.ValidationError
		notFound       *ErrNotFound
		implNotFound   *implementation.NotFoundError
		emailTaken     *ErrEmailAlreadyExists
		conflict       *ErrConflict
		credentials    *ErrInvalidCredentials
		unavailable    *ErrUnavailable
		ghErr          *github.UpstreamError
		deployErr      *deploy.UpstreamError
		reportErr      *analysis.ReportError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation), errors.As(err, &implValidation):
		return http.StatusBadRequest
	case errors.As(err, &credentials):
		return http.StatusUnauthorized
	case errors.As(err, &notFound), errors.As(err, &implNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &emailTaken), errors.As(err, &conflict), errors.Is(err, db.ErrEmailTaken):
		return http.StatusConflict
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gemini.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &ghErr):
		return upstreamStatus(ghErr.StatusCode)
	case errors.As(err, &deployErr):
		return upstreamStatus(deployErr.StatusCode)
	case errors.As(err, &reportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// upstreamStatus passes through "not found" and "invalid request" from a
// dependency and reports everything else as a bad gateway.
func upstreamStatus(code int) int {
	switch code {
	case http.StatusNotFound:
		return http.StatusNotFound
	case http.StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
