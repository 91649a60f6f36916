package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/types"
)

// User is a GitHub-linked developer account
type User struct {
	ID          uuid.UUID `json:"id"`
	GitHubLogin string    `json:"githubLogin" validate:"required"`
	Name        string    `json:"name"`
	Email       string    `json:"email" validate:"omitempty,email"`
	AvatarURL   string    `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Project is a showcased repository
type Project struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       *uuid.UUID  `json:"ownerId,omitempty"`
	Name          string      `json:"name" validate:"required"`
	Description   string      `json:"description"`
	RepoURL       string      `json:"repoUrl,omitempty" validate:"omitempty,url"`
	TechStack     StringArray `json:"techStack"`
	DeploymentURL string      `json:"deploymentUrl,omitempty" validate:"omitempty,url"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Mentor is a mentor account
type Mentor struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"` // Never serialize to JSON
	Expertise    StringArray `json:"expertise"`
	Bio          string      `json:"bio,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ToAPI returns the public view of the mentor.
func (m *Mentor) ToAPI() *types.Mentor {
	expertise := []string(m.Expertise)
	if expertise == nil {
		expertise = []string{}
	}
	return &types.Mentor{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Expertise: expertise,
		Bio:       m.Bio,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// StringArray handles JSONB string arrays
type StringArray []string

// Scan implements the Scanner interface for StringArray
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = []string{}
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return errors.New("type assertion .([]byte) failed")
	}
	return json.Unmarshal(source, a)
}

// Value implements the Valuer interface for StringArray
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}
