package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrEmailTaken is returned when a mentor email is already registered.
var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

const mentorColumns = `id, name, email, password_hash, expertise, bio, created_at, updated_at`

func scanMentor(row pgx.Row) (*Mentor, error) {
	var m Mentor
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.Expertise, &m.Bio, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateMentor inserts a mentor and fills in its id and timestamps
func (db *DB) CreateMentor(ctx context.Context, m *Mentor) error {
	m.Email = NormalizeEmail(m.Email)
	err := db.pool.QueryRow(ctx,
		`INSERT INTO mentors (name, email, password_hash, expertise, bio)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		m.Name, m.Email, m.PasswordHash, m.Expertise, m.Bio,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create mentor: %w", err)
	}
	return nil
}

// GetMentor retrieves a mentor by ID
func (db *DB) GetMentor(ctx context.Context, id uuid.UUID) (*Mentor, error) {
	m, err := scanMentor(db.pool.QueryRow(ctx, `SELECT `+mentorColumns+` FROM mentors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mentor: %w", err)
	}
	return m, nil
}

// GetMentorByEmail retrieves a mentor by email, case-insensitively
func (db *DB) GetMentorByEmail(ctx context.Context, email string) (*Mentor, error) {
	m, err := scanMentor(db.pool.QueryRow(ctx,
		`SELECT `+mentorColumns+` FROM mentors WHERE email = $1`, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mentor by email: %w", err)
	}
	return m, nil
}

// ListMentors retrieves all mentors ordered by name
func (db *DB) ListMentors(ctx context.Context) ([]Mentor, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+mentorColumns+` FROM mentors ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	defer rows.Close()

	mentors := []Mentor{}
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mentor: %w", err)
		}
		mentors = append(mentors, *m)
	}
	return mentors, rows.Err()
}

// UpdateMentor updates a mentor's profile. The password hash is left alone.
func (db *DB) UpdateMentor(ctx context.Context, m *Mentor) error {
	m.Email = NormalizeEmail(m.Email)
	err := db.pool.QueryRow(ctx,
		`UPDATE mentors SET name = $1, email = $2, expertise = $3, bio = $4, updated_at = NOW()
		 WHERE id = $5
		 RETURNING password_hash, created_at, updated_at`,
		m.Name, m.Email, m.Expertise, m.Bio, m.ID,
	).Scan(&m.PasswordHash, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("mentor", m.ID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update mentor: %w", err)
	}
	return nil
}

// DeleteMentor deletes a mentor
func (db *DB) DeleteMentor(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM mentors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mentor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("mentor", id)
	}
	return nil
}
