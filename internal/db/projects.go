package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const projectColumns = `id, owner_id, name, description, repo_url, tech_stack, deployment_url, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.RepoURL, &p.TechStack,
		&p.DeploymentURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject inserts a project and fills in its id and timestamps
func (db *DB) CreateProject(ctx context.Context, p *Project) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO projects (owner_id, name, description, repo_url, tech_stack, deployment_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Name, p.Description, p.RepoURL, p.TechStack, p.DeploymentURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	p, err := scanProject(db.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects retrieves all projects, newest first
func (db *DB) ListProjects(ctx context.Context) ([]Project, error) {
	return db.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
}

// ListProjectsByOwner retrieves the projects of one user, newest first
func (db *DB) ListProjectsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	return db.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (db *DB) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject updates the mutable fields of a project
func (db *DB) UpdateProject(ctx context.Context, p *Project) error {
	err := db.pool.QueryRow(ctx,
		`UPDATE projects
		 SET owner_id = $1, name = $2, description = $3, repo_url = $4, tech_stack = $5,
		     deployment_url = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING created_at, updated_at`,
		p.OwnerID, p.Name, p.Description, p.RepoURL, p.TechStack, p.DeploymentURL, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("project", p.ID)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// SetDeploymentURL records where a project was deployed
func (db *DB) SetDeploymentURL(ctx context.Context, id uuid.UUID, url string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE projects SET deployment_url = $1, updated_at = NOW() WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("failed to set deployment url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("project", id)
	}
	return nil
}

// DeleteProject deletes a project
func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("project", id)
	}
	return nil
}
