package db

import (
	"context"
	"database/sql"
	"fmt"
)

type ProjectRepo struct {
	db *sql.DB
}

func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) Create(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = NewID()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = nowUTC()
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = project.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO projects (id, name, path, start_command, port, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, project.ID, project.Name, project.Path, project.StartCommand, project.Port, project.Status,
		formatTimestamp(project.CreatedAt), formatTimestamp(project.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *ProjectRepo) Get(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, path, start_command, port, status, created_at, updated_at
FROM projects
WHERE id = ?
`, id)
	project, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project %q: %w", id, err)
	}
	return project, nil
}

func (r *ProjectRepo) List(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, path, start_command, port, status, created_at, updated_at
FROM projects
ORDER BY name ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *ProjectRepo) Update(ctx context.Context, project *Project) error {
	project.UpdatedAt = nowUTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE projects
SET name = ?, path = ?, start_command = ?, port = ?, status = ?, updated_at = ?
WHERE id = ?
`, project.Name, project.Path, project.StartCommand, project.Port, project.Status,
		formatTimestamp(project.UpdatedAt), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project %q: %w", project.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check project update %q: %w", project.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("project %q not found", project.ID)
	}
	return nil
}

// SetPort records a bulk-assigned port on the project row.
func (r *ProjectRepo) SetPort(ctx context.Context, id string, port int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE projects SET port = ?, updated_at = ? WHERE id = ?
`, port, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to set port for project %q: %w", id, err)
	}
	return nil
}

func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check project delete %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("project %q not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var createdAtRaw, updatedAtRaw string

	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.StartCommand, &p.Port, &p.Status, &createdAtRaw, &updatedAtRaw); err != nil {
		return nil, err
	}

	var err error
	if p.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAtRaw); err != nil {
		return nil, err
	}
	return &p, nil
}
