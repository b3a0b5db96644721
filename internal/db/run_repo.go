package db

import (
	"context"
	"database/sql"
	"fmt"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO runs (id, project_id, pid, status, exit_code, started_at, exited_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.ProjectID, run.PID, run.Status, run.ExitCode,
		formatTimestamp(run.StartedAt), formatTimestampOrEmpty(run.ExitedAt))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// MarkExited finalizes a run record when the supervised process ends.
func (r *RunRepo) MarkExited(ctx context.Context, id string, status string, exitCode int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE runs SET status = ?, exit_code = ?, exited_at = ? WHERE id = ?
`, status, exitCode, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to mark run %q exited: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, project_id, pid, status, exit_code, started_at, exited_at
FROM runs
WHERE id = ?
`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run %q: %w", id, err)
	}
	return run, nil
}

func (r *RunRepo) ListByProject(ctx context.Context, projectID string) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, project_id, pid, status, exit_code, started_at, exited_at
FROM runs
WHERE project_id = ?
ORDER BY started_at DESC, id DESC
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for project %q: %w", projectID, err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAtRaw, exitedAtRaw string

	if err := row.Scan(&run.ID, &run.ProjectID, &run.PID, &run.Status, &run.ExitCode, &startedAtRaw, &exitedAtRaw); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = parseTimestamp(startedAtRaw); err != nil {
		return nil, err
	}
	if run.ExitedAt, err = parseOptionalTimestamp(exitedAtRaw); err != nil {
		return nil, err
	}
	return &run, nil
}
