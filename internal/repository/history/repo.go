package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/batchpix/batchpix/internal/model"
)

// Repository is the append-only run history: one row per job execution
// that reached a terminal state.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveRun inserts a finished run record.
func (r *Repository) SaveRun(ctx context.Context, run model.JobRun) error {
	query := `
		INSERT INTO job_runs (task_id, name, status, completed_count, failed_count, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
   `

	_, err := r.db.ExecContext(
		ctx, query,
		run.TaskID, run.Name, run.Status, run.CompletedCount, run.FailedCount, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]model.JobRun, error) {
	query := `
		SELECT task_id, name, status, completed_count, failed_count, finished_at
		FROM job_runs
		ORDER BY finished_at DESC
		LIMIT $1
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var run model.JobRun
		if err := rows.Scan(
			&run.TaskID, &run.Name, &run.Status,
			&run.CompletedCount, &run.FailedCount, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}

// RunsFor returns every recorded run of one task, newest first.
func (r *Repository) RunsFor(ctx context.Context, taskID uuid.UUID) ([]model.JobRun, error) {
	query := `
		SELECT task_id, name, status, completed_count, failed_count, finished_at
		FROM job_runs
		WHERE task_id = $1
		ORDER BY finished_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("runs for %s: %w", taskID, err)
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var run model.JobRun
		if err := rows.Scan(
			&run.TaskID, &run.Name, &run.Status,
			&run.CompletedCount, &run.FailedCount, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("runs for %s: scan: %w", taskID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runs for %s: %w", taskID, err)
	}

	return runs, nil
}
