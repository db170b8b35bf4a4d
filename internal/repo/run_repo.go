package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/mediacorr/internal/domain"
)

// RunRepo — история runs пайплайна.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create сохраняет run вместе с его jobs.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pipeline_runs (id, pipeline, namespace, trigger, status, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		run.ID,
		run.Pipeline,
		run.Namespace,
		nullString(run.Trigger),
		run.Status,
		run.StartedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range run.Jobs {
		queueJob(batch, run.ID, i, &run.Jobs[i])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert jobs: %w", err)
	}

	return tx.Commit(ctx)
}

// Update обновляет статус run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $2, failed_job = $3, error = $4, started_at = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(run.FailedJob),
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveJob сохраняет состояние job run'а.
func (r *RunRepo) SaveJob(ctx context.Context, runID uuid.UUID, position int, job *domain.JobRun) error {
	batch := &pgx.Batch{}
	queueJob(batch, runID, position, job)
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save job %s: %w", job.Name, err)
	}
	return nil
}

// GetByID возвращает run с jobs.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, pipeline, namespace, trigger, status, failed_job, error,
		       started_at, finished_at, created_at
		FROM pipeline_runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	run.Jobs, err = r.listJobs(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List возвращает runs без jobs, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	query := `
		SELECT id, pipeline, namespace, trigger, status, failed_job, error,
		       started_at, finished_at, created_at
		FROM pipeline_runs
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// MarkInterrupted переводит зависшие RUNNING runs в CANCELLED.
// Вызывается при старте serve: такие runs остались от упавшего процесса.
func (r *RunRepo) MarkInterrupted(ctx context.Context, pipeline string) (int64, error) {
	query := `
		UPDATE pipeline_runs
		SET status = 'CANCELLED', error = 'runner restarted', finished_at = now()
		WHERE pipeline = $1 AND status IN ('PENDING', 'RUNNING')
	`
	result, err := r.pool.Exec(ctx, query, pipeline)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *RunRepo) listJobs(ctx context.Context, runID uuid.UUID) ([]domain.JobRun, error) {
	query := `
		SELECT name, resource, status, reason, error, started_at, finished_at
		FROM job_runs
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.JobRun
	for rows.Next() {
		var job domain.JobRun
		var resource, reason, jobError *string
		if err := rows.Scan(
			&job.Name,
			&resource,
			&job.Status,
			&reason,
			&jobError,
			&job.StartedAt,
			&job.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Resource = deref(resource)
		job.Reason = deref(reason)
		job.Error = deref(jobError)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Pipeline string
	Status   domain.RunStatus
	Limit    int
	Offset   int
}

func queueJob(batch *pgx.Batch, runID uuid.UUID, position int, job *domain.JobRun) {
	batch.Queue(`
		INSERT INTO job_runs (run_id, position, name, resource, status, reason, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, position) DO UPDATE
		SET resource = EXCLUDED.resource, status = EXCLUDED.status, reason = EXCLUDED.reason,
		    error = EXCLUDED.error, started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at
	`,
		runID,
		position,
		job.Name,
		nullString(job.Resource),
		job.Status,
		nullString(job.Reason),
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
	)
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var trigger, failedJob, runError *string

	err := row.Scan(
		&run.ID,
		&run.Pipeline,
		&run.Namespace,
		&trigger,
		&run.Status,
		&failedJob,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Trigger = deref(trigger)
	run.FailedJob = deref(failedJob)
	run.Error = deref(runError)
	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
