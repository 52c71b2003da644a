package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/tabledisco/internal/domain"
)

const jobColumns = `id, stage, args, state, group_id, after_group, ready, attempt,
	result, error, started_at, finished_at, created_at`

// DefaultLease — сколько попытка может оставаться RUNNING, прежде чем
// job снова считается готовым. Worker, убитый посреди job, не отпускает его сам.
const DefaultLease = 10 * time.Minute

// JobRepo хранит jobs Execution Backend в Postgres.
type JobRepo struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

// NewJobRepo создаёт JobRepo. lease <= 0 — DefaultLease.
func NewJobRepo(pool *pgxpool.Pool, lease time.Duration) *JobRepo {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &JobRepo{pool: pool, lease: lease}
}

func (r *JobRepo) staleBefore() time.Time {
	return time.Now().UTC().Add(-r.lease)
}

const insertJob = `
	INSERT INTO jobs (id, stage, args, state, group_id, after_group, ready, attempt, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func insertArgs(job *domain.Job) ([]any, error) {
	argsJSON, err := json.Marshal(job.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return []any{
		job.ID,
		job.Stage,
		argsJSON,
		job.State,
		job.GroupID,
		job.AfterGroup,
		job.Ready,
		job.Attempt,
		job.CreatedAt,
	}, nil
}

// Create сохраняет один job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	args, err := insertArgs(job)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertJob, args...); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// CreateBatch сохраняет jobs в одной транзакции: либо все, либо ничего.
func (r *JobRepo) CreateBatch(ctx context.Context, jobs []*domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, job := range jobs {
		args, err := insertArgs(job)
		if err != nil {
			return err
		}
		batch.Queue(insertJob, args...)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert jobs: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID возвращает job или ErrNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// Claim атомарно переводит готовый PENDING job в RUNNING. RUNNING job,
// чья попытка старше lease, тоже забирается: его worker умер.
// Возвращает ErrInvalidState, если job уже взят или ещё не готов.
func (r *JobRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = 'RUNNING', attempt = attempt + 1, started_at = now(),
		    finished_at = NULL, error = NULL
		WHERE id = $1
		  AND ((state = 'PENDING' AND ready) OR (state = 'RUNNING' AND started_at < $2))
		RETURNING ` + jobColumns
	job, err := scanJob(r.pool.QueryRow(ctx, query, id, r.staleBefore()))
	if !errors.Is(err, ErrNotFound) {
		return job, err
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: job %s is not claimable", ErrInvalidState, id)
}

// Update сохраняет изменяемые поля job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	var resultJSON []byte
	if job.Result != nil {
		var err error
		if resultJSON, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	query := `
		UPDATE jobs
		SET state = $2, ready = $3, attempt = $4, result = $5, error = $6,
		    started_at = $7, finished_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.State,
		job.Ready,
		job.Attempt,
		resultJSON,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReady возвращает готовые к выполнению jobs, старые первыми:
// PENDING и RUNNING с просроченной попыткой.
func (r *JobRepo) ListReady(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE (state = 'PENDING' AND ready) OR (state = 'RUNNING' AND started_at < $2)
		ORDER BY created_at ASC
		LIMIT $1`
	return r.list(ctx, "list ready jobs", query, limit, r.staleBefore())
}

// Requeue возвращает взятый job в очередь, не тратя попытку.
func (r *JobRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'PENDING', ready = TRUE, attempt = GREATEST(attempt - 1, 0),
		    started_at = NULL, finished_at = NULL, error = NULL
		WHERE id = $1 AND state = 'RUNNING'
	`, id)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not running", ErrInvalidState, id)
	}
	return nil
}

// ListByGroup возвращает членов группы в порядке создания.
func (r *JobRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, "list group jobs", query, groupID)
}

// ListJoins возвращает finalize jobs, ждущие группу.
func (r *JobRepo) ListJoins(ctx context.Context, groupID uuid.UUID) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE after_group = $1 AND state = 'PENDING' AND NOT ready`
	return r.list(ctx, "list joins", query, groupID)
}

// ListWaitingJoins возвращает страницу ещё не отпущенных finalize jobs,
// идущих после курсора (afterCreated, afterID). Первая страница — с нулевым курсором.
func (r *JobRepo) ListWaitingJoins(ctx context.Context, afterCreated time.Time, afterID uuid.UUID, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE after_group IS NOT NULL AND state = 'PENDING' AND NOT ready
		  AND (created_at, id) > ($1, $2)
		ORDER BY created_at ASC, id ASC
		LIMIT $3`
	return r.list(ctx, "list waiting joins", query, afterCreated, afterID, limit)
}

// Release делает finalize job готовым. false — его уже отпустили или провалили.
func (r *JobRepo) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET ready = TRUE
		WHERE id = $1 AND state = 'PENDING' AND NOT ready
	`, id)
	if err != nil {
		return false, fmt.Errorf("release job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailPending переводит ещё не запущенный job в FAILED.
func (r *JobRepo) FailPending(ctx context.Context, id uuid.UUID, msg string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET state = 'FAILED', error = $2, finished_at = now()
		WHERE id = $1 AND state = 'PENDING'
	`, id, msg)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// scanJob читает одну строку; pgx.Rows тоже реализует pgx.Row.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var argsJSON, resultJSON []byte
	var jobError *string

	err := row.Scan(
		&job.ID,
		&job.Stage,
		&argsJSON,
		&job.State,
		&job.GroupID,
		&job.AfterGroup,
		&job.Ready,
		&job.Attempt,
		&resultJSON,
		&jobError,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(argsJSON, &job.Args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if jobError != nil {
		job.Error = *jobError
	}
	return &job, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
