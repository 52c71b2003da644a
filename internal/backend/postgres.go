package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/repo"
)

// JobStore — часть repo.JobRepo, нужная backend.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	CreateBatch(ctx context.Context, jobs []*domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Job, error)
}

// Notifier будит worker'ов. *mq.Publisher реализует его.
type Notifier interface {
	PublishJobReady(ctx context.Context, jobID uuid.UUID) error
}

// Postgres — Execution Backend поверх таблицы jobs и RabbitMQ.
type Postgres struct {
	jobs     JobStore
	notifier Notifier
	logger   *slog.Logger
}

// PostgresConfig — зависимости Postgres backend.
type PostgresConfig struct {
	Jobs JobStore

	// Notifier — опционально. Без него worker'ы находят jobs polling'ом.
	Notifier Notifier

	Logger *slog.Logger
}

// NewPostgres создаёт Postgres backend.
func NewPostgres(cfg PostgresConfig) *Postgres {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		jobs:     cfg.Jobs,
		notifier: cfg.Notifier,
		logger:   logger.With("component", "backend"),
	}
}

// Submit ставит один job в очередь.
func (b *Postgres) Submit(ctx context.Context, inv domain.Invocation) (string, error) {
	job := domain.NewJob(inv)
	if err := b.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b.logger.Debug("job submitted", "job_id", job.ID, "stage", job.Stage)
	b.notify(ctx, job.ID)
	return job.ID.String(), nil
}

// SubmitGroup ставит группу jobs одной транзакцией.
func (b *Postgres) SubmitGroup(ctx context.Context, invs []domain.Invocation) (Group, error) {
	groupID := uuid.New()
	jobs := make([]*domain.Job, len(invs))
	for i, inv := range invs {
		job := domain.NewJob(inv)
		job.GroupID = &groupID
		jobs[i] = job
	}

	if err := b.jobs.CreateBatch(ctx, jobs); err != nil {
		return Group{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	group := Group{ID: groupID.String(), JobIDs: make([]string, len(jobs))}
	for i, job := range jobs {
		group.JobIDs[i] = job.ID.String()
		b.notify(ctx, job.ID)
	}

	b.logger.Debug("group submitted", "group_id", groupID, "size", len(jobs))
	return group, nil
}

// SubmitJoin ставит finalize job, ждущий группу. Его отпускает dispatcher.
func (b *Postgres) SubmitJoin(ctx context.Context, groupID string, inv domain.Invocation) (string, error) {
	gid, err := uuid.Parse(groupID)
	if err != nil {
		return "", fmt.Errorf("%w: group %s", ErrJobNotFound, groupID)
	}

	members, err := b.jobs.ListByGroup(ctx, gid)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(members) == 0 {
		return "", fmt.Errorf("%w: group %s", ErrJobNotFound, groupID)
	}

	job := domain.NewJob(inv)
	job.AfterGroup = &gid
	job.Ready = false
	if err := b.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b.logger.Debug("join submitted", "job_id", job.ID, "group_id", gid, "stage", job.Stage)
	return job.ID.String(), nil
}

// SubmitFanIn ставит группу и finalize job одной транзакцией.
// Членов будит только после commit, поэтому их завершение не может
// обогнать появление join.
func (b *Postgres) SubmitFanIn(ctx context.Context, members []domain.Invocation, last domain.Invocation) (Group, string, error) {
	groupID := uuid.New()
	jobs := make([]*domain.Job, 0, len(members)+1)
	for _, inv := range members {
		job := domain.NewJob(inv)
		job.GroupID = &groupID
		jobs = append(jobs, job)
	}

	join := domain.NewJob(last)
	join.AfterGroup = &groupID
	join.Ready = false
	jobs = append(jobs, join)

	if err := b.jobs.CreateBatch(ctx, jobs); err != nil {
		return Group{}, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	group := Group{ID: groupID.String(), JobIDs: make([]string, len(members))}
	for i, job := range jobs[:len(members)] {
		group.JobIDs[i] = job.ID.String()
		b.notify(ctx, job.ID)
	}

	b.logger.Debug("fan-in submitted", "group_id", groupID, "size", len(members), "join_id", join.ID)
	return group, join.ID.String(), nil
}

// QueryState читает состояние job из таблицы.
func (b *Postgres) QueryState(ctx context.Context, jobID string) (Status, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	job, err := b.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return Status{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Status{State: job.State, Result: job.Result, Error: job.Error}, nil
}

func (b *Postgres) notify(ctx context.Context, id uuid.UUID) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.PublishJobReady(ctx, id); err != nil {
		// job уже в таблице, worker подхватит его polling'ом
		b.logger.Warn("failed to publish job.ready", "job_id", id, "error", err)
	}
}
