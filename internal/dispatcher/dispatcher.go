package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/telemetry"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	defaultPrefetch     = 10
)

// JobStore — операции repo.JobRepo, которые нужны dispatcher'у.
type JobStore interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Job, error)
	ListJoins(ctx context.Context, groupID uuid.UUID) ([]domain.Job, error)
	ListWaitingJoins(ctx context.Context, afterCreated time.Time, afterID uuid.UUID, limit int) ([]domain.Job, error)
	Release(ctx context.Context, id uuid.UUID) (bool, error)
	FailPending(ctx context.Context, id uuid.UUID, msg string) (bool, error)
}

// Notifier будит worker'ов. *mq.Publisher реализует его.
type Notifier interface {
	PublishJobReady(ctx context.Context, jobID uuid.UUID) error
}

// Config — конфигурация Dispatcher.
type Config struct {
	Jobs JobStore

	// Notifier и Conn опциональны: без них работает только polling.
	Notifier Notifier
	Conn     *mq.Connection

	PollInterval time.Duration // default: 10s
	BatchSize    int           // default: 100

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Dispatcher реализует join-барьер backend.
type Dispatcher struct {
	jobs     JobStore
	notifier Notifier
	conn     *mq.Connection
	metrics  *telemetry.Metrics

	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		jobs:         cfg.Jobs,
		notifier:     cfg.Notifier,
		conn:         cfg.Conn,
		metrics:      cfg.Metrics,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger.With("component", "dispatcher"),
	}
}

// Start запускает consumer jobs.completed и polling.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.logger.Info("starting dispatcher", "poll_interval", d.pollInterval, "batch_size", d.batchSize)

	if d.conn != nil {
		d.consumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
			Queue:    mq.QueueJobsCompleted,
			Handler:  d.handleJobCompleted,
			Prefetch: defaultPrefetch,
		})

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("completion consumer error", "error", err)
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pollLoop(ctx)
	}()

	return nil
}

// Stop останавливает dispatcher и ждёт горутины.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher...")
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) handleJobCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobCompletedPayload](&delivery.Message)
	if err != nil {
		return err
	}
	if payload.GroupID == nil {
		return nil
	}

	d.logger.Debug("job completed",
		"job_id", payload.JobID,
		"group_id", *payload.GroupID,
		"state", payload.State,
	)
	return d.EvaluateGroup(ctx, *payload.GroupID)
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll проверяет группы всех ждущих finalize jobs, страница за страницей.
func (d *Dispatcher) Poll(ctx context.Context) {
	var (
		afterCreated time.Time
		afterID      uuid.UUID
	)
	seen := make(map[uuid.UUID]struct{})

	for ctx.Err() == nil {
		joins, err := d.jobs.ListWaitingJoins(ctx, afterCreated, afterID, d.batchSize)
		if err != nil {
			d.logger.Error("failed to list waiting joins", "error", err)
			return
		}

		for _, join := range joins {
			gid := *join.AfterGroup
			if _, ok := seen[gid]; ok {
				continue
			}
			seen[gid] = struct{}{}

			if err := d.EvaluateGroup(ctx, gid); err != nil {
				d.logger.Error("failed to evaluate group from poll", "group_id", gid, "error", err)
			}
		}

		if len(joins) < d.batchSize {
			return
		}
		last := joins[len(joins)-1]
		afterCreated, afterID = last.CreatedAt, last.ID
	}
}

// EvaluateGroup решает судьбу finalize jobs группы.
func (d *Dispatcher) EvaluateGroup(ctx context.Context, groupID uuid.UUID) error {
	members, err := d.jobs.ListByGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list group %s: %w", groupID, err)
	}
	if len(members) == 0 {
		return nil
	}

	var failed *domain.Job
	succeeded := 0
	for i := range members {
		switch members[i].State {
		case domain.JobStateFailed:
			if failed == nil {
				failed = &members[i]
			}
		case domain.JobStateSucceeded:
			succeeded++
		}
	}

	switch {
	case failed != nil:
		return d.failJoins(ctx, groupID, failed)
	case succeeded == len(members):
		return d.releaseJoins(ctx, groupID)
	default:
		return nil
	}
}

func (d *Dispatcher) failJoins(ctx context.Context, groupID uuid.UUID, cause *domain.Job) error {
	joins, err := d.jobs.ListJoins(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list joins %s: %w", groupID, err)
	}

	msg := fmt.Sprintf("dependency failed: %s %s: %s", cause.Stage, cause.ID, cause.Error)
	for _, join := range joins {
		changed, err := d.jobs.FailPending(ctx, join.ID, msg)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		d.metrics.JoinSettled("failed")
		d.logger.Warn("finalize job failed by dependency",
			"job_id", join.ID,
			"group_id", groupID,
			"failed_job_id", cause.ID,
		)
	}
	return nil
}

func (d *Dispatcher) releaseJoins(ctx context.Context, groupID uuid.UUID) error {
	joins, err := d.jobs.ListJoins(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list joins %s: %w", groupID, err)
	}

	for _, join := range joins {
		changed, err := d.jobs.Release(ctx, join.ID)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		d.metrics.JoinSettled("released")
		d.logger.Info("finalize job released", "job_id", join.ID, "group_id", groupID, "stage", join.Stage)

		if d.notifier == nil {
			continue
		}
		if err := d.notifier.PublishJobReady(ctx, join.ID); err != nil {
			// job уже ready в таблице, worker найдёт его polling'ом
			d.logger.Warn("failed to publish job.ready", "job_id", join.ID, "error", err)
		}
	}
	return nil
}
