package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// JobStore — операции repo.JobRepo, которые нужны worker'у.
type JobStore interface {
	Claim(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	ListReady(ctx context.Context, limit int) ([]domain.Job, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// CompletionPublisher сообщает dispatcher'у о завершении job.
type CompletionPublisher interface {
	PublishJobCompleted(ctx context.Context, payload mq.JobCompletedPayload) error
}

// Config — конфигурация Worker.
type Config struct {
	Jobs JobStore

	// Publisher и Conn опциональны: без них worker живёт на polling.
	Publisher CompletionPublisher
	Conn      *mq.Connection

	Registry *Registry
	Retry    RetryPolicy

	PollInterval time.Duration // default: 10s
	BatchSize    int           // default: 50

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// TracerProvider — по умолчанию глобальный.
	TracerProvider trace.TracerProvider
}

// Worker исполняет готовые jobs.
type Worker struct {
	jobs      JobStore
	publisher CompletionPublisher
	conn      *mq.Connection
	registry  *Registry
	retry     RetryPolicy
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// New создаёт Worker.
func New(cfg Config) *Worker {
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
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	tracer := telemetry.Tracer("worker")
	if cfg.TracerProvider != nil {
		tracer = cfg.TracerProvider.Tracer(telemetry.Instrumentation + "/worker")
	}

	return &Worker{
		jobs:         cfg.Jobs,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     registry,
		retry:        cfg.Retry,
		metrics:      cfg.Metrics,
		tracer:       tracer,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger.With("component", "worker"),
	}
}

// Start запускает consumer jobs.ready и polling.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"stages", w.registry.Stages(),
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.QueueJobsReady,
			Handler:  w.handleJobReady,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("job consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	return nil
}

// Stop останавливает worker и ждёт текущие jobs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped сообщает, вызван ли Stop.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Сразу при старте подхватываем jobs, созданные пока worker'ов не было
	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.jobs.ListReady(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list ready jobs", "error", err)
		return
	}
	if len(jobs) > 0 {
		w.logger.Debug("poll found ready jobs", "count", len(jobs))
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		err := w.ProcessJob(ctx, jobs[i].ID)
		if err != nil && !isSkippable(err) {
			w.logger.Error("failed to process job from poll", "job_id", jobs[i].ID, "error", err)
		}
	}
}
