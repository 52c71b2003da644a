package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/repo"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// RetryPolicy — политика повторов одной стадии.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток, включая первую. 0 и 1 — без повторов.
	MaxAttempts int

	InitialDelay time.Duration // default: 1s
	MaxDelay     time.Duration // default: 30s

	// Backoff — "fixed" или "exponential".
	Backoff string

	// OnStatus — HTTP коды профайлера, на которых делаем retry.
	// Пустой список: решает Result.Retryable.
	OnStatus []int
}

// handleJobReady обрабатывает событие из очереди jobs.ready.
func (w *Worker) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received job.ready event", "job_id", payload.JobID)

	if err := w.ProcessJob(ctx, payload.JobID); err != nil {
		// Ожидаемые ситуации — ack
		if isSkippable(err) {
			w.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}
	return nil
}

func isSkippable(err error) bool {
	return errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotClaimable)
}

// ProcessJob забирает job, исполняет стадию и сохраняет итог.
//
// Если worker останавливают посреди попытки, job возвращается в очередь
// и job.completed не публикуется: его выполнит другой worker.
func (w *Worker) ProcessJob(ctx context.Context, jobID uuid.UUID) (err error) {
	job, err := w.jobs.Claim(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		case errors.Is(err, repo.ErrInvalidState):
			return fmt.Errorf("%w: %s", ErrJobNotClaimable, jobID)
		}
		return fmt.Errorf("claim job: %w", err)
	}

	ctx, span := telemetry.StartSpan(ctx, w.tracer, "worker.ProcessJob",
		attribute.String("job_id", job.ID.String()),
		attribute.String("stage", string(job.Stage)),
		attribute.Int("attempt", job.Attempt),
	)
	defer func() {
		span.SetAttributes(attribute.String("state", string(job.State)))
		telemetry.EndSpan(span, err)
	}()

	logger := telemetry.WithJobID(w.logger, job.ID.String())
	logger.Info("job started",
		"stage", job.Stage,
		"bucket", job.Args.Bucket,
		"path", job.Args.Path,
		"attempt", job.Attempt,
	)

	result, execErr := w.executeWithRetry(ctx, job)
	if ctx.Err() != nil {
		// Итог пишем вне отменённого контекста
		stopped := ctx
		ctx = context.WithoutCancel(ctx)
		if execErr != nil {
			if err := w.jobs.Requeue(ctx, job.ID); err != nil {
				return fmt.Errorf("requeue job: %w", err)
			}
			job.Requeue()
			logger.Info("job requeued on shutdown", "stage", job.Stage, "reason", context.Cause(stopped))
			return nil
		}
	}

	if execErr == nil && !result.Failed() {
		var outputs map[string]any
		if result != nil {
			outputs = result.Outputs
		}
		job.MarkSucceeded(outputs)
		if err := w.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("update job to succeeded: %w", err)
		}

		logger.Info("job succeeded",
			"stage", job.Stage,
			"attempt", job.Attempt,
			"duration", job.Duration(),
		)
		w.finish(ctx, job)
		return nil
	}

	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	} else {
		errMsg = result.Error
	}

	job.MarkFailed(errMsg)
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to failed: %w", err)
	}

	logger.Warn("job failed",
		"stage", job.Stage,
		"attempt", job.Attempt,
		"error", errMsg,
	)
	w.finish(ctx, job)
	return nil
}

// finish пишет метрику и публикует job.completed.
func (w *Worker) finish(ctx context.Context, job *domain.Job) {
	w.metrics.JobFinished(string(job.Stage), string(job.State), job.Duration().Seconds())

	if w.publisher == nil {
		w.logger.Debug("publisher not available, skipping job.completed publish", "job_id", job.ID)
		return
	}

	payload := mq.JobCompletedPayload{
		JobID:   job.ID,
		GroupID: job.GroupID,
		Stage:   string(job.Stage),
		State:   string(job.State),
		Error:   job.Error,
		Attempt: job.Attempt,
	}
	if err := w.publisher.PublishJobCompleted(ctx, payload); err != nil {
		// Job уже в БД, dispatcher подхватит его через polling
		w.logger.Warn("failed to publish job.completed", "job_id", job.ID, "error", err)
	}
}

// executeWithRetry исполняет стадию, повторяя попытки по RetryPolicy.
func (w *Worker) executeWithRetry(ctx context.Context, job *domain.Job) (*Result, error) {
	executor, err := w.registry.Get(job.Stage)
	if err != nil {
		return nil, err
	}

	maxAttempts := max(w.retry.MaxAttempts, 1)

	for {
		result, execErr := executor.Execute(ctx, job)
		if execErr == nil && !result.Failed() {
			return result, nil
		}

		if job.Attempt >= maxAttempts || !w.shouldRetry(result, execErr) {
			return result, execErr
		}

		delay := calculateBackoff(job.Attempt, w.retry)
		w.logger.Debug("retrying job",
			"job_id", job.ID,
			"attempt", job.Attempt,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		job.MarkRunning()
		if err := w.jobs.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("update job for retry: %w", err)
		}
	}
}

// shouldRetry определяет, нужна ли ещё одна попытка.
func (w *Worker) shouldRetry(result *Result, execErr error) bool {
	// Инфраструктурная ошибка — всегда retry, кроме отмены
	if execErr != nil {
		return !errors.Is(execErr, context.Canceled)
	}
	if result == nil {
		return false
	}

	if len(w.retry.OnStatus) > 0 {
		code, ok := result.Outputs["status_code"].(int)
		if !ok {
			return false
		}
		return slices.Contains(w.retry.OnStatus, code)
	}
	return result.Retryable
}

// calculateBackoff вычисляет задержку перед повтором.
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initialDelay
	if policy.Backoff == "exponential" {
		// delay = initialDelay * 2^(attempt-1)
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	}

	return min(delay, maxDelay)
}
