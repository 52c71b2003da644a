package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/topology"
)

const defaultTickInterval = time.Second

// Ingester — операция приёмки бакета.
type Ingester interface {
	IngestBucket(ctx context.Context, bucket string) (pipeline.Submission, error)
}

// Locker — лидерство между репликами scheduler.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Entries  []Entry
	Ingester Ingester

	// Lock опционален: без него экземпляр всегда лидер.
	Lock Locker

	TickInterval time.Duration // default: 1s
	Logger       *slog.Logger
}

// Scheduler запускает приёмку бакетов по расписанию.
type Scheduler struct {
	entries  []Entry
	ingester Ingester
	lock     Locker
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	nextDue map[string]time.Time
}

// New создаёт Scheduler. Первый запуск каждого бакета — ближайшее время
// по расписанию после now.
func New(cfg Config, now time.Time) *Scheduler {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		entries:  cfg.Entries,
		ingester: cfg.Ingester,
		lock:     cfg.Lock,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		nextDue:  make(map[string]time.Time, len(cfg.Entries)),
	}
	for _, e := range cfg.Entries {
		s.nextDue[e.Bucket] = e.Next(now)
	}
	return s
}

// NextDue возвращает следующее время приёмки бакета.
func (s *Scheduler) NextDue(bucket string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.nextDue[bucket]
	return t, ok
}

// Tick принимает бакеты, время которых наступило.
//
// "Нечего делать" и пустой бакет не считаются ошибкой. Ошибка одного
// бакета не мешает остальным; следующий запуск всё равно считается
// от now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	submitted := 0
	for _, e := range s.entries {
		s.mu.Lock()
		due := !now.Before(s.nextDue[e.Bucket])
		if due {
			s.nextDue[e.Bucket] = e.Next(now)
		}
		next := s.nextDue[e.Bucket]
		s.mu.Unlock()

		if !due {
			continue
		}

		sub, err := s.ingester.IngestBucket(ctx, e.Bucket)
		switch {
		case err == nil:
			submitted++
			s.logger.Info("scheduled ingestion submitted",
				"bucket", e.Bucket,
				"root_id", sub.ID,
				"next_due_at", next,
			)
		case errors.Is(err, topology.ErrNothingToDo), errors.Is(err, pipeline.ErrBucketEmpty):
			s.logger.Debug("scheduled ingestion had nothing to do", "bucket", e.Bucket, "next_due_at", next)
		default:
			s.logger.Error("scheduled ingestion failed",
				"bucket", e.Bucket,
				"next_due_at", next,
				"error", err,
			)
		}
	}
	return submitted
}

// Run тикает до отмены ctx. Тик выполняет только лидер.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var leader bool
	defer func() {
		if leader && s.lock != nil {
			if err := s.lock.Unlock(context.Background()); err != nil {
				s.logger.Warn("failed to release leader lock", "error", err)
			}
		}
	}()

	s.logger.Info("scheduler started", "buckets", len(s.entries), "tick", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !leader {
				leader = s.acquire(ctx)
				if !leader {
					continue
				}
				s.logger.Info("became scheduler leader")
			}
			s.Tick(ctx, now)
		}
	}
}

func (s *Scheduler) acquire(ctx context.Context) bool {
	if s.lock == nil {
		return true
	}
	ok, err := s.lock.TryLock(ctx)
	if err != nil {
		s.logger.Warn("leader lock failed", "error", err)
		return false
	}
	return ok
}
