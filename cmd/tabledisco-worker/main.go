// tabledisco worker — исполняет стадии готовых jobs.
//
// Worker:
//   - получает jobs из RabbitMQ (jobs.ready) и polling'ом из Postgres
//   - ingest-unit: читает заголовок таблицы из MinIO, пишет Unit в каталог
//   - profile-unit / profile-all: вызывает внешний профайлер
//   - повторяет попытки с backoff и публикует job.completed
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/config"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/objstore"
	"github.com/shaiso/tabledisco/internal/repo"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"github.com/shaiso/tabledisco/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger("tabledisco-worker")
	logger.Info("starting tabledisco-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Service:  "tabledisco-worker",
		Endpoint: cfg.OTELEndpoint,
	}, logger)
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush spans", "error", err)
		}
	}()

	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	objects, err := objstore.NewS3(ctx, objstore.S3Config{
		Endpoint:  cfg.S3.Endpoint(),
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
	})
	if err != nil {
		logger.Error("failed to create object store client", "error", err)
		os.Exit(1)
	}

	units := catalog.NewRedis(rdb, cfg.RedisPrefix)
	profiler := &worker.ProfileExecutor{URL: cfg.ProfilerURL, Catalog: units}
	if cfg.ProfilerURL == "" {
		logger.Warn("PROFILER_URL is not set, profiling stages will be skipped")
	}

	registry := worker.NewRegistry()
	registry.Register(domain.StageIngestUnit, &worker.IngestExecutor{Objects: objects, Catalog: units})
	registry.Register(domain.StageProfileUnit, profiler)
	registry.Register(domain.StageProfileAll, profiler)

	wcfg := worker.Config{
		Jobs:     repo.NewJobRepo(pool, cfg.JobLease),
		Registry: registry,
		Retry: worker.RetryPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Backoff:      "exponential",
		},
		PollInterval: cfg.PollInterval,
		Metrics:      telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:       logger,
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "tabledisco-worker", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		wcfg.Conn = mqConn
		wcfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	w := worker.New(wcfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + cfg.WorkerPort
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("tabledisco-worker stopped")
}
