// tabledisco scheduler — периодическая приёмка бакетов.
//
// Расписания берутся из INGEST_SCHEDULES. Тикает только лидер:
// лидерство между репликами разыгрывается через pg_try_advisory_lock.
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

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/config"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/objstore"
	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/repo"
	"github.com/shaiso/tabledisco/internal/scheduler"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"github.com/shaiso/tabledisco/internal/topology"
)

func main() {
	logger := telemetry.SetupLogger("tabledisco-scheduler")
	logger.Info("starting tabledisco-scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	entries, err := scheduler.ParseSchedules(cfg.IngestSchedules)
	if err != nil {
		logger.Error("invalid INGEST_SCHEDULES", "error", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		logger.Warn("no schedules configured, scheduler will idle")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Service:  "tabledisco-scheduler",
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
	if err := repo.InitSchema(ctx, pool); err != nil {
		logger.Error("failed to init schema", "error", err)
		os.Exit(1)
	}
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

	backendCfg := backend.PostgresConfig{
		Jobs:   repo.NewJobRepo(pool, cfg.JobLease),
		Logger: logger,
	}
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "tabledisco-scheduler", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		backendCfg.Notifier = mq.NewPublisher(mqConn, logger)
	}

	svc := pipeline.New(pipeline.Config{
		Backend: backend.NewPostgres(backendCfg),
		Topology: topology.NewRedisStore(rdb, topology.RedisStoreConfig{
			Prefix: cfg.RedisPrefix,
			TTL:    cfg.TopologyTTL,
		}),
		Catalog: catalog.NewRedis(rdb, cfg.RedisPrefix),
		Objects: objects,
		Metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:  logger,
	})

	sched := scheduler.New(scheduler.Config{
		Entries:  entries,
		Ingester: svc,
		Lock:     scheduler.NewPGLock(pool, scheduler.LockKey),
		Logger:   logger,
	}, time.Now())

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + cfg.SchedPort
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	<-done
	logger.Info("tabledisco-scheduler stopped")
}
