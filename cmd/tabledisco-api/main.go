// tabledisco API — отправка работы и статус отправок по HTTP.
//
// API строит дерево jobs, отправляет его в Execution Backend,
// сохраняет структуру в Redis и отдаёт идентификатор корня.
// По идентификатору восстанавливает дерево статусов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/tabledisco/internal/api"
	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/config"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/objstore"
	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/repo"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"github.com/shaiso/tabledisco/internal/topology"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger("tabledisco-api")
	logger.Info("starting tabledisco-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Service:  "tabledisco-api",
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

	// Postgres: таблица jobs
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
	logger.Info("connected to database")

	// Redis: деревья и каталог
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	// MinIO / S3
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

	// RabbitMQ опционален: без него worker'ы находят jobs polling'ом
	backendCfg := backend.PostgresConfig{
		Jobs:   repo.NewJobRepo(pool, cfg.JobLease),
		Logger: logger,
	}
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "tabledisco-api", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		backendCfg.Notifier = mq.NewPublisher(mqConn, logger)
		logger.Info("RabbitMQ connected")
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

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	api.NewHandler(api.Config{Pipeline: svc, Logger: logger}).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
