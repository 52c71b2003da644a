// tabledisco dispatcher — join-барьер Execution Backend.
//
// Следит за завершением групп: когда все члены группы SUCCEEDED,
// finalize job становится готовым и публикуется job.ready; если
// кто-то FAILED, finalize job проваливается без запуска.
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

	"github.com/shaiso/tabledisco/internal/config"
	"github.com/shaiso/tabledisco/internal/dispatcher"
	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/repo"
	"github.com/shaiso/tabledisco/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger("tabledisco-dispatcher")
	logger.Info("starting tabledisco-dispatcher")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Service:  "tabledisco-dispatcher",
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

	dcfg := dispatcher.Config{
		Jobs:         repo.NewJobRepo(pool, cfg.JobLease),
		PollInterval: cfg.PollInterval,
		Metrics:      telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:       logger,
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "tabledisco-dispatcher", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		dcfg.Conn = mqConn
		dcfg.Notifier = mq.NewPublisher(mqConn, logger)
	}

	d := dispatcher.New(dcfg)
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + cfg.DispatcherPort
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	d.Stop()
	logger.Info("tabledisco-dispatcher stopped")
}
