// Package config собирает настройки процессов из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/tabledisco/internal/mq"
	"github.com/shaiso/tabledisco/internal/repo"
)

// Config — настройки всех процессов tabledisco.
type Config struct {
	DBURL       string
	RabbitMQURL string

	RedisURL    string
	RedisPrefix string
	// TopologyTTL — срок жизни сохранённых деревьев. 0 — бессрочно.
	TopologyTTL time.Duration

	S3 S3Config

	// ProfilerURL — адрес внешнего профайлера. Пусто — профилирование пропускается.
	ProfilerURL string

	APIPort        string
	WorkerPort     string
	DispatcherPort string
	SchedPort      string

	PollInterval time.Duration

	// JobLease — сколько job может быть RUNNING, прежде чем другой worker
	// заберёт её как брошенную.
	JobLease time.Duration

	// OTELEndpoint — OTLP/gRPC коллектор. Пусто — трейсинг выключен.
	OTELEndpoint string

	// IngestSchedules — "bucket=cron;bucket=cron".
	IngestSchedules string

	Retry RetryConfig
}

// S3Config — доступ к MinIO / S3.
type S3Config struct {
	Host      string
	Port      string
	AccessKey string
	SecretKey string
	Region    string
}

// Endpoint возвращает базовый URL хранилища.
func (c S3Config) Endpoint() string {
	return "http://" + net.JoinHostPort(c.Host, c.Port)
}

// RetryConfig — политика повторов worker'а.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Load читает окружение процесса.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LookupFunc — источник переменных, совместимый с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadFrom читает настройки из lookup. Невалидные значения — ошибка запуска.
func LoadFrom(lookup LookupFunc) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		DBURL:       r.str("DB_URL", repo.DefaultDSN),
		RabbitMQURL: r.str("RABBITMQ_URL", mq.DefaultURL()),
		RedisURL:    r.str("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: r.str("REDIS_PREFIX", "tabledisco:"),
		TopologyTTL: r.duration("TOPOLOGY_TTL", 0),
		S3: S3Config{
			Host:      r.str("MINIO_HOST", "localhost"),
			Port:      r.str("MINIO_PORT", "9000"),
			AccessKey: r.str("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: r.str("MINIO_SECRET_KEY", "minioadmin"),
			Region:    r.str("S3_REGION", "us-east-1"),
		},
		ProfilerURL:     r.str("PROFILER_URL", ""),
		APIPort:         r.str("API_PORT", "8080"),
		WorkerPort:      r.str("WORKER_PORT", "8082"),
		DispatcherPort:  r.str("DISPATCHER_PORT", "8083"),
		SchedPort:       r.str("SCHED_PORT", "8081"),
		PollInterval:    r.duration("POLL_INTERVAL", 10*time.Second),
		JobLease:        r.duration("JOB_LEASE", repo.DefaultLease),
		OTELEndpoint:    r.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		IngestSchedules: r.str("INGEST_SCHEDULES", ""),
		Retry: RetryConfig{
			MaxAttempts:  r.integer("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: r.duration("RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:     r.duration("RETRY_MAX_DELAY", 30*time.Second),
		},
	}

	if cfg.PollInterval <= 0 {
		r.fail("POLL_INTERVAL", "must be positive")
	}
	if cfg.JobLease <= 0 {
		r.fail("JOB_LEASE", "must be positive")
	}
	if cfg.Retry.MaxAttempts < 1 {
		r.fail("RETRY_MAX_ATTEMPTS", "must be at least 1")
	}
	if cfg.TopologyTTL < 0 {
		r.fail("TOPOLOGY_TTL", "must not be negative")
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type reader struct {
	lookup LookupFunc
	errs   []error
}

func (r *reader) fail(key, msg string) {
	r.errs = append(r.errs, fmt.Errorf("%s: %s", key, msg))
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, fmt.Sprintf("invalid integer %q", v))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, fmt.Sprintf("invalid duration %q", v))
		return def
	}
	return d
}
