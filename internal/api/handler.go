package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/topology"
)

// Pipeline — операции, которые API вызывает у pipeline.Service.
type Pipeline interface {
	IngestBucket(ctx context.Context, bucket string) (pipeline.Submission, error)
	AddTable(ctx context.Context, bucket, path string) (pipeline.Submission, error)
	ProfileTable(ctx context.Context, bucket, path string) (pipeline.Submission, error)
	Status(ctx context.Context, id string) (*topology.StatusNode, error)
	Purge(ctx context.Context) error
	ListTables(ctx context.Context, bucket string) ([]domain.Unit, error)
	PreviewTable(ctx context.Context, bucket, path string, rows int) ([][]string, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Pipeline Pipeline
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: cfg.Pipeline,
		logger:   logger,
	}
}
