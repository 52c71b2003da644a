package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/objstore"
	"github.com/shaiso/tabledisco/internal/telemetry"
	"github.com/shaiso/tabledisco/internal/topology"
)

// Типы отправок.
const (
	TypeIngestion       = "Ingestion"
	TypeSingleIngestion = "Single Ingestion"
	TypeProfiling       = "Profiling"
)

const (
	DefaultPreviewRows = 10
	MaxPreviewRows     = 1000
)

// Submission — ответ на отправку: идентификатор корня и тип.
type Submission struct {
	ID   string `json:"task_id"`
	Type string `json:"type"`
}

// Config — зависимости Service.
type Config struct {
	Backend  backend.Backend
	Topology topology.Store
	Catalog  catalog.Catalog
	Objects  objstore.Store

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// TracerProvider — по умолчанию глобальный (см. telemetry.SetupTracing).
	TracerProvider trace.TracerProvider
}

// Service реализует операции над таблицами.
type Service struct {
	backend backend.Backend
	store   topology.Store
	catalog catalog.Catalog
	objects objstore.Store
	gate    *catalog.Gate
	rebuild *topology.Reconstructor
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	tracer := telemetry.Tracer("pipeline")
	if cfg.TracerProvider != nil {
		tracer = cfg.TracerProvider.Tracer(telemetry.Instrumentation + "/pipeline")
	}

	return &Service{
		backend: cfg.Backend,
		store:   cfg.Topology,
		catalog: cfg.Catalog,
		objects: cfg.Objects,
		gate:    catalog.NewGate(cfg.Catalog),
		rebuild: topology.NewReconstructor(topology.ReconstructorConfig{
			Store:   cfg.Topology,
			Backend: cfg.Backend,
			Logger:  logger,
		}),
		metrics: cfg.Metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// IngestBucket принимает все ещё не принятые таблицы бакета и
// профилирует бакет целиком после них.
func (s *Service) IngestBucket(ctx context.Context, bucket string) (sub Submission, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "pipeline.IngestBucket", attribute.String("bucket", bucket))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.requireBucket(ctx, bucket); err != nil {
		return Submission{}, err
	}

	paths, err := s.objects.ListTables(ctx, bucket)
	if err != nil {
		return Submission{}, fmt.Errorf("list tables: %w", err)
	}
	if len(paths) == 0 {
		return Submission{}, fmt.Errorf("%w: %s", ErrBucketEmpty, bucket)
	}

	candidates := make([]catalog.Candidate, len(paths))
	for i, p := range paths {
		candidates[i] = catalog.Candidate{Bucket: bucket, Path: p}
	}
	pending, skipped, err := s.gate.Filter(ctx, candidates)
	if err != nil {
		return Submission{}, err
	}
	s.metrics.UnitsSkipped(len(skipped))
	span.SetAttributes(attribute.Int("units.pending", len(pending)), attribute.Int("units.skipped", len(skipped)))

	leaves := make([]domain.Invocation, len(pending))
	for i, c := range pending {
		leaves[i] = domain.IngestUnit(c.Bucket, c.Path)
	}
	plan, err := topology.FanOut(leaves, domain.ProfileAll(bucket))
	if err != nil {
		if errors.Is(err, topology.ErrNothingToDo) {
			s.logger.Info("bucket already ingested", "bucket", bucket, "skipped", len(skipped))
		}
		return Submission{}, err
	}

	sub, err = s.submit(ctx, plan, TypeIngestion)
	if err != nil {
		return Submission{}, err
	}
	s.logger.Info("bucket ingestion submitted",
		"root_id", sub.ID,
		"bucket", bucket,
		"tables", len(plan.Leaves()),
		"skipped", len(skipped),
	)
	return sub, nil
}

// AddTable принимает и профилирует одну таблицу.
func (s *Service) AddTable(ctx context.Context, bucket, path string) (sub Submission, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "pipeline.AddTable",
		attribute.String("bucket", bucket), attribute.String("path", path))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.requireTable(ctx, bucket, path); err != nil {
		return Submission{}, err
	}

	pending, _, err := s.gate.Filter(ctx, []catalog.Candidate{{Bucket: bucket, Path: path}})
	if err != nil {
		return Submission{}, err
	}
	if len(pending) == 0 {
		s.metrics.UnitsSkipped(1)
		return Submission{}, fmt.Errorf("%w: %s", catalog.ErrAlreadyProcessed, path)
	}

	plan, err := topology.Chain(domain.IngestUnit(bucket, path), domain.ProfileUnit(bucket, path))
	if err != nil {
		return Submission{}, err
	}

	sub, err = s.submit(ctx, plan, TypeSingleIngestion)
	if err != nil {
		return Submission{}, err
	}
	s.logger.Info("table ingestion submitted", "root_id", sub.ID, "bucket", bucket, "path", path)
	return sub, nil
}

// ProfileTable заново профилирует уже принятую таблицу.
func (s *Service) ProfileTable(ctx context.Context, bucket, path string) (sub Submission, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "pipeline.ProfileTable",
		attribute.String("bucket", bucket), attribute.String("path", path))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.requireTable(ctx, bucket, path); err != nil {
		return Submission{}, err
	}

	done, err := s.catalog.IsProcessed(ctx, path)
	if err != nil {
		return Submission{}, fmt.Errorf("check catalog: %w", err)
	}
	if !done {
		return Submission{}, fmt.Errorf("%w: %s", ErrNotIngested, path)
	}

	plan, err := topology.Single(domain.ProfileUnit(bucket, path))
	if err != nil {
		return Submission{}, err
	}

	sub, err = s.submit(ctx, plan, TypeProfiling)
	if err != nil {
		return Submission{}, err
	}
	s.logger.Info("table profiling submitted", "root_id", sub.ID, "bucket", bucket, "path", path)
	return sub, nil
}

// submit отправляет план и сохраняет дерево. Идентификатор отдаётся
// только после успешного Persist.
func (s *Service) submit(ctx context.Context, plan topology.Plan, kind string) (Submission, error) {
	topo, err := topology.Submit(ctx, s.backend, plan)
	if err != nil {
		return Submission{}, err
	}

	if err := s.store.Persist(ctx, topo); err != nil {
		// Jobs уже в backend, но без дерева статус по ним не собрать
		s.logger.Error("failed to persist topology",
			"root_id", topo.RootID,
			"nodes", topo.Len(),
			"error", err,
		)
		return Submission{}, fmt.Errorf("persist topology: %w", err)
	}

	s.metrics.Submission(kind)
	return Submission{ID: topo.RootID, Type: kind}, nil
}

// Status собирает дерево статусов отправки.
func (s *Service) Status(ctx context.Context, id string) (node *topology.StatusNode, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "pipeline.Status", attribute.String("root_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	node, err = s.rebuild.Reconstruct(ctx, id)
	s.metrics.StatusQuery(statusOutcome(err))
	return node, err
}

func statusOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, topology.ErrNotFound):
		return "not_found"
	case errors.Is(err, topology.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, topology.ErrTopologyCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}

// Purge удаляет все деревья и весь каталог.
func (s *Service) Purge(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "pipeline.Purge")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge topologies: %w", err)
	}
	if err := s.catalog.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge catalog: %w", err)
	}
	s.logger.Warn("all topologies and unit metadata purged")
	return nil
}

// ListTables возвращает принятые таблицы. Пустой bucket — все.
func (s *Service) ListTables(ctx context.Context, bucket string) ([]domain.Unit, error) {
	units, err := s.catalog.List(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

// PreviewTable возвращает заголовок и первые rows строк таблицы.
func (s *Service) PreviewTable(ctx context.Context, bucket, path string, rows int) ([][]string, error) {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}
	rows = min(rows, MaxPreviewRows)

	if err := s.requireTable(ctx, bucket, path); err != nil {
		return nil, err
	}

	out, err := objstore.Head(ctx, s.objects, bucket, path, rows)
	if err != nil {
		if errors.Is(err, objstore.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrTableNotFound, bucket, path)
		}
		return nil, err
	}
	return out, nil
}

func (s *Service) requireBucket(ctx context.Context, bucket string) error {
	ok, err := s.objects.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	return nil
}

func (s *Service) requireTable(ctx context.Context, bucket, path string) error {
	if err := s.requireBucket(ctx, bucket); err != nil {
		return err
	}
	ok, err := s.objects.TableExists(ctx, bucket, path)
	if err != nil {
		return fmt.Errorf("check table: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrTableNotFound, bucket, path)
	}
	return nil
}
