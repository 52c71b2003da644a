package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/objstore"
)

// IngestExecutor — executor стадии ingest-unit.
//
// Читает заголовок таблицы, выдаёт каждой колонке идентификатор узла
// и записывает Unit в каталог. Запись в каталог и есть отметка
// "таблица принята", поэтому она делается последней.
//
// Outputs:
//   - name (string): имя таблицы
//   - column_count (int)
//   - nodes (map[string]string): колонка → узел
type IngestExecutor struct {
	Objects objstore.Store
	Catalog catalog.Catalog

	// NewNodeID — генератор идентификаторов узлов (default: uuid).
	NewNodeID func() string
}

// Execute принимает одну таблицу.
func (e *IngestExecutor) Execute(ctx context.Context, job *domain.Job) (*Result, error) {
	bucket, path := job.Args.Bucket, job.Args.Path

	header, err := objstore.ReadHeader(ctx, e.Objects, bucket, path)
	switch {
	case errors.Is(err, objstore.ErrObjectNotFound), errors.Is(err, objstore.ErrEmptyTable):
		return &Result{Error: err.Error()}, nil
	case err != nil:
		return nil, fmt.Errorf("read header: %w", err)
	}

	// Повторная приёмка сохраняет уже выданные идентификаторы.
	nodes := make(map[string]string, len(header))
	existing, err := e.Catalog.Get(ctx, path)
	switch {
	case err == nil:
		for col, id := range existing.Nodes {
			nodes[col] = id
		}
	case !errors.Is(err, catalog.ErrNotFound):
		return nil, fmt.Errorf("load unit: %w", err)
	}

	newID := e.NewNodeID
	if newID == nil {
		newID = uuid.NewString
	}
	for _, col := range header {
		if _, ok := nodes[col]; !ok {
			nodes[col] = newID()
		}
	}

	unit := domain.Unit{
		Name:        domain.UnitName(path),
		Path:        path,
		Bucket:      bucket,
		ColumnCount: len(header),
		Nodes:       nodes,
	}
	if err := e.Catalog.MarkProcessed(ctx, unit); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}

	return &Result{Outputs: map[string]any{
		"name":         unit.Name,
		"column_count": unit.ColumnCount,
		"nodes":        unit.Nodes,
	}}, nil
}
