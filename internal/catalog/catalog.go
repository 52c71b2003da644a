package catalog

import (
	"context"
	"errors"

	"github.com/shaiso/tabledisco/internal/domain"
)

var (
	// ErrNotFound — таблица ещё не принята.
	ErrNotFound = errors.New("unit not found")

	// ErrAlreadyProcessed — таблица уже принята, повторная приёмка не нужна.
	ErrAlreadyProcessed = errors.New("unit already processed")
)

// Catalog — хранилище метаданных таблиц.
type Catalog interface {
	IsProcessed(ctx context.Context, path string) (bool, error)
	MarkProcessed(ctx context.Context, unit domain.Unit) error
	Get(ctx context.Context, path string) (domain.Unit, error)
	AddNodes(ctx context.Context, path string, nodes map[string]string) error
	List(ctx context.Context, bucket string) ([]domain.Unit, error)
	PurgeAll(ctx context.Context) error
}
