package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/shaiso/tabledisco/internal/domain"
)

// Memory — Catalog в памяти процесса.
type Memory struct {
	mu    sync.RWMutex
	units map[string]domain.Unit
}

// NewMemory создаёт пустой каталог.
func NewMemory() *Memory {
	return &Memory{units: make(map[string]domain.Unit)}
}

func (m *Memory) IsProcessed(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.units[path]
	return ok, nil
}

func (m *Memory) MarkProcessed(_ context.Context, unit domain.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit.Nodes = maps.Clone(unit.Nodes)
	m.units[unit.Path] = unit
	return nil
}

func (m *Memory) Get(_ context.Context, path string) (domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[path]
	if !ok {
		return domain.Unit{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	unit.Nodes = maps.Clone(unit.Nodes)
	return unit, nil
}

func (m *Memory) AddNodes(_ context.Context, path string, nodes map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit, ok := m.units[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	unit.MergeNodes(nodes)
	m.units[path] = unit
	return nil
}

// List возвращает таблицы бакета по пути. Пустой bucket — все таблицы.
func (m *Memory) List(_ context.Context, bucket string) ([]domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := slices.Sorted(maps.Keys(m.units))
	out := make([]domain.Unit, 0, len(paths))
	for _, p := range paths {
		unit := m.units[p]
		if bucket != "" && unit.Bucket != bucket {
			continue
		}
		unit.Nodes = maps.Clone(unit.Nodes)
		out = append(out, unit)
	}
	return out, nil
}

func (m *Memory) PurgeAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.units)
	return nil
}
