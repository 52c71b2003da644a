package catalog

import (
	"context"
	"fmt"
)

// Candidate — таблица, которую предлагают принять.
type Candidate struct {
	Bucket string
	Path   string
}

// ProcessedChecker — часть Catalog, нужная Gate.
type ProcessedChecker interface {
	IsProcessed(ctx context.Context, path string) (bool, error)
}

// Gate отсекает уже принятые таблицы. Ничего не записывает.
type Gate struct {
	catalog ProcessedChecker
}

// NewGate создаёт Gate поверх каталога.
func NewGate(c ProcessedChecker) *Gate {
	return &Gate{catalog: c}
}

// Filter возвращает кандидатов, которых нет в каталоге, в исходном порядке,
// и отброшенных. Повторы пути внутри одного запроса схлопываются в первый.
func (g *Gate) Filter(ctx context.Context, candidates []Candidate) (pending, skipped []Candidate, err error) {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Path]; dup {
			skipped = append(skipped, c)
			continue
		}
		seen[c.Path] = struct{}{}

		done, err := g.catalog.IsProcessed(ctx, c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("gate %s: %w", c.Path, err)
		}
		if done {
			skipped = append(skipped, c)
			continue
		}
		pending = append(pending, c)
	}
	return pending, skipped, nil
}
