package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/tabledisco/internal/domain"
)

// Executor исполняет одну стадию.
//
// Инфраструктурные ошибки возвращаются через error, логические — через Result.Error.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (*Result, error)
}

// Result — итог одной попытки.
type Result struct {
	Outputs map[string]any

	// Error — логическая ошибка: таблица пустая, профайлер ответил 4xx.
	Error string

	// Retryable — логическую ошибку имеет смысл повторить.
	Retryable bool
}

// Failed сообщает, завершилась ли попытка ошибкой.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Registry — executors по стадиям.
type Registry struct {
	executors map[domain.Stage]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.Stage]Executor)}
}

// Register назначает executor стадии.
func (r *Registry) Register(stage domain.Stage, executor Executor) {
	r.executors[stage] = executor
}

// Get возвращает executor стадии.
func (r *Registry) Get(stage domain.Stage) (Executor, error) {
	executor, ok := r.executors[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return executor, nil
}

// Stages возвращает стадии, для которых есть executor.
func (r *Registry) Stages() []domain.Stage {
	out := make([]domain.Stage, 0, len(r.executors))
	for _, s := range domain.Stages {
		if _, ok := r.executors[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
