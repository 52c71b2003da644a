package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/domain"
)

// StateQuerier — часть backend, нужная для восстановления статуса.
type StateQuerier interface {
	QueryState(ctx context.Context, jobID string) (backend.Status, error)
}

// StatusNode — узел дерева с живым состоянием job.
type StatusNode struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Args     []string        `json:"args"`
	State    domain.JobState `json:"status"`
	Error    string          `json:"error,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Children []*StatusNode   `json:"children"`

	// Parent — обратная ссылка для обхода вверх. Не сериализуется.
	Parent *StatusNode `json:"-"`
}

// Walk обходит поддерево в глубину, родитель раньше детей.
func (n *StatusNode) Walk(fn func(node *StatusNode, depth int)) {
	var visit func(node *StatusNode, depth int)
	visit = func(node *StatusNode, depth int) {
		fn(node, depth)
		for _, child := range node.Children {
			visit(child, depth+1)
		}
	}
	visit(n, 0)
}

// Counts считает узлы поддерева по состоянию.
func (n *StatusNode) Counts() map[domain.JobState]int {
	counts := make(map[domain.JobState]int)
	n.Walk(func(node *StatusNode, _ int) {
		counts[node.State]++
	})
	return counts
}

// ReconstructorConfig — зависимости Reconstructor.
type ReconstructorConfig struct {
	Store   Store
	Backend StateQuerier
	Logger  *slog.Logger
}

// Reconstructor собирает дерево статусов по идентификатору корня.
type Reconstructor struct {
	store   Store
	backend StateQuerier
	logger  *slog.Logger
}

// NewReconstructor создаёт Reconstructor.
func NewReconstructor(cfg ReconstructorConfig) *Reconstructor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		store:   cfg.Store,
		backend: cfg.Backend,
		logger:  logger,
	}
}

// Reconstruct загружает дерево и запрашивает состояние каждого узла.
//
// Job, неизвестный backend'у, показывается как PENDING: backend не отличает
// ещё не начатый job от забытого. Любая другая ошибка backend прерывает
// весь вызов с ErrBackendUnavailable, частичное дерево не возвращается.
func (r *Reconstructor) Reconstruct(ctx context.Context, rootID string) (*StatusNode, error) {
	t, err := r.store.Load(ctx, rootID)
	if err != nil {
		return nil, err
	}

	var build func(n *Node, parent *StatusNode) (*StatusNode, error)
	build = func(n *Node, parent *StatusNode) (*StatusNode, error) {
		st, err := r.backend.QueryState(ctx, n.ID)
		switch {
		case errors.Is(err, backend.ErrJobNotFound):
			st = backend.Status{State: domain.JobStatePending}
		case err != nil:
			return nil, fmt.Errorf("%w: query %s: %v", ErrBackendUnavailable, n.ID, err)
		}

		node := &StatusNode{
			ID:       n.ID,
			Name:     n.Name,
			Args:     n.Args,
			State:    st.State,
			Error:    st.Error,
			ParentID: n.ParentID,
			Parent:   parent,
			Children: make([]*StatusNode, 0, len(n.ChildIDs)),
		}
		if node.Args == nil {
			node.Args = []string{}
		}
		for _, child := range t.Children(n) {
			c, err := build(child, node)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, c)
		}
		return node, nil
	}

	root, err := build(t.Root(), nil)
	if err != nil {
		r.logger.Warn("status reconstruction failed", "root_id", rootID, "error", err)
		return nil, err
	}
	return root, nil
}
