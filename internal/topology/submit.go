package topology

import (
	"context"
	"fmt"

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/domain"
)

// Submitter — часть backend, нужная для отправки плана.
type Submitter interface {
	Submit(ctx context.Context, inv domain.Invocation) (string, error)
	SubmitGroup(ctx context.Context, invs []domain.Invocation) (backend.Group, error)
	SubmitJoin(ctx context.Context, groupID string, inv domain.Invocation) (string, error)
}

// Submit отправляет план в backend и возвращает дерево с выданными идентификаторами.
//
// Chain отправляется как группа из первой стадии и join на вторую, поэтому
// корнем становится последняя стадия. Fan-out: корень — finalize, дети — листы
// в порядке отправки.
func Submit(ctx context.Context, b Submitter, p Plan) (*Topology, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.shape {
	case ShapeSingle:
		inv := p.stages[0]
		id, err := b.Submit(ctx, inv)
		if err != nil {
			return nil, unavailable(inv, err)
		}
		return newTopology(id, string(inv.Stage), inv.Args.List()), nil

	case ShapeChain:
		return submitJoined(ctx, b, p.stages[:1], p.stages[1])

	case ShapeFanOut:
		return submitJoined(ctx, b, p.leaves, p.finalize)
	}

	return nil, &ValidationError{Index: -1, Message: "unknown plan shape " + p.shape.String()}
}

// submitJoined ставит группу и её finalize job. Backend с FanIn делает это
// атомарно; иначе отказ SubmitJoin оставляет группу без finalize.
func submitJoined(ctx context.Context, b Submitter, members []domain.Invocation, last domain.Invocation) (*Topology, error) {
	var (
		group  backend.Group
		rootID string
		err    error
	)
	if fi, ok := b.(backend.FanIn); ok {
		group, rootID, err = fi.SubmitFanIn(ctx, members, last)
		if err != nil {
			return nil, unavailable(members[0], err)
		}
	} else {
		group, err = b.SubmitGroup(ctx, members)
		if err != nil {
			return nil, unavailable(members[0], err)
		}
		rootID, err = b.SubmitJoin(ctx, group.ID, last)
		if err != nil {
			return nil, unavailable(last, err)
		}
	}
	if len(group.JobIDs) != len(members) {
		return nil, fmt.Errorf("%w: backend returned %d ids for %d jobs",
			ErrBackendUnavailable, len(group.JobIDs), len(members))
	}

	t := newTopology(rootID, string(last.Stage), last.Args.List())
	for i, inv := range members {
		if err := t.addChild(rootID, group.JobIDs[i], string(inv.Stage), inv.Args.List()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return t, nil
}

func unavailable(inv domain.Invocation, err error) error {
	return fmt.Errorf("%w: submit %s: %v", ErrBackendUnavailable, inv, err)
}
