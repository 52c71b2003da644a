package backend

import (
	"context"
	"errors"

	"github.com/shaiso/tabledisco/internal/domain"
)

var (
	// ErrJobNotFound — backend не знает такой идентификатор.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnavailable — backend не ответил.
	ErrUnavailable = errors.New("execution backend unavailable")
)

// Group — результат SubmitGroup: id группы и ids членов в порядке отправки.
type Group struct {
	ID     string
	JobIDs []string
}

// Status — живое состояние job.
type Status struct {
	State  domain.JobState
	Result map[string]any
	Error  string
}

// Backend — контракт Execution Backend.
type Backend interface {
	Submit(ctx context.Context, inv domain.Invocation) (string, error)
	SubmitGroup(ctx context.Context, invs []domain.Invocation) (Group, error)
	SubmitJoin(ctx context.Context, groupID string, inv domain.Invocation) (string, error)
	QueryState(ctx context.Context, jobID string) (Status, error)
}

// FanIn — необязательная возможность backend: группа и её finalize job
// ставятся одной операцией. Без неё Submit делает SubmitGroup и SubmitJoin
// по отдельности, и отказ между ними оставляет группу без finalize.
type FanIn interface {
	SubmitFanIn(ctx context.Context, members []domain.Invocation, last domain.Invocation) (Group, string, error)
}
