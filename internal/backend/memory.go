package backend

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
)

type memJob struct {
	inv        domain.Invocation
	status     Status
	afterGroup string
}

// Memory — Execution Backend в памяти процесса.
//
// Jobs не выполняются сами: состояние двигают Start, Succeed и Fail.
// Join-семантика та же, что у Postgres с dispatcher'ом: finalize job
// проваливается, как только падает член группы.
type Memory struct {
	mu     sync.RWMutex
	jobs   map[string]*memJob
	groups map[string][]string
	order  []string

	unavailable bool
	failSubmits int
}

// NewMemory создаёт пустой backend.
func NewMemory() *Memory {
	return &Memory{
		jobs:   make(map[string]*memJob),
		groups: make(map[string][]string),
	}
}

func (m *Memory) add(inv domain.Invocation, afterGroup string) string {
	id := uuid.NewString()
	m.jobs[id] = &memJob{
		inv:        inv,
		status:     Status{State: domain.JobStatePending},
		afterGroup: afterGroup,
	}
	m.order = append(m.order, id)
	return id
}

func (m *Memory) checkSubmit() error {
	if m.unavailable {
		return ErrUnavailable
	}
	if m.failSubmits > 0 {
		m.failSubmits--
		return fmt.Errorf("%w: injected submit failure", ErrUnavailable)
	}
	return nil
}

// Submit регистрирует один job.
func (m *Memory) Submit(_ context.Context, inv domain.Invocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSubmit(); err != nil {
		return "", err
	}
	return m.add(inv, ""), nil
}

// SubmitGroup регистрирует группу.
func (m *Memory) SubmitGroup(_ context.Context, invs []domain.Invocation) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSubmit(); err != nil {
		return Group{}, err
	}

	group := Group{ID: uuid.NewString(), JobIDs: make([]string, len(invs))}
	for i, inv := range invs {
		group.JobIDs[i] = m.add(inv, "")
	}
	m.groups[group.ID] = group.JobIDs
	return group, nil
}

// SubmitJoin регистрирует finalize job для группы.
func (m *Memory) SubmitJoin(_ context.Context, groupID string, inv domain.Invocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSubmit(); err != nil {
		return "", err
	}
	if _, ok := m.groups[groupID]; !ok {
		return "", fmt.Errorf("%w: group %s", ErrJobNotFound, groupID)
	}
	id := m.add(inv, groupID)
	m.settleJoin(id)
	return id, nil
}

// SubmitFanIn регистрирует группу и finalize job атомарно.
func (m *Memory) SubmitFanIn(_ context.Context, members []domain.Invocation, last domain.Invocation) (Group, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSubmit(); err != nil {
		return Group{}, "", err
	}

	group := Group{ID: uuid.NewString(), JobIDs: make([]string, len(members))}
	for i, inv := range members {
		group.JobIDs[i] = m.add(inv, "")
	}
	m.groups[group.ID] = group.JobIDs
	joinID := m.add(last, group.ID)
	return group, joinID, nil
}

// QueryState возвращает состояние job.
func (m *Memory) QueryState(_ context.Context, jobID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return Status{}, ErrUnavailable
	}
	job, ok := m.jobs[jobID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job.status, nil
}

// Start переводит job в RUNNING.
func (m *Memory) Start(jobID string) {
	m.transition(jobID, Status{State: domain.JobStateRunning})
}

// Succeed завершает job успешно.
func (m *Memory) Succeed(jobID string, result map[string]any) {
	m.transition(jobID, Status{State: domain.JobStateSucceeded, Result: result})
}

// Fail завершает job ошибкой.
func (m *Memory) Fail(jobID, msg string) {
	m.transition(jobID, Status{State: domain.JobStateFailed, Error: msg})
}

func (m *Memory) transition(jobID string, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	job.status = st

	for id, j := range m.jobs {
		if j.afterGroup != "" && slices.Contains(m.groups[j.afterGroup], jobID) {
			m.settleJoin(id)
		}
	}
}

// settleJoin проваливает finalize job, если в группе есть FAILED.
func (m *Memory) settleJoin(joinID string) {
	join := m.jobs[joinID]
	if join.status.State != domain.JobStatePending {
		return
	}
	for _, memberID := range m.groups[join.afterGroup] {
		if member, ok := m.jobs[memberID]; ok && member.status.State == domain.JobStateFailed {
			join.status = Status{State: domain.JobStateFailed, Error: "dependency failed: " + memberID}
			return
		}
	}
}

// Forget удаляет job, как будто backend потерял его результат.
func (m *Memory) Forget(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
}

// SetUnavailable включает или выключает отказ всех вызовов.
func (m *Memory) SetUnavailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = v
}

// FailNextSubmits проваливает следующие n вызовов Submit*.
func (m *Memory) FailNextSubmits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSubmits = n
}

// Invocation возвращает вызов, с которым был создан job.
func (m *Memory) Invocation(jobID string) (domain.Invocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.Invocation{}, false
	}
	return job.inv, true
}

// Submitted возвращает ids всех jobs в порядке регистрации.
func (m *Memory) Submitted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}
