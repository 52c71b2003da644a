package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/repo"
)

// fakeJobs — JobStore в памяти для проверки Postgres backend без базы.
type fakeJobs struct {
	jobs    map[uuid.UUID]*domain.Job
	failErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (f *fakeJobs) Create(_ context.Context, job *domain.Job) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) CreateBatch(ctx context.Context, jobs []*domain.Job) error {
	if f.failErr != nil {
		return f.failErr
	}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) ListByGroup(_ context.Context, groupID uuid.UUID) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range f.jobs {
		if j.GroupID != nil && *j.GroupID == groupID {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	ids []uuid.UUID
}

func (n *fakeNotifier) PublishJobReady(_ context.Context, id uuid.UUID) error {
	n.ids = append(n.ids, id)
	return nil
}

func TestPostgres_SubmitGroupAndJoin(t *testing.T) {
	ctx := context.Background()
	jobs := newFakeJobs()
	notifier := &fakeNotifier{}
	b := NewPostgres(PostgresConfig{Jobs: jobs, Notifier: notifier})

	group, err := b.SubmitGroup(ctx, []domain.Invocation{
		domain.IngestUnit("b", "a.csv"),
		domain.IngestUnit("b", "c.csv"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(group.JobIDs) != 2 {
		t.Fatalf("expected 2 job ids, got %d", len(group.JobIDs))
	}
	// Оба члена группы готовы и разбужены
	if len(notifier.ids) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(notifier.ids))
	}

	joinID, err := b.SubmitJoin(ctx, group.ID, domain.ProfileAll("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	join := jobs.jobs[uuid.MustParse(joinID)]
	if join.Ready {
		t.Error("join must not be ready before its group finishes")
	}
	if join.AfterGroup == nil || join.AfterGroup.String() != group.ID {
		t.Errorf("join not attached to group: %v", join.AfterGroup)
	}
	if len(notifier.ids) != 2 {
		t.Errorf("join must not be published, got %d notifications", len(notifier.ids))
	}
}

func TestPostgres_SubmitJoinUnknownGroup(t *testing.T) {
	b := NewPostgres(PostgresConfig{Jobs: newFakeJobs()})

	_, err := b.SubmitJoin(context.Background(), uuid.NewString(), domain.ProfileAll("b"))
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPostgres_QueryState(t *testing.T) {
	ctx := context.Background()
	jobs := newFakeJobs()
	b := NewPostgres(PostgresConfig{Jobs: jobs})

	id, err := b.Submit(ctx, domain.ProfileUnit("b", "a.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs.jobs[uuid.MustParse(id)].MarkFailed("profiler down")

	st, err := b.QueryState(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != domain.JobStateFailed || st.Error != "profiler down" {
		t.Errorf("unexpected status: %+v", st)
	}

	if _, err := b.QueryState(ctx, "not-a-uuid"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for malformed id, got %v", err)
	}
	if _, err := b.QueryState(ctx, uuid.NewString()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for unknown id, got %v", err)
	}

	jobs.failErr = errors.New("connection refused")
	if _, err := b.QueryState(ctx, id); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgres_SubmitFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failErr = errors.New("connection refused")
	b := NewPostgres(PostgresConfig{Jobs: jobs})

	if _, err := b.Submit(context.Background(), domain.ProfileAll("b")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemory_JoinFailsWithMember(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	group, err := m.SubmitGroup(ctx, []domain.Invocation{
		domain.IngestUnit("b", "a.csv"),
		domain.IngestUnit("b", "c.csv"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joinID, err := m.SubmitJoin(ctx, group.ID, domain.ProfileAll("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Succeed(group.JobIDs[0], nil)
	st, _ := m.QueryState(ctx, joinID)
	if st.State != domain.JobStatePending {
		t.Fatalf("join should wait, got %s", st.State)
	}

	m.Fail(group.JobIDs[1], "bad header")
	st, _ = m.QueryState(ctx, joinID)
	if st.State != domain.JobStateFailed {
		t.Fatalf("join should fail with its member, got %s", st.State)
	}
}

func TestMemory_Faults(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.FailNextSubmits(1)
	if _, err := m.Submit(ctx, domain.ProfileAll("b")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	id, err := m.Submit(ctx, domain.ProfileAll("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Forget(id)
	if _, err := m.QueryState(ctx, id); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPostgres_SubmitFanIn(t *testing.T) {
	ctx := context.Background()
	jobs := newFakeJobs()
	notifier := &fakeNotifier{}
	b := NewPostgres(PostgresConfig{Jobs: jobs, Notifier: notifier})

	group, joinID, err := b.SubmitFanIn(ctx,
		[]domain.Invocation{domain.IngestUnit("b", "a.csv"), domain.IngestUnit("b", "c.csv")},
		domain.ProfileAll("b"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(group.JobIDs) != 2 {
		t.Fatalf("expected 2 member ids, got %d", len(group.JobIDs))
	}
	if len(jobs.jobs) != 3 {
		t.Fatalf("expected members and join stored together, got %d jobs", len(jobs.jobs))
	}

	join := jobs.jobs[uuid.MustParse(joinID)]
	if join.Ready || join.AfterGroup == nil || join.AfterGroup.String() != group.ID {
		t.Errorf("join must wait for its group: ready=%v after=%v", join.Ready, join.AfterGroup)
	}
	if len(notifier.ids) != 2 {
		t.Errorf("only members must be published, got %d", len(notifier.ids))
	}
}

func TestPostgres_SubmitFanInFailureStoresNothing(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failErr = errors.New("connection refused")
	notifier := &fakeNotifier{}
	b := NewPostgres(PostgresConfig{Jobs: jobs, Notifier: notifier})

	_, _, err := b.SubmitFanIn(context.Background(),
		[]domain.Invocation{domain.IngestUnit("b", "a.csv")}, domain.ProfileAll("b"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(jobs.jobs) != 0 || len(notifier.ids) != 0 {
		t.Errorf("failed fan-in must leave no jobs and no notifications")
	}
}
