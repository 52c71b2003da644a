package repo

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tabledisco/internal/domain"
)

// newTestRepo подключается к базе из TABLEDISCO_TEST_DB_URL; без неё тест пропускается.
func newTestRepo(t *testing.T, lease time.Duration) *JobRepo {
	t.Helper()
	dsn := os.Getenv("TABLEDISCO_TEST_DB_URL")
	if dsn == "" {
		t.Skip("TABLEDISCO_TEST_DB_URL is not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := InitSchema(ctx, pool); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewJobRepo(pool, lease)
}

func readyIDs(t *testing.T, r *JobRepo) []uuid.UUID {
	t.Helper()
	jobs, err := r.ListReady(context.Background(), 10000)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

func TestJobRepo_RequeueAndStaleReclaim(t *testing.T) {
	r := newTestRepo(t, time.Minute)
	ctx := context.Background()

	job := domain.NewJob(domain.IngestUnit("b", "t.csv"))
	if err := r.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Claim(ctx, job.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := r.Claim(ctx, job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("fresh RUNNING job must not be claimable, got %v", err)
	}

	if err := r.Requeue(ctx, job.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	requeued, err := r.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if requeued.State != domain.JobStatePending || requeued.Attempt != 0 {
		t.Errorf("unexpected requeued job: state=%s attempt=%d", requeued.State, requeued.Attempt)
	}
	if err := r.Requeue(ctx, job.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("requeue of PENDING job must fail, got %v", err)
	}

	// Worker умер посреди попытки: started_at старше lease
	if _, err := r.Claim(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.pool.Exec(ctx, `UPDATE jobs SET started_at = now() - interval '1 hour' WHERE id = $1`, job.ID); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(readyIDs(t, r), job.ID) {
		t.Error("stale RUNNING job not listed as ready")
	}
	reclaimed, err := r.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("stale job not reclaimed: %v", err)
	}
	if reclaimed.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", reclaimed.Attempt)
	}
}

func TestJobRepo_ListWaitingJoinsPages(t *testing.T) {
	r := newTestRepo(t, 0)
	ctx := context.Background()

	gid := uuid.New()
	var want []uuid.UUID
	base := time.Now().UTC()
	for i := range 5 {
		join := domain.NewJob(domain.ProfileAll("b"))
		join.AfterGroup = &gid
		join.Ready = false
		join.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		if err := r.Create(ctx, join); err != nil {
			t.Fatal(err)
		}
		want = append(want, join.ID)
	}

	var (
		got          []uuid.UUID
		afterCreated time.Time
		afterID      uuid.UUID
	)
	for {
		page, err := r.ListWaitingJoins(ctx, afterCreated, afterID, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, j := range page {
			if *j.AfterGroup == gid {
				got = append(got, j.ID)
			}
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		afterCreated, afterID = last.CreatedAt, last.ID
	}

	if !slices.Equal(got, want) {
		t.Errorf("pages lost or reordered joins: got %v, want %v", got, want)
	}
}
