package topology

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/domain"
)

// flakyBackend проваливает запрос состояния одного job.
type flakyBackend struct {
	*backend.Memory
	failID string
}

func (f *flakyBackend) QueryState(ctx context.Context, id string) (backend.Status, error) {
	if id == f.failID {
		return backend.Status{}, errors.New("connection reset")
	}
	return f.Memory.QueryState(ctx, id)
}

func submitAndPersist(t *testing.T, b *backend.Memory, store Store, plan Plan) *Topology {
	t.Helper()
	topo, err := Submit(context.Background(), b, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Persist(context.Background(), topo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return topo
}

func TestReconstruct_FanOut(t *testing.T) {
	ctx := context.Background()
	b := backend.NewMemory()
	store := NewMemoryStore()
	topo := submitAndPersist(t, b, store, mustFanOut(t, "b", "A.csv", "B.csv"))

	leaves := topo.Root().ChildIDs
	b.Succeed(leaves[0], nil)
	b.Fail(leaves[1], "bad header")

	r := NewReconstructor(ReconstructorConfig{Store: store, Backend: b})
	root, err := r.Reconstruct(ctx, topo.RootID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.Name != string(domain.StageProfileAll) || root.State != domain.JobStateFailed {
		t.Errorf("unexpected root: %s %s", root.Name, root.State)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	if root.Children[0].ID != leaves[0] || root.Children[1].ID != leaves[1] {
		t.Errorf("children order differs from submission order")
	}
	if root.Children[0].State != domain.JobStateSucceeded {
		t.Errorf("leaf 0: got %s", root.Children[0].State)
	}
	if root.Children[1].State != domain.JobStateFailed || root.Children[1].Error != "bad header" {
		t.Errorf("leaf 1: got %s %q", root.Children[1].State, root.Children[1].Error)
	}
	for _, leaf := range root.Children {
		if leaf.Parent != root || len(leaf.Children) != 0 {
			t.Errorf("leaf %s must hang directly under root", leaf.ID)
		}
	}

	counts := root.Counts()
	if counts[domain.JobStateFailed] != 2 || counts[domain.JobStateSucceeded] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestReconstruct_ChainPendingRightAfterSubmit(t *testing.T) {
	b := backend.NewMemory()
	store := NewMemoryStore()
	plan, _ := Chain(domain.IngestUnit("b", "C.csv"), domain.ProfileUnit("b", "C.csv"))
	topo := submitAndPersist(t, b, store, plan)

	r := NewReconstructor(ReconstructorConfig{Store: store, Backend: b})
	root, err := r.Reconstruct(context.Background(), topo.RootID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root.Walk(func(n *StatusNode, _ int) {
		if n.State != domain.JobStatePending {
			t.Errorf("node %s (%s): expected PENDING, got %s", n.ID, n.Name, n.State)
		}
	})
	if root.Name != string(domain.StageProfileUnit) || root.Children[0].Name != string(domain.StageIngestUnit) {
		t.Errorf("unexpected chain: %s → %s", root.Name, root.Children[0].Name)
	}
}

func TestReconstruct_UnknownID(t *testing.T) {
	r := NewReconstructor(ReconstructorConfig{Store: NewMemoryStore(), Backend: backend.NewMemory()})

	root, err := r.Reconstruct(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if root != nil {
		t.Errorf("expected no tree, got %+v", root)
	}
}

func TestReconstruct_TransientFailureFailsWholeCall(t *testing.T) {
	mem := backend.NewMemory()
	store := NewMemoryStore()
	topo := submitAndPersist(t, mem, store, mustFanOut(t, "b", "A.csv", "B.csv"))

	b := &flakyBackend{Memory: mem, failID: topo.Root().ChildIDs[1]}
	r := NewReconstructor(ReconstructorConfig{Store: store, Backend: b})

	root, err := r.Reconstruct(context.Background(), topo.RootID)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if root != nil {
		t.Errorf("partial tree returned")
	}
}

func TestReconstruct_ForgottenJobIsPending(t *testing.T) {
	b := backend.NewMemory()
	store := NewMemoryStore()
	topo := submitAndPersist(t, b, store, mustFanOut(t, "b", "A.csv"))

	b.Forget(topo.Root().ChildIDs[0])

	r := NewReconstructor(ReconstructorConfig{Store: store, Backend: b})
	root, err := r.Reconstruct(context.Background(), topo.RootID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Children[0].State != domain.JobStatePending {
		t.Errorf("expected PENDING, got %s", root.Children[0].State)
	}
}

func TestReconstruct_CorruptRecord(t *testing.T) {
	store := NewMemoryStore()
	store.PutRaw("root", []byte(`{"id":"root","name":"x","args":[],"children":[{"id":"root","name":"y","args":[],"children":[]}]}`))

	r := NewReconstructor(ReconstructorConfig{Store: store, Backend: backend.NewMemory()})
	if _, err := r.Reconstruct(context.Background(), "root"); !errors.Is(err, ErrTopologyCorrupt) {
		t.Fatalf("expected ErrTopologyCorrupt, got %v", err)
	}
}
