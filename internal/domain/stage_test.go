package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestInvocationValidate(t *testing.T) {
	tests := []struct {
		name    string
		inv     Invocation
		wantErr error
	}{
		{"ingest ok", IngestUnit("b", "t.csv"), nil},
		{"profile ok", ProfileUnit("b", "t.csv"), nil},
		{"profile-all ok", ProfileAll("b"), nil},
		{"empty stage", Invocation{Args: StageArgs{Bucket: "b"}}, ErrUnknownStage},
		{"unknown stage", Invocation{Stage: "explode", Args: StageArgs{Bucket: "b"}}, ErrUnknownStage},
		{"ingest without path", IngestUnit("b", ""), ErrInvalidArgs},
		{"missing bucket", ProfileUnit(" ", "t.csv"), ErrInvalidArgs},
		{"profile-all with path", Invocation{Stage: StageProfileAll, Args: StageArgs{Bucket: "b", Path: "x"}}, ErrInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inv.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestArgsList(t *testing.T) {
	if got := ProfileAll("b").Args.List(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("unexpected list: %v", got)
	}
	if got := IngestUnit("b", "t.csv").Args.List(); !reflect.DeepEqual(got, []string{"b", "t.csv"}) {
		t.Errorf("unexpected list: %v", got)
	}

}

func TestUnitName(t *testing.T) {
	cases := map[string]string{
		"orders.csv":         "orders",
		"raw/2024/users.csv": "users",
		"noext":              "noext",
	}
	for in, want := range cases {
		if got := UnitName(in); got != want {
			t.Errorf("UnitName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeNodesKeepsExisting(t *testing.T) {
	u := Unit{Nodes: map[string]string{"id": "n1"}}

	added := u.MergeNodes(map[string]string{"id": "other", "name": "n2"})

	if added != 1 {
		t.Errorf("expected 1 added, got %d", added)
	}
	if u.Nodes["id"] != "n1" {
		t.Errorf("existing node overwritten: %s", u.Nodes["id"])
	}
	if u.Nodes["name"] != "n2" {
		t.Errorf("new node missing")
	}
}

func TestJobLifecycle(t *testing.T) {
	j := NewJob(IngestUnit("b", "t.csv"))
	if j.State != JobStatePending || !j.Ready {
		t.Fatalf("unexpected initial job: %+v", j)
	}

	j.MarkRunning()
	if j.Attempt != 1 || j.State != JobStateRunning {
		t.Fatalf("unexpected running job: %+v", j)
	}

	j.MarkFailed("boom")
	if !j.State.IsTerminal() || j.Error != "boom" {
		t.Fatalf("unexpected failed job: %+v", j)
	}

	j.MarkRunning()
	if j.Attempt != 2 || j.Error != "" {
		t.Fatalf("retry did not reset: %+v", j)
	}
}

func TestJobRequeue(t *testing.T) {
	j := NewJob(IngestUnit("b", "t.csv"))
	j.MarkRunning()
	j.Requeue()

	if j.State != JobStatePending || !j.Ready {
		t.Fatalf("requeued job must be ready PENDING: %+v", j)
	}
	if j.Attempt != 0 || j.StartedAt != nil {
		t.Errorf("interrupted attempt must not count: %+v", j)
	}
}
