package topology

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode_StableFormat(t *testing.T) {
	data := `{"id":"root","name":"profile-all","args":["b"],"children":[
		{"id":"l1","name":"ingest-unit","args":["b","a.csv"],"children":[]},
		{"id":"l2","name":"ingest-unit","args":["b","c.csv"],"children":[]}]}`

	topo, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topo.RootID != "root" || topo.Len() != 3 {
		t.Fatalf("unexpected topology: root=%s len=%d", topo.RootID, topo.Len())
	}
	if got := topo.Root().ChildIDs; len(got) != 2 || got[0] != "l1" || got[1] != "l2" {
		t.Errorf("children order lost: %v", got)
	}

	encoded, err := Encode(topo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(encoded), `"children":[]`) {
		t.Errorf("leaf children must encode as empty array: %s", encoded)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"id":`},
		{"empty id", `{"id":"","name":"x","args":[],"children":[]}`},
		{"empty name", `{"id":"r","name":"","args":[],"children":[]}`},
		{"duplicate id", `{"id":"r","name":"x","args":[],"children":[{"id":"r","name":"y","args":[],"children":[]}]}`},
		{"sibling duplicate", `{"id":"r","name":"x","args":[],"children":[
			{"id":"a","name":"y","args":[],"children":[]},
			{"id":"a","name":"y","args":[],"children":[]}]}`},
		{"too deep", `{"id":"r","name":"x","args":[],"children":[
			{"id":"a","name":"y","args":[],"children":[{"id":"b","name":"z","args":[],"children":[]}]}]}`},
		{"wrong type", `{"id":"r","name":"x","args":"b","children":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrTopologyCorrupt) {
				t.Fatalf("expected ErrTopologyCorrupt, got %v", err)
			}
		})
	}
}
