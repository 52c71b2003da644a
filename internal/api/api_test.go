package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shaiso/tabledisco/internal/backend"
	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/domain"
	"github.com/shaiso/tabledisco/internal/objstore"
	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/topology"
)

type testEnv struct {
	server  *httptest.Server
	backend *backend.Memory
	store   *topology.MemoryStore
	catalog *catalog.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	objects := objstore.NewMemory()
	objects.CreateBucket("raw")
	objects.CreateBucket("empty")
	objects.Put("raw", "a.csv", []byte("id,name\n1,x\n2,y\n"))
	objects.Put("raw", "b.csv", []byte("id,total\n1,10\n"))

	env := &testEnv{
		backend: backend.NewMemory(),
		store:   topology.NewMemoryStore(),
		catalog: catalog.NewMemory(),
	}
	svc := pipeline.New(pipeline.Config{
		Backend:  env.backend,
		Topology: env.store,
		Catalog:  env.catalog,
		Objects:  objects,
	})

	mux := http.NewServeMux()
	NewHandler(Config{Pipeline: svc}).RegisterRoutes(mux)
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out.Data
}

func TestIngestBucket(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/buckets/raw/ingest", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}
	sub := decodeData[pipeline.Submission](t, resp)
	if sub.ID == "" || sub.Type != pipeline.TypeIngestion {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	// Всё уже отправлено: повтор ничего не делает
	for _, p := range []string{"a.csv", "b.csv"} {
		env.catalog.MarkProcessed(context.Background(), domain.Unit{Path: p, Bucket: "raw"})
	}
	resp = env.do(t, http.MethodPost, "/api/v1/buckets/raw/ingest", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestIngestBucket_StatusCodes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		bucket string
		want   int
	}{
		{"missing", http.StatusNotFound},
		{"empty", http.StatusNoContent},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodPost, "/api/v1/buckets/"+tt.bucket+"/ingest", nil)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.bucket, tt.want, resp.StatusCode)
		}
	}
}

func TestAddTable(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"ok", TableRequest{Bucket: "raw", TablePath: "a.csv"}, http.StatusAccepted},
		{"missing path", TableRequest{Bucket: "raw"}, http.StatusBadRequest},
		{"unknown table", TableRequest{Bucket: "raw", TablePath: "zzz.csv"}, http.StatusNotFound},
		{"unknown bucket", TableRequest{Bucket: "nope", TablePath: "a.csv"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/tables/ingest", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	env.catalog.MarkProcessed(context.Background(), domain.Unit{Path: "b.csv", Bucket: "raw"})
	resp := env.do(t, http.MethodPost, "/api/v1/tables/ingest", TableRequest{Bucket: "raw", TablePath: "b.csv"})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("already processed: expected 204, got %d", resp.StatusCode)
	}
}

func TestAddTable_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/tables/ingest", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestProfileTable_NotIngested(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/tables/profile", TableRequest{Bucket: "raw", TablePath: "a.csv"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	env.catalog.MarkProcessed(context.Background(), domain.Unit{Path: "a.csv", Bucket: "raw"})
	resp = env.do(t, http.MethodPost, "/api/v1/tables/profile", TableRequest{Bucket: "raw", TablePath: "a.csv"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if sub := decodeData[pipeline.Submission](t, resp); sub.Type != pipeline.TypeProfiling {
		t.Errorf("unexpected type %q", sub.Type)
	}
}

func TestGetJobStatus(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/buckets/raw/ingest", nil)
	sub := decodeData[pipeline.Submission](t, resp)

	resp = env.do(t, http.MethodGet, "/api/v1/jobs/"+sub.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	tree := decodeData[map[string]any](t, resp)
	if tree["id"] != sub.ID || tree["name"] != "profile-all" || tree["status"] != "PENDING" {
		t.Errorf("unexpected root: %v", tree)
	}
	children, _ := tree["children"].([]any)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if _, ok := tree["Parent"]; ok {
		t.Error("parent pointer must not be serialized")
	}
}

func TestGetJobStatus_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/jobs/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", resp.StatusCode)
	}

	env.store.PutRaw("broken", []byte(`{"id":"broken","name":""}`))
	resp = env.do(t, http.MethodGet, "/api/v1/jobs/broken", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("corrupt: expected 500, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/tables/ingest", TableRequest{Bucket: "raw", TablePath: "a.csv"})
	sub := decodeData[pipeline.Submission](t, resp)
	env.backend.SetUnavailable(true)
	resp = env.do(t, http.MethodGet, "/api/v1/jobs/"+sub.ID, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("backend down: expected 503, got %d", resp.StatusCode)
	}
}

func TestPreviewTable(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/tables/preview?bucket=raw&table_path=a.csv&rows=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if got := buf.String(); got != "id,name\n1,x\n" {
		t.Errorf("unexpected body %q", got)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/tables/preview?bucket=raw&table_path=a.csv&rows=x", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad rows: expected 400, got %d", resp.StatusCode)
	}
}

func TestListTablesAndPurge(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.MarkProcessed(context.Background(), domain.Unit{Name: "a", Path: "a.csv", Bucket: "raw"})

	resp := env.do(t, http.MethodGet, "/api/v1/tables?bucket=raw", nil)
	units := decodeData[[]UnitResponse](t, resp)
	if len(units) != 1 || units[0].Path != "a.csv" {
		t.Fatalf("unexpected units: %+v", units)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/purge", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/tables", nil)
	if units := decodeData[[]UnitResponse](t, resp); len(units) != 0 {
		t.Errorf("expected empty list after purge, got %d", len(units))
	}
}
