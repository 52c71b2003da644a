package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// fakeAPI отвечает как tabledisco API на несколько маршрутов.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/buckets/{bucket}/ingest", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("bucket") {
		case "done":
			w.WriteHeader(http.StatusNoContent)
		case "missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"bucket not found: missing"}}`))
		default:
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data":{"task_id":"root-1","type":"Ingestion"}}`))
		}
	})
	mux.HandleFunc("POST /api/v1/tables/ingest", func(w http.ResponseWriter, r *http.Request) {
		var req TableRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Bucket != "raw" || req.TablePath != "a.csv" {
			t.Errorf("unexpected body: %+v", req)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"task_id":"root-2","type":"Single Ingestion"}}`))
	})
	mux.HandleFunc("GET /api/v1/tables", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bucket") != "raw" {
			t.Errorf("expected bucket filter, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[{"name":"a","path":"a.csv","bucket":"raw","column_count":2,"nodes":{"id":"n1","name":"n2"}}],"total":1}`))
	})
	mux.HandleFunc("GET /api/v1/tables/preview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id,name\n1,x\n"))
	})
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"root-1","name":"profile-all","args":["raw"],"status":"FAILED","children":[
			{"id":"leaf-1","name":"ingest-unit","args":["raw","a.csv"],"status":"SUCCEEDED","parent_id":"root-1","children":[]},
			{"id":"leaf-2","name":"ingest-unit","args":["raw","b.csv"],"status":"FAILED","error":"table has no header","parent_id":"root-1","children":[]}
		]}}`))
	})
	mux.HandleFunc("POST /api/v1/purge", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"purged":true}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func run(t *testing.T, server *httptest.Server, jsonMode bool, cmd func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := cmd(
		func() *Client { return NewClient(server.URL) },
		func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) },
	)
	c.SetArgs(args)
	c.SetOut(&stderr)
	c.SetErr(&stderr)
	err := c.Execute()
	return stdout.String(), stderr.String(), err
}

func TestClient_IngestBucket(t *testing.T) {
	server := fakeAPI(t)
	client := NewClient(server.URL)

	sub, err := client.IngestBucket("raw")
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID != "root-1" || sub.Type != "Ingestion" {
		t.Errorf("unexpected submission: %+v", sub)
	}

	sub, err = client.IngestBucket("done")
	if err != nil || sub != nil {
		t.Errorf("204 should give nil submission, got %+v, %v", sub, err)
	}

	_, err = client.IngestBucket("missing")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND error, got %v", err)
	}
}

func TestBucketIngestCmd(t *testing.T) {
	server := fakeAPI(t)

	stdout, stderr, err := run(t, server, false, NewBucketCmd, "ingest", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "root-1") || !strings.Contains(stderr, "Submitted: root-1") {
		t.Errorf("unexpected output: %q / %q", stdout, stderr)
	}

	_, stderr, err = run(t, server, false, NewBucketCmd, "ingest", "done")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "Nothing to ingest") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestTableCmds(t *testing.T) {
	server := fakeAPI(t)

	stdout, _, err := run(t, server, true, NewTableCmd, "add", "raw", "a.csv")
	if err != nil {
		t.Fatal(err)
	}
	var sub SubmissionResponse
	if err := json.Unmarshal([]byte(stdout), &sub); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if sub.Type != "Single Ingestion" {
		t.Errorf("unexpected type %q", sub.Type)
	}

	stdout, _, err = run(t, server, false, NewTableCmd, "list", "--bucket", "raw")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "a.csv") {
		t.Errorf("unexpected table:\n%s", stdout)
	}

	stdout, _, err = run(t, server, false, NewTableCmd, "preview", "raw", "a.csv", "--rows", "1")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "id,name\n1,x\n" {
		t.Errorf("unexpected preview %q", stdout)
	}
}

func TestJobStatusCmd_Tree(t *testing.T) {
	server := fakeAPI(t)

	stdout, _, err := run(t, server, false, NewJobCmd, "status", "root-1")
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"profile-all [raw] FAILED  root-1",
		"  ingest-unit [raw a.csv] SUCCEEDED  leaf-1",
		"  ingest-unit [raw b.csv] FAILED  leaf-2  error: table has no header",
		"",
	}, "\n")
	if stdout != want {
		t.Errorf("unexpected tree:\n%s\nwant:\n%s", stdout, want)
	}
}

func TestPurgeCmd_RequiresConfirmation(t *testing.T) {
	server := fakeAPI(t)

	if _, _, err := run(t, server, false, NewPurgeCmd); err != errPurgeNotConfirmed {
		t.Errorf("expected errPurgeNotConfirmed, got %v", err)
	}

	_, stderr, err := run(t, server, false, NewPurgeCmd, "--yes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "Purged") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
