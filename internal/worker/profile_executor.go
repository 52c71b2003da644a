package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/domain"
)

const defaultProfilerTimeout = 5 * time.Minute

// ProfileRequest — тело запроса к профайлеру.
type ProfileRequest struct {
	Stage  domain.Stage `json:"stage"`
	Bucket string       `json:"bucket"`
	Path   string       `json:"path,omitempty"`
}

// ProfileResponse — ответ профайлера. Tables: путь → колонка → узел.
type ProfileResponse struct {
	Tables map[string]map[string]string `json:"tables"`
}

// ProfileExecutor — executor стадий profile-unit и profile-all.
//
// Отправляет POST {stage, bucket, path} на URL профайлера. Узлы из ответа
// дописываются в каталог. Без URL стадия завершается успешно с skipped=true.
//
// Outputs:
//   - status_code (int)
//   - tables (int): сколько таблиц профайлер вернул
//   - nodes_reported (int)
type ProfileExecutor struct {
	URL     string
	Client  *http.Client
	Catalog catalog.Catalog
	Timeout time.Duration
}

// Execute вызывает профайлер.
func (e *ProfileExecutor) Execute(ctx context.Context, job *domain.Job) (*Result, error) {
	if e.URL == "" {
		return &Result{Outputs: map[string]any{"skipped": true}}, nil
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultProfilerTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(ProfileRequest{Stage: job.Stage, Bucket: job.Args.Bucket, Path: job.Args.Path})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrProfiler, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProfiler, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-ID", job.ID.String())

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfiler, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProfiler, err)
	}

	outputs := map[string]any{"status_code": resp.StatusCode}
	if resp.StatusCode >= 400 {
		return &Result{
			Outputs:   outputs,
			Error:     fmt.Sprintf("profiler HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}, nil
	}

	var parsed ProfileResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return &Result{Outputs: outputs, Error: "profiler returned malformed JSON: " + err.Error()}, nil
		}
	}

	reported := 0
	for path, nodes := range parsed.Tables {
		err := e.Catalog.AddNodes(ctx, path, nodes)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("add nodes: %w", err)
		}
		reported += len(nodes)
	}

	outputs["tables"] = len(parsed.Tables)
	outputs["nodes_reported"] = reported
	return &Result{Outputs: outputs}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
