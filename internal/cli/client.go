package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SubmissionResponse — ответ на отправку работы.
type SubmissionResponse struct {
	ID   string `json:"task_id"`
	Type string `json:"type"`
}

// UnitResponse — принятая таблица.
type UnitResponse struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Bucket      string            `json:"bucket"`
	ColumnCount int               `json:"column_count"`
	Nodes       map[string]string `json:"nodes"`
}

// StatusNode — узел дерева статусов.
type StatusNode struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Args     []string      `json:"args"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	ParentID string        `json:"parent_id,omitempty"`
	Children []*StatusNode `json:"children"`
}

// --- Request types ---

// TableRequest — таблица в бакете.
type TableRequest struct {
	Bucket    string `json:"bucket"`
	TablePath string `json:"table_path"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для tabledisco API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Submissions ---

// IngestBucket отправляет приёмку бакета. nil — принимать нечего.
func (c *Client) IngestBucket(bucket string) (*SubmissionResponse, error) {
	return c.submit("/api/v1/buckets/"+url.PathEscape(bucket)+"/ingest", nil)
}

// AddTable отправляет приёмку одной таблицы. nil — таблица уже принята.
func (c *Client) AddTable(bucket, path string) (*SubmissionResponse, error) {
	return c.submit("/api/v1/tables/ingest", TableRequest{Bucket: bucket, TablePath: path})
}

// ProfileTable отправляет профилирование таблицы.
func (c *Client) ProfileTable(bucket, path string) (*SubmissionResponse, error) {
	return c.submit("/api/v1/tables/profile", TableRequest{Bucket: bucket, TablePath: path})
}

func (c *Client) submit(path string, body any) (*SubmissionResponse, error) {
	var sub SubmissionResponse
	noContent, err := c.doData(http.MethodPost, path, body, &sub)
	if err != nil || noContent {
		return nil, err
	}
	return &sub, nil
}

// --- Tables ---

// ListTables возвращает принятые таблицы. Пустой bucket — все.
func (c *Client) ListTables(bucket string) ([]UnitResponse, error) {
	params := url.Values{}
	if bucket != "" {
		params.Set("bucket", bucket)
	}

	var units []UnitResponse
	err := c.list("/api/v1/tables", params, &units)
	return units, err
}

// PreviewTable возвращает первые строки таблицы как CSV.
func (c *Client) PreviewTable(bucket, path string, rows int) (string, error) {
	params := url.Values{}
	params.Set("bucket", bucket)
	params.Set("table_path", path)
	if rows > 0 {
		params.Set("rows", strconv.Itoa(rows))
	}

	resp, err := c.do(http.MethodGet, "/api/v1/tables/preview?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return "", err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}

// --- Jobs ---

// JobStatus возвращает дерево статусов отправки.
func (c *Client) JobStatus(id string) (*StatusNode, error) {
	var node StatusNode
	if _, err := c.doData(http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Purge удаляет все деревья и каталог.
func (c *Client) Purge() error {
	_, err := c.doData(http.MethodPost, "/api/v1/purge", nil, nil)
	return err
}

// --- HTTP helpers ---

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

// doData выполняет запрос и разбирает DataResponse. Первое значение — ответ 204.
func (c *Client) doData(method, path string, body any, result any) (bool, error) {
	resp, err := c.do(method, path, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return false, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return true, nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return false, json.Unmarshal(dr.Data, result)
	}
	return false, nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
