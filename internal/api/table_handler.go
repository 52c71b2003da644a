package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shaiso/tabledisco/internal/telemetry"
)

// IngestBucket принимает все новые таблицы бакета.
// POST /api/v1/buckets/{bucket}/ingest
func (h *Handler) IngestBucket(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if bucket == "" {
		BadRequest(w, "bucket is required")
		return
	}

	sub, err := h.pipeline.IngestBucket(r.Context(), bucket)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}
	Accepted(w, sub)
}

// AddTable принимает одну таблицу.
// POST /api/v1/tables/ingest
func (h *Handler) AddTable(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}

	sub, err := h.pipeline.AddTable(r.Context(), req.Bucket, req.TablePath)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}
	Accepted(w, sub)
}

// ProfileTable профилирует принятую таблицу.
// POST /api/v1/tables/profile
func (h *Handler) ProfileTable(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}

	sub, err := h.pipeline.ProfileTable(r.Context(), req.Bucket, req.TablePath)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}
	Accepted(w, sub)
}

func decodeTableRequest(w http.ResponseWriter, r *http.Request) (TableRequest, bool) {
	var req TableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return req, false
	}
	if msg := req.Validate(); msg != "" {
		BadRequest(w, msg)
		return req, false
	}
	return req, true
}

// ListTables возвращает принятые таблицы.
// GET /api/v1/tables?bucket=...
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	units, err := h.pipeline.ListTables(r.Context(), r.URL.Query().Get("bucket"))
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	result := make([]UnitResponse, len(units))
	for i, u := range units {
		result[i] = UnitFromDomain(u)
	}
	List(w, result, len(result))
}

// PreviewTable отдаёт первые строки таблицы как CSV.
// GET /api/v1/tables/preview?bucket=...&table_path=...&rows=...
func (h *Handler) PreviewTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := TableRequest{Bucket: q.Get("bucket"), TablePath: q.Get("table_path")}
	if msg := req.Validate(); msg != "" {
		BadRequest(w, msg)
		return
	}

	rows := 0
	if s := q.Get("rows"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			BadRequest(w, "invalid rows")
			return
		}
		rows = n
	}

	records, err := h.pipeline.PreviewTable(r.Context(), req.Bucket, req.TablePath, rows)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	cw.WriteAll(records)
}

// Purge удаляет все деревья и каталог.
// POST /api/v1/purge
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, telemetry.FromContext(r.Context()), h.pipeline.Purge(r.Context())) {
		return
	}
	Success(w, PurgeResponse{Purged: true})
}
