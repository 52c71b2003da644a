package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(h.logger),
	)

	// Buckets
	mux.Handle("POST /api/v1/buckets/{bucket}/ingest", chain(http.HandlerFunc(h.IngestBucket)))

	// Tables
	mux.Handle("GET /api/v1/tables", chain(http.HandlerFunc(h.ListTables)))
	mux.Handle("POST /api/v1/tables/ingest", chain(http.HandlerFunc(h.AddTable)))
	mux.Handle("POST /api/v1/tables/profile", chain(http.HandlerFunc(h.ProfileTable)))
	mux.Handle("GET /api/v1/tables/preview", chain(http.HandlerFunc(h.PreviewTable)))

	// Jobs
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJobStatus)))

	mux.Handle("POST /api/v1/purge", chain(http.HandlerFunc(h.Purge)))
}
