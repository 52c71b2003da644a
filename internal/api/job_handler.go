package api

import (
	"net/http"

	"github.com/shaiso/tabledisco/internal/telemetry"
)

// GetJobStatus возвращает дерево статусов отправки.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := telemetry.WithRootID(telemetry.FromContext(r.Context()), id)

	node, err := h.pipeline.Status(r.Context(), id)
	if HandleError(w, logger, err) {
		return
	}
	Success(w, node)
}
