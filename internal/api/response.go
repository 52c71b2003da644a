package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/tabledisco/internal/catalog"
	"github.com/shaiso/tabledisco/internal/pipeline"
	"github.com/shaiso/tabledisco/internal/topology"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeNotIngested        ErrorCode = "NOT_INGESTED"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeTopologyCorrupt    ErrorCode = "TOPOLOGY_CORRUPT"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Accepted отправляет 202: работа отправлена в backend.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку pipeline в HTTP ответ.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	switch {
	// Отправлять нечего — не ошибка
	case errors.Is(err, topology.ErrNothingToDo),
		errors.Is(err, pipeline.ErrBucketEmpty),
		errors.Is(err, catalog.ErrAlreadyProcessed):
		NoContent(w)

	case errors.Is(err, pipeline.ErrBucketNotFound),
		errors.Is(err, pipeline.ErrTableNotFound),
		errors.Is(err, topology.ErrNotFound):
		NotFound(w, err.Error())

	case errors.Is(err, pipeline.ErrNotIngested):
		Error(w, http.StatusForbidden, ErrCodeNotIngested, err.Error())

	case errors.Is(err, topology.ErrInvalidPlan):
		BadRequest(w, err.Error())

	case errors.Is(err, topology.ErrBackendUnavailable):
		logger.Warn("execution backend unavailable", "error", err)
		Error(w, http.StatusServiceUnavailable, ErrCodeBackendUnavailable, "execution backend unavailable")

	case errors.Is(err, topology.ErrTopologyCorrupt):
		logger.Error("stored topology is corrupt", "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeTopologyCorrupt, err.Error())

	default:
		InternalError(w, logger, err)
	}
	return true
}
