package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/veilmoth/arcana-api/internal/api/shared"
	"github.com/veilmoth/arcana-api/internal/service"
)

// BatchProcessor runs one batch of pending jobs synchronously.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// StatsResponse reports job counts per status.
type StatsResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// ProcessBatchResponse reports the outcome of a manually triggered batch.
type ProcessBatchResponse struct {
	Processed int `json:"processed"`
}

// AdminHandler handles operational endpoints. Routes using it must sit
// behind authentication; these endpoints expose no per-user data but do
// drive processing.
type AdminHandler struct {
	readingService service.ReadingService
	processor      BatchProcessor
	logger         *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(readingService service.ReadingService, processor BatchProcessor, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		readingService: readingService,
		processor:      processor,
		logger:         logger.With("component", "admin_handler"),
	}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.readingService.GetProcessingStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get processing stats", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		Pending:    counts["pending"],
		Processing: counts["processing"],
		Completed:  counts["completed"],
		Failed:     counts["failed"],
	})
}

// TriggerBatch handles POST /api/admin/process. It runs one batch in
// the request's context and reports how many jobs were handled.
func (h *AdminHandler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	processed, err := h.processor.ProcessBatch(r.Context())
	if err != nil {
		h.logger.Error("manual batch failed",
			"processed", processed,
			"error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Batch processing failed")
		return
	}

	h.logger.Info("manual batch completed", "processed", processed)
	shared.RespondWithJSON(w, r, http.StatusOK, ProcessBatchResponse{Processed: processed})
}
