// Package api contains the HTTP handlers for the reading service.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/api/shared"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/service"
)

// SubmitReadingRequest is the request body for submitting a reading.
type SubmitReadingRequest struct {
	Question string `json:"question" validate:"required"`
	Type     string `json:"type" validate:"omitempty,oneof=general love career destiny"`
}

// SubmitReadingResponse is returned on successful submission.
type SubmitReadingResponse struct {
	JobID                uuid.UUID `json:"job_id"`
	Status               string    `json:"status"`
	EstimatedWaitSeconds int       `json:"estimated_wait_seconds"`
}

// ReadingResponse is the API representation of a reading job.
type ReadingResponse struct {
	ID           uuid.UUID             `json:"id"`
	Question     string                `json:"question"`
	Type         string                `json:"type"`
	Status       string                `json:"status"`
	Answer       *domain.ReadingAnswer `json:"answer,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ReadingListResponse wraps a page of readings.
type ReadingListResponse struct {
	Readings []ReadingResponse `json:"readings"`
}

// BalanceResponse is the API representation of a credit balance.
type BalanceResponse struct {
	FreeAllowance int `json:"free_allowance"`
	Purchased     int `json:"purchased"`
	Spendable     int `json:"spendable"`
}

// ReadingHandler handles reading-related HTTP requests.
type ReadingHandler struct {
	readingService service.ReadingService
	validator      *validator.Validate
	logger         *slog.Logger
}

// NewReadingHandler creates a new ReadingHandler.
func NewReadingHandler(readingService service.ReadingService, logger *slog.Logger) *ReadingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingHandler{
		readingService: readingService,
		validator:      validator.New(),
		logger:         logger.With("component", "reading_handler"),
	}
}

// SubmitReading handles POST /api/readings. Accepted submissions return
// 202 with the job ID and a backlog-based wait estimate.
func (h *ReadingHandler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SubmitReadingRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request parameters")
		return
	}

	readingType := domain.ReadingType(req.Type)
	if req.Type == "" {
		readingType = domain.ReadingTypeGeneral
	}

	result, err := h.readingService.Submit(r.Context(), userID, req.Question, readingType)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuestionLength):
			shared.RespondWithError(w, r, http.StatusBadRequest, "Question must be between 10 and 180 characters")
		case errors.Is(err, domain.ErrInvalidReadingType):
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid reading type")
		case errors.Is(err, domain.ErrContentRejected):
			shared.RespondWithError(w, r, http.StatusBadRequest, "Question cannot be accepted for a reading")
		case errors.Is(err, domain.ErrInsufficientCredit):
			shared.RespondWithError(w, r, http.StatusPaymentRequired, "Insufficient credits")
		default:
			h.logger.Error("failed to submit reading",
				"user_id", userID,
				"error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to submit reading")
		}
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitReadingResponse{
		JobID:                result.Job.ID,
		Status:               string(result.Job.Status),
		EstimatedWaitSeconds: int(result.EstimatedWait / time.Second),
	})
}

// GetReading handles GET /api/readings/{id}.
func (h *ReadingHandler) GetReading(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid reading ID")
		return
	}

	job, err := h.readingService.GetReading(r.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrReadingNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Reading not found")
			return
		}
		h.logger.Error("failed to get reading",
			"job_id", jobID,
			"error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to retrieve reading")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, readingToResponse(job))
}

// ListReadings handles GET /api/readings.
func (h *ReadingHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	jobs, err := h.readingService.ListReadings(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list readings",
			"user_id", userID,
			"error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list readings")
		return
	}

	out := ReadingListResponse{Readings: make([]ReadingResponse, 0, len(jobs))}
	for _, job := range jobs {
		out.Readings = append(out.Readings, readingToResponse(job))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// GetBalance handles GET /api/credits.
func (h *ReadingHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	balance, err := h.readingService.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get balance",
			"user_id", userID,
			"error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to retrieve balance")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{
		FreeAllowance: balance.FreeAllowance,
		Purchased:     balance.Purchased,
		Spendable:     balance.Spendable(),
	})
}

func readingToResponse(job *domain.ReadingJob) ReadingResponse {
	return ReadingResponse{
		ID:           job.ID,
		Question:     job.Question,
		Type:         string(job.Type),
		Status:       string(job.Status),
		Answer:       job.Answer,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.ProcessingCompletedAt,
	}
}