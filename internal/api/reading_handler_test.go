package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilmoth/arcana-api/internal/api/shared"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubReadingService returns canned responses per method.
type stubReadingService struct {
	submitResult *service.SubmitResult
	submitErr    error
	getJob       *domain.ReadingJob
	getErr       error
	listJobs     []*domain.ReadingJob
	balance      *domain.CreditBalance
	stats        map[domain.ReadingStatus]int
	statsErr     error
}

func (s *stubReadingService) Submit(ctx context.Context, userID uuid.UUID, question string, readingType domain.ReadingType) (*service.SubmitResult, error) {
	return s.submitResult, s.submitErr
}

func (s *stubReadingService) GetReading(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReadingJob, error) {
	return s.getJob, s.getErr
}

func (s *stubReadingService) ListReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error) {
	return s.listJobs, nil
}

func (s *stubReadingService) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	return s.balance, nil
}

func (s *stubReadingService) GetProcessingStats(ctx context.Context) (map[domain.ReadingStatus]int, error) {
	return s.stats, s.statsErr
}

func authenticatedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(shared.WithUserID(req.Context(), uuid.New()))
}

func TestSubmitReading_Accepted(t *testing.T) {
	job, err := domain.NewReadingJob(uuid.New(), "What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)

	handler := NewReadingHandler(&stubReadingService{
		submitResult: &service.SubmitResult{Job: job, EstimatedWait: 40 * time.Second},
	}, testLogger())

	req := authenticatedRequest(t, http.MethodPost, "/api/readings", SubmitReadingRequest{
		Question: "What should I focus on this month?",
		Type:     "general",
	})
	rec := httptest.NewRecorder()
	handler.SubmitReading(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitReadingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 40, resp.EstimatedWaitSeconds)
}

func TestSubmitReading_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		submitErr  error
		wantStatus int
	}{
		{"invalid length", domain.ErrInvalidQuestionLength, http.StatusBadRequest},
		{"content rejected", fmt.Errorf("%w: blocked", domain.ErrContentRejected), http.StatusBadRequest},
		{"insufficient credit", domain.ErrInsufficientCredit, http.StatusPaymentRequired},
		{"internal error", fmt.Errorf("database down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewReadingHandler(&stubReadingService{submitErr: tt.submitErr}, testLogger())

			req := authenticatedRequest(t, http.MethodPost, "/api/readings", SubmitReadingRequest{
				Question: "What should I focus on this month?",
			})
			rec := httptest.NewRecorder()
			handler.SubmitReading(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSubmitReading_BadRequestBody(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/readings", bytes.NewReader([]byte("{not json")))
	req = req.WithContext(shared.WithUserID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	handler.SubmitReading(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitReading_Unauthenticated(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/readings", nil)
	rec := httptest.NewRecorder()
	handler.SubmitReading(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetReading(t *testing.T) {
	job, err := domain.NewReadingJob(uuid.New(), "What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)

	handler := NewReadingHandler(&stubReadingService{getJob: job}, testLogger())

	req := authenticatedRequest(t, http.MethodGet, "/api/readings/"+job.ID.String(), nil)
	req = withURLParam(req, "id", job.ID.String())
	rec := httptest.NewRecorder()
	handler.GetReading(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestGetReading_NotFound(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{getErr: service.ErrReadingNotFound}, testLogger())

	id := uuid.New().String()
	req := authenticatedRequest(t, http.MethodGet, "/api/readings/"+id, nil)
	req = withURLParam(req, "id", id)
	rec := httptest.NewRecorder()
	handler.GetReading(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReading_InvalidID(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{}, testLogger())

	req := authenticatedRequest(t, http.MethodGet, "/api/readings/not-a-uuid", nil)
	req = withURLParam(req, "id", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.GetReading(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReadings(t *testing.T) {
	job, err := domain.NewReadingJob(uuid.New(), "What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)

	handler := NewReadingHandler(&stubReadingService{listJobs: []*domain.ReadingJob{job}}, testLogger())

	req := authenticatedRequest(t, http.MethodGet, "/api/readings?limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ListReadings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadingListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Readings, 1)
	assert.Equal(t, job.ID, resp.Readings[0].ID)
}

func TestListReadings_InvalidLimit(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{}, testLogger())

	req := authenticatedRequest(t, http.MethodGet, "/api/readings?limit=abc", nil)
	rec := httptest.NewRecorder()
	handler.ListReadings(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalance(t *testing.T) {
	handler := NewReadingHandler(&stubReadingService{
		balance: &domain.CreditBalance{FreeAllowance: 2, Purchased: 3},
	}, testLogger())

	req := authenticatedRequest(t, http.MethodGet, "/api/credits", nil)
	rec := httptest.NewRecorder()
	handler.GetBalance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.FreeAllowance)
	assert.Equal(t, 3, resp.Purchased)
	assert.Equal(t, 5, resp.Spendable)
}

// withURLParam injects a chi route parameter into the request context.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
