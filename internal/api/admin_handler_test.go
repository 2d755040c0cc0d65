package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilmoth/arcana-api/internal/domain"
)

type stubProcessor struct {
	processed int
	err       error
}

func (s *stubProcessor) ProcessBatch(ctx context.Context) (int, error) {
	return s.processed, s.err
}

func TestGetStats(t *testing.T) {
	handler := NewAdminHandler(&stubReadingService{
		stats: map[domain.ReadingStatus]int{
			domain.ReadingStatusPending:   3,
			domain.ReadingStatusCompleted: 12,
		},
	}, &stubProcessor{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Pending)
	assert.Equal(t, 0, resp.Processing)
	assert.Equal(t, 12, resp.Completed)
}

func TestGetStats_Error(t *testing.T) {
	handler := NewAdminHandler(&stubReadingService{statsErr: errors.New("database down")},
		&stubProcessor{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerBatch(t *testing.T) {
	handler := NewAdminHandler(&stubReadingService{}, &stubProcessor{processed: 4}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/process", nil)
	rec := httptest.NewRecorder()
	handler.TriggerBatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Processed)
}

func TestTriggerBatch_Error(t *testing.T) {
	handler := NewAdminHandler(&stubReadingService{},
		&stubProcessor{err: errors.New("claim failed")}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/process", nil)
	rec := httptest.NewRecorder()
	handler.TriggerBatch(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
