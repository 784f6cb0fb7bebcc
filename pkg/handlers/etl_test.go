package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/apperrors"
	"github.com/opiniondw/opinions-etl/pkg/models"
)

type mockEtlService struct {
	result  *models.EtlResult
	err     error
	running bool
}

func (m *mockEtlService) Run(ctx context.Context) (*models.EtlResult, error) {
	return m.result, m.err
}

func (m *mockEtlService) IsRunning() bool {
	return m.running
}

func newEtlRequest(t *testing.T, handler *EtlHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestEtlHandler_Run(t *testing.T) {
	svc := &mockEtlService{
		result: &models.EtlResult{
			RunID:       uuid.New(),
			Success:     true,
			Extracted:   3,
			Transformed: 2,
			Rejected:    1,
			Loaded:      2,
		},
	}
	rec := newEtlRequest(t, NewEtlHandler(svc, zap.NewNop()), http.MethodPost, "/api/etl/run")

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.EtlResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Extracted)
	assert.Equal(t, 2, result.Loaded)
}

func TestEtlHandler_RunConflict(t *testing.T) {
	svc := &mockEtlService{err: apperrors.ErrRunInProgress}
	rec := newEtlRequest(t, NewEtlHandler(svc, zap.NewNop()), http.MethodPost, "/api/etl/run")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "run_in_progress")
}

func TestEtlHandler_RunFailure(t *testing.T) {
	svc := &mockEtlService{
		result: &models.EtlResult{Success: false, ErrorMessage: "store unavailable"},
		err:    errors.New("store unavailable"),
	}
	rec := newEtlRequest(t, NewEtlHandler(svc, zap.NewNop()), http.MethodPost, "/api/etl/run")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var result models.EtlResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "store unavailable", result.ErrorMessage)
}

func TestEtlHandler_RunRejectsGet(t *testing.T) {
	rec := newEtlRequest(t, NewEtlHandler(&mockEtlService{}, zap.NewNop()), http.MethodGet, "/api/etl/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEtlHandler_Status(t *testing.T) {
	rec := newEtlRequest(t, NewEtlHandler(&mockEtlService{running: true}, zap.NewNop()), http.MethodGet, "/api/etl/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running": true}`, rec.Body.String())
}
