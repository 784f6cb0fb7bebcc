package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

type mockQueryService struct {
	result     *models.SearchResult
	searchErr  error
	exported   string
	exportErr  error
	lastFilter models.OpinionFilter
}

func (m *mockQueryService) Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error) {
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.result, nil
}

func (m *mockQueryService) ExportCSV(ctx context.Context, filter models.OpinionFilter, w io.Writer) (int, error) {
	m.lastFilter = filter
	if m.exportErr != nil {
		return 0, m.exportErr
	}
	_, err := w.Write([]byte(m.exported))
	return 1, err
}

func newOpinionsRequest(t *testing.T, svc *mockQueryService, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewOpinionsHandler(svc, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestOpinionsHandler_Search(t *testing.T) {
	svc := &mockQueryService{
		result: &models.SearchResult{
			Opinions:   []models.OpinionRow{{ProductName: "Laptop Pro X1", SentimentScore: 1, OpinionCount: 1}},
			TotalCount: 1,
			Page:       1,
			PageSize:   50,
		},
	}

	rec := newOpinionsRequest(t, svc, "/api/opinions/search?product_name=Laptop&country=Spain&page=2&page_size=25&sentiment_min=0")

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.TotalCount)

	assert.Equal(t, "Laptop", svc.lastFilter.ProductName)
	assert.Equal(t, "Spain", svc.lastFilter.Country)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 25, svc.lastFilter.PageSize)
	require.NotNil(t, svc.lastFilter.SentimentMin)
	assert.Equal(t, 0, *svc.lastFilter.SentimentMin)
}

func TestOpinionsHandler_SearchDateRange(t *testing.T) {
	svc := &mockQueryService{result: &models.SearchResult{}}

	rec := newOpinionsRequest(t, svc, "/api/opinions/search?date_from=2025-01-01&date_to=2025-06-30")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastFilter.DateFrom)
	require.NotNil(t, svc.lastFilter.DateTo)
	assert.Equal(t, 2025, svc.lastFilter.DateFrom.Year())
}

func TestOpinionsHandler_SearchBadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric page", "/api/opinions/search?page=abc"},
		{"non-numeric rating", "/api/opinions/search?rating_min=high"},
		{"malformed date", "/api/opinions/search?date_from=01-01-2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newOpinionsRequest(t, &mockQueryService{}, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid_filter")
		})
	}
}

func TestOpinionsHandler_SearchFailure(t *testing.T) {
	svc := &mockQueryService{searchErr: errors.New("store unavailable")}
	rec := newOpinionsRequest(t, svc, "/api/opinions/search")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_failed")
}

func TestOpinionsHandler_Export(t *testing.T) {
	svc := &mockQueryService{exported: "full_date,product_name\n2025-03-15,Laptop Pro X1\n"}

	rec := newOpinionsRequest(t, svc, "/api/opinions/export?limit=100")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "Laptop Pro X1")
	assert.Equal(t, 100, svc.lastFilter.Limit)
}
