package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/services"
)

// OpinionsHandler exposes the read side of the warehouse: paginated
// search over loaded opinions and CSV export.
type OpinionsHandler struct {
	queries services.OpinionQueryService
	logger  *zap.Logger
}

// NewOpinionsHandler creates a new OpinionsHandler.
func NewOpinionsHandler(queries services.OpinionQueryService, logger *zap.Logger) *OpinionsHandler {
	return &OpinionsHandler{queries: queries, logger: logger}
}

// RegisterRoutes registers the opinions handler's routes on the given mux.
func (h *OpinionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/opinions/search", h.Search)
	mux.HandleFunc("GET /api/opinions/export", h.Export)
}

// Search handles GET /api/opinions/search.
func (h *OpinionsHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOpinionFilter(r.URL.Query())
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	result, err := h.queries.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("Opinion search failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "search_failed", "failed to search opinions")
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Export handles GET /api/opinions/export, streaming matching rows as a
// CSV attachment.
func (h *OpinionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOpinionFilter(r.URL.Query())
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="opinions_%s.csv"`, time.Now().UTC().Format("20060102_150405")))

	if _, err := h.queries.ExportCSV(r.Context(), filter, w); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.Error("Opinion export failed", zap.Error(err))
	}
}

func parseOpinionFilter(q url.Values) (models.OpinionFilter, error) {
	filter := models.OpinionFilter{
		ProductName:     q.Get("product_name"),
		ProductCategory: q.Get("category"),
		ProductBrand:    q.Get("brand"),
		CustomerName:    q.Get("customer_name"),
		Country:         q.Get("country"),
		City:            q.Get("city"),
		Segment:         q.Get("segment"),
		ChannelName:     q.Get("channel_name"),
		ChannelType:     q.Get("channel_type"),
		OrderBy:         q.Get("order_by"),
		OrderDirection:  q.Get("order_direction"),
	}

	var err error
	if filter.Page, err = intParam(q, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intParam(q, "page_size"); err != nil {
		return filter, err
	}
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Year, err = intParam(q, "year"); err != nil {
		return filter, err
	}
	if filter.Quarter, err = intParam(q, "quarter"); err != nil {
		return filter, err
	}

	if filter.RatingMin, err = intPtrParam(q, "rating_min"); err != nil {
		return filter, err
	}
	if filter.RatingMax, err = intPtrParam(q, "rating_max"); err != nil {
		return filter, err
	}
	if filter.SentimentMin, err = intPtrParam(q, "sentiment_min"); err != nil {
		return filter, err
	}
	if filter.SentimentMax, err = intPtrParam(q, "sentiment_max"); err != nil {
		return filter, err
	}

	if filter.DateFrom, err = dateParam(q, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = dateParam(q, "date_to"); err != nil {
		return filter, err
	}

	return filter, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be an integer", name)
	}
	return v, nil
}

func intPtrParam(q url.Values, name string) (*int, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %s must be an integer", name)
	}
	return &v, nil
}

func dateParam(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %s must be a date (YYYY-MM-DD)", name)
	}
	return &t, nil
}
