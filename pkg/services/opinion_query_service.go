package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/repositories"
)

// OpinionQueryService is the read side of the warehouse: paginated search
// over the loaded facts and CSV export (the inverse of the ingest path).
type OpinionQueryService interface {
	// Search returns one page of denormalized opinions matching the filter.
	Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error)

	// ExportCSV streams matching opinions to w as CSV with a header row,
	// returning the number of data rows written.
	ExportCSV(ctx context.Context, filter models.OpinionFilter, w io.Writer) (int, error)
}

type opinionQueryService struct {
	facts  repositories.FactRepository
	logger *zap.Logger
}

// NewOpinionQueryService creates a new OpinionQueryService.
func NewOpinionQueryService(facts repositories.FactRepository, logger *zap.Logger) OpinionQueryService {
	return &opinionQueryService{
		facts:  facts,
		logger: logger.Named("opinion-query"),
	}
}

var _ OpinionQueryService = (*opinionQueryService)(nil)

func (s *opinionQueryService) Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error) {
	result, err := s.facts.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search opinions: %w", err)
	}
	return result, nil
}

var exportHeader = []string{
	"full_date", "product_name", "category", "brand",
	"customer_name", "country", "city", "segment", "age_range",
	"channel_name", "channel_type",
	"rating", "sentiment_score", "opinion_count",
}

func (s *opinionQueryService) ExportCSV(ctx context.Context, filter models.OpinionFilter, w io.Writer) (int, error) {
	rows, err := s.facts.Export(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to export opinions: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		rating := ""
		if row.Rating != nil {
			rating = strconv.Itoa(*row.Rating)
		}
		record := []string{
			row.FullDate, row.ProductName, row.ProductCategory, row.ProductBrand,
			row.CustomerName, row.Country, row.City, row.Segment, row.AgeRange,
			row.ChannelName, row.ChannelType,
			rating, strconv.Itoa(row.SentimentScore), strconv.Itoa(row.OpinionCount),
		}
		if err := writer.Write(record); err != nil {
			return i, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return len(rows), fmt.Errorf("failed to flush CSV export: %w", err)
	}

	s.logger.Info("Opinion export complete", zap.Int("rows", len(rows)))
	return len(rows), nil
}
