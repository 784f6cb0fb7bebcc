package extractors

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
	"github.com/opiniondw/opinions-etl/pkg/models"
)

// Column order of survey exports when the file carries no header row.
var csvColumns = []string{
	"ProductId", "ProductName", "Category",
	"CustomerId", "CustomerName", "Country", "City",
	"SurveyDate", "Rating", "Sentiment", "Comment",
}

// Date layouts accepted in survey exports, most common first.
var csvDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

type csvExtractor struct {
	cfg    config.CSVSourceConfig
	logger *zap.Logger
}

// NewCSVExtractor creates an extractor that reads internal survey exports
// from a local CSV file.
func NewCSVExtractor(cfg config.CSVSourceConfig, logger *zap.Logger) Extractor {
	return &csvExtractor{
		cfg:    cfg,
		logger: logger.Named("csv-extractor"),
	}
}

var _ Extractor = (*csvExtractor)(nil)

func (e *csvExtractor) Name() string {
	return "csv"
}

func (e *csvExtractor) Extract(ctx context.Context) ([]models.Opinion, error) {
	e.logger.Info("Starting CSV extraction", zap.String("file_path", e.cfg.FilePath))
	start := time.Now()

	file, err := os.Open(e.cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file %s: %w", e.cfg.FilePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReaderSize(file, 64*1024))
	reader.Comma = rune(e.cfg.Delimiter[0])
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	columns := csvColumns
	if e.cfg.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		columns = append([]string(nil), header...)
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[strings.TrimSpace(name)] = i
	}

	// Pre-size from the file length, assuming roughly 100 bytes per row.
	var opinions []models.Opinion
	if info, err := file.Stat(); err == nil {
		opinions = make([]models.Opinion, 0, info.Size()/100+1)
	}

	row := csvRow{index: index}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		row.fields = record
		opinions = append(opinions, e.mapRow(row))

		if len(opinions)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	e.logger.Info("CSV extraction complete",
		zap.Int("records", len(opinions)),
		zap.Duration("elapsed", time.Since(start)))
	return opinions, nil
}

// mapRow converts one survey row to the common model. Unparseable numeric
// and date fields map to zero values so the validation phase can reject or
// normalize them with the rest of the stream.
func (e *csvExtractor) mapRow(row csvRow) models.Opinion {
	return models.Opinion{
		SourceProductID: row.intField("ProductId"),
		ProductName:     row.field("ProductName"),
		ProductCategory: row.field("Category"),

		SourceCustomerID: row.intField("CustomerId"),
		CustomerName:     row.field("CustomerName"),
		Country:          row.field("Country"),
		City:             row.field("City"),
		Segment:          "Survey",

		OpinionDate: row.dateField("SurveyDate"),
		ChannelName: "Internal Survey",
		ChannelType: "CSV",

		Rating:         row.intPtrField("Rating"),
		SentimentScore: row.intField("Sentiment"),
		CommentText:    row.field("Comment"),
	}
}

type csvRow struct {
	index  map[string]int
	fields []string
}

func (r csvRow) field(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

func (r csvRow) intField(name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.field(name)))
	if err != nil {
		return 0
	}
	return v
}

func (r csvRow) intPtrField(name string) *int {
	s := strings.TrimSpace(r.field(name))
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func (r csvRow) dateField(name string) time.Time {
	s := strings.TrimSpace(r.field(name))
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
