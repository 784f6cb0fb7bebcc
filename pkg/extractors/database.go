package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQL Server driver for the web reviews source database.
	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
	"github.com/opiniondw/opinions-etl/pkg/models"
)

type databaseExtractor struct {
	cfg    config.DatabaseSourceConfig
	logger *zap.Logger
}

// NewDatabaseExtractor creates an extractor that reads web reviews from the
// upstream SQL Server database with a single configured query.
func NewDatabaseExtractor(cfg config.DatabaseSourceConfig, logger *zap.Logger) Extractor {
	return &databaseExtractor{
		cfg:    cfg,
		logger: logger.Named("database-extractor"),
	}
}

var _ Extractor = (*databaseExtractor)(nil)

func (e *databaseExtractor) Name() string {
	return "database"
}

func (e *databaseExtractor) Extract(ctx context.Context) ([]models.Opinion, error) {
	e.logger.Info("Starting database extraction")
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	db, err := sql.Open("sqlserver", e.cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, e.cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to query source database: %w", err)
	}
	defer rows.Close()

	var opinions []models.Opinion
	for rows.Next() {
		var (
			o        models.Opinion
			category sql.NullString
			brand    sql.NullString
			country  sql.NullString
			city     sql.NullString
			segment  sql.NullString
			ageRange sql.NullString
			rating   sql.NullInt64
			comment  sql.NullString
		)
		if err := rows.Scan(
			&o.SourceProductID, &o.ProductName, &category, &brand,
			&o.SourceCustomerID, &o.CustomerName, &country, &city, &segment, &ageRange,
			&o.OpinionDate, &rating, &o.SentimentScore, &comment,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}

		o.ProductCategory = category.String
		o.ProductBrand = brand.String
		o.Country = country.String
		o.City = city.String
		o.Segment = segment.String
		o.AgeRange = ageRange.String
		o.CommentText = comment.String
		if rating.Valid {
			r := int(rating.Int64)
			o.Rating = &r
		}
		o.ChannelName = "Web Review"
		o.ChannelType = "Database"

		opinions = append(opinions, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review rows: %w", err)
	}

	e.logger.Info("Database extraction complete",
		zap.Int("records", len(opinions)),
		zap.Duration("elapsed", time.Since(start)))
	return opinions, nil
}
