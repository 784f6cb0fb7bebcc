package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

// FactRepository provides data access for the opinion fact table: the
// write side of the full refresh (truncate and bulk insert) and the read
// side behind search and export.
type FactRepository interface {
	// Truncate empties the fact table and returns the number of rows removed.
	Truncate(ctx context.Context) (int64, error)

	// BulkInsert streams the given fact rows into the table. Rows must
	// already carry valid surrogate keys for all four dimensions.
	BulkInsert(ctx context.Context, facts []models.FactOpinion) (int64, error)

	// Count returns the number of fact rows currently loaded.
	Count(ctx context.Context) (int64, error)

	// Search returns denormalized fact rows matching the filter along with
	// the total match count.
	Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error)

	// Export returns denormalized fact rows matching the filter without
	// pagination bookkeeping, for CSV export.
	Export(ctx context.Context, filter models.OpinionFilter) ([]models.OpinionRow, error)
}

type factRepository struct {
	pool *pgxpool.Pool
}

// NewFactRepository creates a new FactRepository.
func NewFactRepository(pool *pgxpool.Pool) FactRepository {
	return &factRepository{pool: pool}
}

var _ FactRepository = (*factRepository)(nil)

func (r *factRepository) Truncate(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fact_opinions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fact rows: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `TRUNCATE TABLE fact_opinions`); err != nil {
		return 0, fmt.Errorf("failed to truncate fact table: %w", err)
	}
	return count, nil
}

func (r *factRepository) BulkInsert(ctx context.Context, facts []models.FactOpinion) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	columns := []string{"product_key", "customer_key", "date_key", "channel_key", "rating", "sentiment_score", "opinion_count"}
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{
			f.ProductKey, f.CustomerKey, f.DateKey, f.ChannelKey,
			f.Rating, f.SentimentScore, f.OpinionCount,
		})
	}

	inserted, err := r.pool.CopyFrom(ctx, pgx.Identifier{"fact_opinions"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return inserted, fmt.Errorf("failed to bulk insert fact rows: %w", err)
	}
	return inserted, nil
}

func (r *factRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fact_opinions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fact rows: %w", err)
	}
	return count, nil
}

const opinionSelect = `
	SELECT f.product_key, f.customer_key, f.date_key, f.channel_key,
	       f.rating, f.sentiment_score, f.opinion_count,
	       p.product_name, p.category, p.brand,
	       c.customer_name, c.country, c.city, c.segment, c.age_range,
	       to_char(d.full_date, 'YYYY-MM-DD'), d.year, d.month_number, d.month_name, d.quarter,
	       ch.channel_name, ch.channel_type
	FROM fact_opinions f
	JOIN dim_product p ON p.product_key = f.product_key
	JOIN dim_customer c ON c.customer_key = f.customer_key
	JOIN dim_date d ON d.date_key = f.date_key
	JOIN dim_channel ch ON ch.channel_key = f.channel_key`

const opinionCountSelect = `
	SELECT COUNT(*)
	FROM fact_opinions f
	JOIN dim_product p ON p.product_key = f.product_key
	JOIN dim_customer c ON c.customer_key = f.customer_key
	JOIN dim_date d ON d.date_key = f.date_key
	JOIN dim_channel ch ON ch.channel_key = f.channel_key`

// Sortable columns exposed to clients. Anything else falls back to date_key
// so client input never reaches the ORDER BY clause verbatim.
var orderColumns = map[string]string{
	"date_key":        "f.date_key",
	"rating":          "f.rating",
	"sentiment_score": "f.sentiment_score",
	"product_name":    "p.product_name",
	"customer_name":   "c.customer_name",
	"country":         "c.country",
	"channel_name":    "ch.channel_name",
}

func buildOpinionFilter(filter models.OpinionFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(condition string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(condition, len(args)))
	}

	if filter.ProductName != "" {
		add("p.product_name ILIKE $%d", "%"+filter.ProductName+"%")
	}
	if filter.ProductCategory != "" {
		add("p.category = $%d", filter.ProductCategory)
	}
	if filter.ProductBrand != "" {
		add("p.brand = $%d", filter.ProductBrand)
	}
	if filter.CustomerName != "" {
		add("c.customer_name ILIKE $%d", "%"+filter.CustomerName+"%")
	}
	if filter.Country != "" {
		add("c.country = $%d", filter.Country)
	}
	if filter.City != "" {
		add("c.city = $%d", filter.City)
	}
	if filter.Segment != "" {
		add("c.segment = $%d", filter.Segment)
	}
	if filter.ChannelName != "" {
		add("ch.channel_name = $%d", filter.ChannelName)
	}
	if filter.ChannelType != "" {
		add("ch.channel_type = $%d", filter.ChannelType)
	}
	if filter.DateFrom != nil {
		add("f.date_key >= $%d", models.DateKey(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		add("f.date_key <= $%d", models.DateKey(*filter.DateTo))
	}
	if filter.Year != 0 {
		add("d.year = $%d", filter.Year)
	}
	if filter.Quarter != 0 {
		add("d.quarter = $%d", filter.Quarter)
	}
	if filter.RatingMin != nil {
		add("f.rating >= $%d", *filter.RatingMin)
	}
	if filter.RatingMax != nil {
		add("f.rating <= $%d", *filter.RatingMax)
	}
	if filter.SentimentMin != nil {
		add("f.sentiment_score >= $%d", *filter.SentimentMin)
	}
	if filter.SentimentMax != nil {
		add("f.sentiment_score <= $%d", *filter.SentimentMax)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrderClause(filter models.OpinionFilter) string {
	column, ok := orderColumns[strings.ToLower(filter.OrderBy)]
	if !ok {
		column = "f.date_key"
	}
	direction := "DESC"
	if strings.EqualFold(filter.OrderDirection, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction)
}

func (r *factRepository) Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error) {
	filter.Normalize()

	where, args := buildOpinionFilter(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, opinionCountSelect+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count search matches: %w", err)
	}

	query := opinionSelect + where + buildOrderClause(filter)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	} else {
		args = append(args, filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (filter.Page-1)*filter.PageSize)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	opinions, err := r.queryOpinionRows(ctx, query, args)
	if err != nil {
		return nil, err
	}

	return &models.SearchResult{
		Opinions:   opinions,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

func (r *factRepository) Export(ctx context.Context, filter models.OpinionFilter) ([]models.OpinionRow, error) {
	where, args := buildOpinionFilter(filter)

	query := opinionSelect + where + buildOrderClause(filter)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryOpinionRows(ctx, query, args)
}

func (r *factRepository) queryOpinionRows(ctx context.Context, query string, args []any) ([]models.OpinionRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opinions: %w", err)
	}
	defer rows.Close()

	var opinions []models.OpinionRow
	for rows.Next() {
		var o models.OpinionRow
		if err := rows.Scan(
			&o.ProductKey, &o.CustomerKey, &o.DateKey, &o.ChannelKey,
			&o.Rating, &o.SentimentScore, &o.OpinionCount,
			&o.ProductName, &o.ProductCategory, &o.ProductBrand,
			&o.CustomerName, &o.Country, &o.City, &o.Segment, &o.AgeRange,
			&o.FullDate, &o.Year, &o.MonthNumber, &o.MonthName, &o.Quarter,
			&o.ChannelName, &o.ChannelType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan opinion row: %w", err)
		}
		opinions = append(opinions, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read opinion rows: %w", err)
	}
	return opinions, nil
}
