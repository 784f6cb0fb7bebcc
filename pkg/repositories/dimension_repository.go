package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

// DimensionRepository provides data access for the four dimension tables.
// Upserts are set-based and keyed on each dimension's natural key; the
// Ensure methods are single-row get-or-create operations used by the
// incremental resolution strategy.
type DimensionRepository interface {
	// ListProducts returns every product dimension row.
	ListProducts(ctx context.Context) ([]models.DimProduct, error)

	// UpsertProducts inserts the given products; rows whose natural key
	// already exists have their non-key attributes refreshed.
	UpsertProducts(ctx context.Context, products []models.DimProduct) error

	// EnsureProduct returns the surrogate key for the product, creating the
	// row if its natural key is not present yet.
	EnsureProduct(ctx context.Context, product models.DimProduct) (int, error)

	// ListCustomers returns every customer dimension row.
	ListCustomers(ctx context.Context) ([]models.DimCustomer, error)

	// UpsertCustomers inserts the given customers, refreshing the non-key
	// attributes of existing natural keys.
	UpsertCustomers(ctx context.Context, customers []models.DimCustomer) error

	// EnsureCustomer returns the surrogate key for the customer, creating
	// the row if its natural key is not present yet.
	EnsureCustomer(ctx context.Context, customer models.DimCustomer) (int, error)

	// ListDateKeys returns the key of every date dimension row.
	ListDateKeys(ctx context.Context) ([]int, error)

	// UpsertDates inserts the given calendar dates, refreshing the calendar
	// attributes of existing keys.
	UpsertDates(ctx context.Context, dates []models.DimDate) error

	// EnsureDate inserts the calendar date row if missing. The surrogate key
	// is derived, not store-assigned, so nothing needs to be returned.
	EnsureDate(ctx context.Context, date models.DimDate) error

	// ListChannels returns every channel dimension row.
	ListChannels(ctx context.Context) ([]models.DimChannel, error)

	// UpsertChannels inserts the given channels, refreshing the type of
	// existing names.
	UpsertChannels(ctx context.Context, channels []models.DimChannel) error

	// EnsureChannel returns the surrogate key for the channel, creating the
	// row if its name is not present yet.
	EnsureChannel(ctx context.Context, channel models.DimChannel) (int, error)
}

type dimensionRepository struct {
	pool *pgxpool.Pool
}

// NewDimensionRepository creates a new DimensionRepository.
func NewDimensionRepository(pool *pgxpool.Pool) DimensionRepository {
	return &dimensionRepository{pool: pool}
}

var _ DimensionRepository = (*dimensionRepository)(nil)

func (r *dimensionRepository) ListProducts(ctx context.Context) ([]models.DimProduct, error) {
	query := `
		SELECT product_key, source_product_id, product_name, category, brand
		FROM dim_product`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.DimProduct
	for rows.Next() {
		var p models.DimProduct
		if err := rows.Scan(&p.ProductKey, &p.SourceProductID, &p.ProductName, &p.ProductCategory, &p.ProductBrand); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}

func (r *dimensionRepository) UpsertProducts(ctx context.Context, products []models.DimProduct) error {
	if len(products) == 0 {
		return nil
	}

	query := `
		INSERT INTO dim_product (source_product_id, product_name, category, brand)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_product_id, product_name)
		DO UPDATE SET category = EXCLUDED.category, brand = EXCLUDED.brand`

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(query, p.SourceProductID, p.ProductName, p.ProductCategory, p.ProductBrand)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range products {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}
	}
	return nil
}

func (r *dimensionRepository) EnsureProduct(ctx context.Context, product models.DimProduct) (int, error) {
	// The update arm refreshes non-key attributes and makes the statement
	// return the key even when the natural key already exists.
	query := `
		INSERT INTO dim_product (source_product_id, product_name, category, brand)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_product_id, product_name)
		DO UPDATE SET category = EXCLUDED.category, brand = EXCLUDED.brand
		RETURNING product_key`

	var key int
	err := r.pool.QueryRow(ctx, query,
		product.SourceProductID, product.ProductName, product.ProductCategory, product.ProductBrand,
	).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure product: %w", err)
	}
	return key, nil
}

func (r *dimensionRepository) ListCustomers(ctx context.Context) ([]models.DimCustomer, error) {
	query := `
		SELECT customer_key, source_customer_id, customer_name, country, city, segment, age_range
		FROM dim_customer`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []models.DimCustomer
	for rows.Next() {
		var c models.DimCustomer
		if err := rows.Scan(&c.CustomerKey, &c.SourceCustomerID, &c.CustomerName, &c.Country, &c.City, &c.Segment, &c.AgeRange); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read customer rows: %w", err)
	}
	return customers, nil
}

func (r *dimensionRepository) UpsertCustomers(ctx context.Context, customers []models.DimCustomer) error {
	if len(customers) == 0 {
		return nil
	}

	query := `
		INSERT INTO dim_customer (source_customer_id, customer_name, country, city, segment, age_range)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_customer_id, customer_name)
		DO UPDATE SET country = EXCLUDED.country, city = EXCLUDED.city,
			segment = EXCLUDED.segment, age_range = EXCLUDED.age_range`

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(query, c.SourceCustomerID, c.CustomerName, c.Country, c.City, c.Segment, c.AgeRange)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range customers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert customer: %w", err)
		}
	}
	return nil
}

func (r *dimensionRepository) EnsureCustomer(ctx context.Context, customer models.DimCustomer) (int, error) {
	query := `
		INSERT INTO dim_customer (source_customer_id, customer_name, country, city, segment, age_range)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_customer_id, customer_name)
		DO UPDATE SET country = EXCLUDED.country, city = EXCLUDED.city,
			segment = EXCLUDED.segment, age_range = EXCLUDED.age_range
		RETURNING customer_key`

	var key int
	err := r.pool.QueryRow(ctx, query,
		customer.SourceCustomerID, customer.CustomerName, customer.Country,
		customer.City, customer.Segment, customer.AgeRange,
	).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure customer: %w", err)
	}
	return key, nil
}

func (r *dimensionRepository) ListDateKeys(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT date_key FROM dim_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list date keys: %w", err)
	}
	defer rows.Close()

	var keys []int
	for rows.Next() {
		var key int
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan date key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read date keys: %w", err)
	}
	return keys, nil
}

func (r *dimensionRepository) UpsertDates(ctx context.Context, dates []models.DimDate) error {
	if len(dates) == 0 {
		return nil
	}

	query := `
		INSERT INTO dim_date (date_key, full_date, day_of_month, month_number, month_name, quarter, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date_key)
		DO UPDATE SET full_date = EXCLUDED.full_date, day_of_month = EXCLUDED.day_of_month,
			month_number = EXCLUDED.month_number, month_name = EXCLUDED.month_name,
			quarter = EXCLUDED.quarter, year = EXCLUDED.year`

	batch := &pgx.Batch{}
	for _, d := range dates {
		batch.Queue(query, d.DateKey, d.FullDate, d.DayOfMonth, d.MonthNumber, d.MonthName, d.Quarter, d.Year)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range dates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert date: %w", err)
		}
	}
	return nil
}

func (r *dimensionRepository) EnsureDate(ctx context.Context, date models.DimDate) error {
	query := `
		INSERT INTO dim_date (date_key, full_date, day_of_month, month_number, month_name, quarter, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date_key)
		DO UPDATE SET full_date = EXCLUDED.full_date, day_of_month = EXCLUDED.day_of_month,
			month_number = EXCLUDED.month_number, month_name = EXCLUDED.month_name,
			quarter = EXCLUDED.quarter, year = EXCLUDED.year`

	_, err := r.pool.Exec(ctx, query,
		date.DateKey, date.FullDate, date.DayOfMonth, date.MonthNumber,
		date.MonthName, date.Quarter, date.Year,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure date: %w", err)
	}
	return nil
}

func (r *dimensionRepository) ListChannels(ctx context.Context) ([]models.DimChannel, error) {
	rows, err := r.pool.Query(ctx, `SELECT channel_key, channel_name, channel_type FROM dim_channel`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []models.DimChannel
	for rows.Next() {
		var c models.DimChannel
		if err := rows.Scan(&c.ChannelKey, &c.ChannelName, &c.ChannelType); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channel rows: %w", err)
	}
	return channels, nil
}

func (r *dimensionRepository) UpsertChannels(ctx context.Context, channels []models.DimChannel) error {
	if len(channels) == 0 {
		return nil
	}

	query := `
		INSERT INTO dim_channel (channel_name, channel_type)
		VALUES ($1, $2)
		ON CONFLICT (channel_name)
		DO UPDATE SET channel_type = EXCLUDED.channel_type`

	batch := &pgx.Batch{}
	for _, c := range channels {
		batch.Queue(query, c.ChannelName, c.ChannelType)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range channels {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert channel: %w", err)
		}
	}
	return nil
}

func (r *dimensionRepository) EnsureChannel(ctx context.Context, channel models.DimChannel) (int, error) {
	query := `
		INSERT INTO dim_channel (channel_name, channel_type)
		VALUES ($1, $2)
		ON CONFLICT (channel_name)
		DO UPDATE SET channel_type = EXCLUDED.channel_type
		RETURNING channel_key`

	var key int
	err := r.pool.QueryRow(ctx, query, channel.ChannelName, channel.ChannelType).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure channel: %w", err)
	}
	return key, nil
}
