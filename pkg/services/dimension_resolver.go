package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/repositories"
)

// DimensionKeys maps natural keys to surrogate keys for one run. Date keys
// are derived from the calendar date, so dates need no lookup map; the
// resolver only guarantees their dimension rows exist.
type DimensionKeys struct {
	Products  map[string]int
	Customers map[string]int
	Channels  map[string]int
}

// DimensionResolver maps every natural key appearing in the validated
// record set to a stable surrogate key, creating dimension rows on first
// sighting. Re-resolving a natural key always yields the same key, within
// and across runs. A store failure here aborts the whole run.
type DimensionResolver interface {
	Resolve(ctx context.Context, records []models.Opinion) (*DimensionKeys, error)
}

// batchDimensionResolver is the set-based strategy: collect the distinct
// natural keys across the whole record set, upsert them in one store call
// per dimension, then reload the complete key mappings. No per-record
// store round-trips and no insert races.
type batchDimensionResolver struct {
	repo   repositories.DimensionRepository
	logger *zap.Logger
}

// NewDimensionResolver creates the default, set-based DimensionResolver.
func NewDimensionResolver(repo repositories.DimensionRepository, logger *zap.Logger) DimensionResolver {
	return &batchDimensionResolver{
		repo:   repo,
		logger: logger.Named("dimension-resolver"),
	}
}

var _ DimensionResolver = (*batchDimensionResolver)(nil)

func (r *batchDimensionResolver) Resolve(ctx context.Context, records []models.Opinion) (*DimensionKeys, error) {
	start := time.Now()

	products := make(map[string]models.DimProduct)
	customers := make(map[string]models.DimCustomer)
	channels := make(map[string]models.DimChannel)
	dates := make(map[int]models.DimDate)

	for i := range records {
		record := &records[i]
		if _, ok := products[record.ProductNaturalKey()]; !ok {
			products[record.ProductNaturalKey()] = models.DimProduct{
				SourceProductID: record.SourceProductID,
				ProductName:     record.ProductName,
				ProductCategory: record.ProductCategory,
				ProductBrand:    record.ProductBrand,
			}
		}
		if _, ok := customers[record.CustomerNaturalKey()]; !ok {
			customers[record.CustomerNaturalKey()] = models.DimCustomer{
				SourceCustomerID: record.SourceCustomerID,
				CustomerName:     record.CustomerName,
				Country:          record.Country,
				City:             record.City,
				Segment:          record.Segment,
				AgeRange:         record.AgeRange,
			}
		}
		if _, ok := channels[record.ChannelName]; !ok {
			channels[record.ChannelName] = models.DimChannel{
				ChannelName: record.ChannelName,
				ChannelType: record.ChannelType,
			}
		}
		if _, ok := dates[record.DateKey()]; !ok {
			dates[record.DateKey()] = models.NewDimDate(record.OpinionDate)
		}
	}

	if err := r.repo.UpsertProducts(ctx, collect(products)); err != nil {
		return nil, fmt.Errorf("failed to resolve product dimension: %w", err)
	}
	if err := r.repo.UpsertCustomers(ctx, collect(customers)); err != nil {
		return nil, fmt.Errorf("failed to resolve customer dimension: %w", err)
	}
	if err := r.repo.UpsertChannels(ctx, collect(channels)); err != nil {
		return nil, fmt.Errorf("failed to resolve channel dimension: %w", err)
	}
	if err := r.repo.UpsertDates(ctx, collect(dates)); err != nil {
		return nil, fmt.Errorf("failed to resolve date dimension: %w", err)
	}

	keys, err := r.reloadKeys(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Dimension resolution complete",
		zap.Int("distinct_products", len(products)),
		zap.Int("distinct_customers", len(customers)),
		zap.Int("distinct_channels", len(channels)),
		zap.Int("distinct_dates", len(dates)),
		zap.Duration("elapsed", time.Since(start)))

	return keys, nil
}

func (r *batchDimensionResolver) reloadKeys(ctx context.Context) (*DimensionKeys, error) {
	keys := &DimensionKeys{
		Products:  make(map[string]int),
		Customers: make(map[string]int),
		Channels:  make(map[string]int),
	}

	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload product keys: %w", err)
	}
	for i := range products {
		keys.Products[products[i].NaturalKey()] = products[i].ProductKey
	}

	customers, err := r.repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload customer keys: %w", err)
	}
	for i := range customers {
		keys.Customers[customers[i].NaturalKey()] = customers[i].CustomerKey
	}

	channels, err := r.repo.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload channel keys: %w", err)
	}
	for _, c := range channels {
		keys.Channels[c.ChannelName] = c.ChannelKey
	}

	return keys, nil
}

func collect[K comparable, V any](m map[K]V) []V {
	values := make([]V, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	return values
}

// incrementalDimensionResolver is the streaming strategy: a cache
// preloaded from the store, with store get-or-create on miss. The check
// and insert for one natural key are serialized by a per-key lock so two
// concurrent misses cannot create duplicate rows.
type incrementalDimensionResolver struct {
	repo   repositories.DimensionRepository
	logger *zap.Logger

	mu    sync.RWMutex
	locks keyedLocks
}

// NewIncrementalDimensionResolver creates the streaming DimensionResolver.
// The batch resolver is preferred for full-refresh runs; this one suits
// hosts that resolve records as they arrive.
func NewIncrementalDimensionResolver(repo repositories.DimensionRepository, logger *zap.Logger) DimensionResolver {
	return &incrementalDimensionResolver{
		repo:   repo,
		logger: logger.Named("dimension-resolver"),
	}
}

var _ DimensionResolver = (*incrementalDimensionResolver)(nil)

func (r *incrementalDimensionResolver) Resolve(ctx context.Context, records []models.Opinion) (*DimensionKeys, error) {
	start := time.Now()

	keys, err := r.preload(ctx)
	if err != nil {
		return nil, err
	}
	dates := make(map[int]bool)

	for i := range records {
		record := &records[i]

		if err := r.resolveKey(keys.Products, record.ProductNaturalKey(), func() (int, error) {
			return r.repo.EnsureProduct(ctx, models.DimProduct{
				SourceProductID: record.SourceProductID,
				ProductName:     record.ProductName,
				ProductCategory: record.ProductCategory,
				ProductBrand:    record.ProductBrand,
			})
		}); err != nil {
			return nil, fmt.Errorf("failed to resolve product dimension: %w", err)
		}

		if err := r.resolveKey(keys.Customers, record.CustomerNaturalKey(), func() (int, error) {
			return r.repo.EnsureCustomer(ctx, models.DimCustomer{
				SourceCustomerID: record.SourceCustomerID,
				CustomerName:     record.CustomerName,
				Country:          record.Country,
				City:             record.City,
				Segment:          record.Segment,
				AgeRange:         record.AgeRange,
			})
		}); err != nil {
			return nil, fmt.Errorf("failed to resolve customer dimension: %w", err)
		}

		if err := r.resolveKey(keys.Channels, record.ChannelName, func() (int, error) {
			return r.repo.EnsureChannel(ctx, models.DimChannel{
				ChannelName: record.ChannelName,
				ChannelType: record.ChannelType,
			})
		}); err != nil {
			return nil, fmt.Errorf("failed to resolve channel dimension: %w", err)
		}

		if !dates[record.DateKey()] {
			if err := r.repo.EnsureDate(ctx, models.NewDimDate(record.OpinionDate)); err != nil {
				return nil, fmt.Errorf("failed to resolve date dimension: %w", err)
			}
			dates[record.DateKey()] = true
		}
	}

	r.logger.Info("Dimension resolution complete",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return keys, nil
}

// resolveKey returns immediately on a cache hit; on a miss it takes the
// lock for that natural key, re-checks the cache, and only then calls the
// store get-or-create.
func (r *incrementalDimensionResolver) resolveKey(cache map[string]int, naturalKey string, ensure func() (int, error)) error {
	r.mu.RLock()
	_, ok := cache[naturalKey]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	unlock := r.locks.lock(naturalKey)
	defer unlock()

	r.mu.RLock()
	_, ok = cache[naturalKey]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	key, err := ensure()
	if err != nil {
		return err
	}

	r.mu.Lock()
	cache[naturalKey] = key
	r.mu.Unlock()
	return nil
}

func (r *incrementalDimensionResolver) preload(ctx context.Context) (*DimensionKeys, error) {
	keys := &DimensionKeys{
		Products:  make(map[string]int),
		Customers: make(map[string]int),
		Channels:  make(map[string]int),
	}

	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to preload product cache: %w", err)
	}
	for i := range products {
		keys.Products[products[i].NaturalKey()] = products[i].ProductKey
	}

	customers, err := r.repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to preload customer cache: %w", err)
	}
	for i := range customers {
		keys.Customers[customers[i].NaturalKey()] = customers[i].CustomerKey
	}

	channels, err := r.repo.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to preload channel cache: %w", err)
	}
	for _, c := range channels {
		keys.Channels[c.ChannelName] = c.ChannelKey
	}

	return keys, nil
}

// keyedLocks hands out one mutex per natural key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
