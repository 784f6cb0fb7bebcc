package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

func opinionFor(productID, customerID int, channel string, date time.Time) models.Opinion {
	return models.Opinion{
		SourceProductID:  productID,
		ProductName:      fmt.Sprintf("Product %d", productID),
		SourceCustomerID: customerID,
		CustomerName:     fmt.Sprintf("Customer %d", customerID),
		OpinionDate:      date,
		ChannelName:      channel,
		ChannelType:      "CSV",
	}
}

func TestBatchResolver_ResolvesAllDimensions(t *testing.T) {
	repo := newMockDimensionRepository()
	resolver := NewDimensionResolver(repo, zap.NewNop())

	date := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	records := []models.Opinion{
		opinionFor(1, 10, "Internal Survey", date),
		opinionFor(2, 11, "Web Review", date),
	}

	keys, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, keys.Products, 2)
	assert.Len(t, keys.Customers, 2)
	assert.Len(t, keys.Channels, 2)
	assert.Contains(t, keys.Products, "1_Product 1")
	assert.Contains(t, keys.Customers, "10_Customer 10")
	assert.Contains(t, keys.Channels, "Internal Survey")
	assert.Contains(t, repo.dates, 20250315)
}

func TestBatchResolver_OneUpsertPerDimension(t *testing.T) {
	// 10k records over 50 distinct natural keys must reach the store as a
	// single set-based upsert per dimension, not per-record round-trips.
	repo := newMockDimensionRepository()
	resolver := NewDimensionResolver(repo, zap.NewNop())

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.Opinion, 0, 10000)
	for i := 0; i < 10000; i++ {
		records = append(records, opinionFor(i%50, i%50, "Internal Survey", base.AddDate(0, 0, i%50)))
	}

	keys, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, keys.Products, 50)
	assert.Len(t, keys.Customers, 50)
	assert.Len(t, repo.dates, 50)
	assert.Equal(t, 1, repo.upsertCalls["products"])
	assert.Equal(t, 1, repo.upsertCalls["customers"])
	assert.Equal(t, 1, repo.upsertCalls["channels"])
	assert.Equal(t, 1, repo.upsertCalls["dates"])
	assert.Zero(t, repo.ensureCalls["products"])
}

func TestBatchResolver_StableAcrossRuns(t *testing.T) {
	repo := newMockDimensionRepository()
	resolver := NewDimensionResolver(repo, zap.NewNop())
	records := []models.Opinion{opinionFor(1, 10, "Internal Survey", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))}

	first, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)

	second, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, first.Products["1_Product 1"], second.Products["1_Product 1"])
	assert.Equal(t, first.Customers["10_Customer 10"], second.Customers["10_Customer 10"])
	assert.Equal(t, first.Channels["Internal Survey"], second.Channels["Internal Survey"])
}

func TestBatchResolver_StoreFailureIsFatal(t *testing.T) {
	repo := newMockDimensionRepository()
	repo.failWith = errors.New("store unavailable")
	resolver := NewDimensionResolver(repo, zap.NewNop())

	_, err := resolver.Resolve(context.Background(),
		[]models.Opinion{opinionFor(1, 10, "Internal Survey", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))})
	assert.Error(t, err)
}

func TestIncrementalResolver_ResolvesAndCaches(t *testing.T) {
	repo := newMockDimensionRepository()
	resolver := NewIncrementalDimensionResolver(repo, zap.NewNop())

	date := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	records := []models.Opinion{
		opinionFor(1, 10, "Internal Survey", date),
		opinionFor(1, 10, "Internal Survey", date),
		opinionFor(1, 10, "Internal Survey", date),
	}

	keys, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, keys.Products, 1)
	// Repeated sightings of one natural key hit the cache, not the store.
	assert.Equal(t, 1, repo.ensureCalls["products"])
	assert.Equal(t, 1, repo.ensureCalls["customers"])
	assert.Equal(t, 1, repo.ensureCalls["channels"])
}

func TestIncrementalResolver_PreloadsExistingRows(t *testing.T) {
	repo := newMockDimensionRepository()
	seeded, err := repo.EnsureProduct(context.Background(), models.DimProduct{SourceProductID: 1, ProductName: "Product 1"})
	require.NoError(t, err)
	repo.ensureCalls = map[string]int{}

	resolver := NewIncrementalDimensionResolver(repo, zap.NewNop())
	keys, err := resolver.Resolve(context.Background(),
		[]models.Opinion{opinionFor(1, 10, "Internal Survey", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))})
	require.NoError(t, err)

	assert.Equal(t, seeded, keys.Products["1_Product 1"])
	assert.Zero(t, repo.ensureCalls["products"])
}

func TestIncrementalResolver_ConcurrentSameKeyNoDuplicates(t *testing.T) {
	repo := newMockDimensionRepository()
	resolver := NewIncrementalDimensionResolver(repo, zap.NewNop()).(*incrementalDimensionResolver)

	// Hammer the per-key lock path directly with one natural key.
	keys, err := resolver.preload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := resolver.resolveKey(keys.Products, "1_Product 1", func() (int, error) {
				return repo.EnsureProduct(context.Background(), models.DimProduct{SourceProductID: 1, ProductName: "Product 1"})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.products, 1)
	assert.Equal(t, 1, repo.ensureCalls["products"])
	assert.Equal(t, 1, keys.Products["1_Product 1"])
}

func TestIncrementalResolver_StoreFailureIsFatal(t *testing.T) {
	repo := newMockDimensionRepository()
	resolver := NewIncrementalDimensionResolver(repo, zap.NewNop())

	repo.failWith = errors.New("store unavailable")
	_, err := resolver.Resolve(context.Background(),
		[]models.Opinion{opinionFor(1, 10, "Internal Survey", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))})
	assert.Error(t, err)
}
