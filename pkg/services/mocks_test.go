package services

import (
	"context"
	"sync"

	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/repositories"
)

// mockDimensionRepository is an in-memory DimensionRepository that assigns
// surrogate keys sequentially per dimension and records call counts.
type mockDimensionRepository struct {
	mu sync.Mutex

	products  map[string]models.DimProduct
	customers map[string]models.DimCustomer
	channels  map[string]models.DimChannel
	dates     map[int]models.DimDate

	nextProductKey  int
	nextCustomerKey int
	nextChannelKey  int

	upsertCalls map[string]int
	ensureCalls map[string]int

	failWith error
}

var _ repositories.DimensionRepository = (*mockDimensionRepository)(nil)

func newMockDimensionRepository() *mockDimensionRepository {
	return &mockDimensionRepository{
		products:    make(map[string]models.DimProduct),
		customers:   make(map[string]models.DimCustomer),
		channels:    make(map[string]models.DimChannel),
		dates:       make(map[int]models.DimDate),
		upsertCalls: make(map[string]int),
		ensureCalls: make(map[string]int),
	}
}

func (m *mockDimensionRepository) ListProducts(ctx context.Context) ([]models.DimProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.DimProduct, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockDimensionRepository) UpsertProducts(ctx context.Context, products []models.DimProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.upsertCalls["products"]++
	for _, p := range products {
		if existing, ok := m.products[p.NaturalKey()]; ok {
			p.ProductKey = existing.ProductKey
		} else {
			m.nextProductKey++
			p.ProductKey = m.nextProductKey
		}
		m.products[p.NaturalKey()] = p
	}
	return nil
}

func (m *mockDimensionRepository) EnsureProduct(ctx context.Context, product models.DimProduct) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.ensureCalls["products"]++
	if existing, ok := m.products[product.NaturalKey()]; ok {
		product.ProductKey = existing.ProductKey
	} else {
		m.nextProductKey++
		product.ProductKey = m.nextProductKey
	}
	m.products[product.NaturalKey()] = product
	return product.ProductKey, nil
}

func (m *mockDimensionRepository) ListCustomers(ctx context.Context) ([]models.DimCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.DimCustomer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockDimensionRepository) UpsertCustomers(ctx context.Context, customers []models.DimCustomer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.upsertCalls["customers"]++
	for _, c := range customers {
		if existing, ok := m.customers[c.NaturalKey()]; ok {
			c.CustomerKey = existing.CustomerKey
		} else {
			m.nextCustomerKey++
			c.CustomerKey = m.nextCustomerKey
		}
		m.customers[c.NaturalKey()] = c
	}
	return nil
}

func (m *mockDimensionRepository) EnsureCustomer(ctx context.Context, customer models.DimCustomer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.ensureCalls["customers"]++
	if existing, ok := m.customers[customer.NaturalKey()]; ok {
		customer.CustomerKey = existing.CustomerKey
	} else {
		m.nextCustomerKey++
		customer.CustomerKey = m.nextCustomerKey
	}
	m.customers[customer.NaturalKey()] = customer
	return customer.CustomerKey, nil
}

func (m *mockDimensionRepository) ListDateKeys(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]int, 0, len(m.dates))
	for key := range m.dates {
		out = append(out, key)
	}
	return out, nil
}

func (m *mockDimensionRepository) UpsertDates(ctx context.Context, dates []models.DimDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.upsertCalls["dates"]++
	for _, d := range dates {
		m.dates[d.DateKey] = d
	}
	return nil
}

func (m *mockDimensionRepository) EnsureDate(ctx context.Context, date models.DimDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.ensureCalls["dates"]++
	m.dates[date.DateKey] = date
	return nil
}

func (m *mockDimensionRepository) ListChannels(ctx context.Context) ([]models.DimChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.DimChannel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockDimensionRepository) UpsertChannels(ctx context.Context, channels []models.DimChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.upsertCalls["channels"]++
	for _, c := range channels {
		if existing, ok := m.channels[c.ChannelName]; ok {
			c.ChannelKey = existing.ChannelKey
		} else {
			m.nextChannelKey++
			c.ChannelKey = m.nextChannelKey
		}
		m.channels[c.ChannelName] = c
	}
	return nil
}

func (m *mockDimensionRepository) EnsureChannel(ctx context.Context, channel models.DimChannel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.ensureCalls["channels"]++
	if existing, ok := m.channels[channel.ChannelName]; ok {
		channel.ChannelKey = existing.ChannelKey
	} else {
		m.nextChannelKey++
		channel.ChannelKey = m.nextChannelKey
	}
	m.channels[channel.ChannelName] = channel
	return channel.ChannelKey, nil
}

// mockFactRepository is an in-memory FactRepository recording inserts.
type mockFactRepository struct {
	mu sync.Mutex

	rows        []models.FactOpinion
	truncates   int
	insertCalls int

	truncateErr error
	insertErr   error

	searchResult *models.SearchResult
	searchErr    error
	exportRows   []models.OpinionRow
	exportErr    error
	lastFilter   models.OpinionFilter
}

var _ repositories.FactRepository = (*mockFactRepository)(nil)

func (m *mockFactRepository) Truncate(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.truncateErr != nil {
		return 0, m.truncateErr
	}
	m.truncates++
	removed := int64(len(m.rows))
	m.rows = nil
	return removed, nil
}

func (m *mockFactRepository) BulkInsert(ctx context.Context, facts []models.FactOpinion) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.insertCalls++
	m.rows = append(m.rows, facts...)
	return int64(len(facts)), nil
}

func (m *mockFactRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *mockFactRepository) Search(ctx context.Context, filter models.OpinionFilter) (*models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResult != nil {
		return m.searchResult, nil
	}
	return &models.SearchResult{}, nil
}

func (m *mockFactRepository) Export(ctx context.Context, filter models.OpinionFilter) ([]models.OpinionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return m.exportRows, nil
}

// mockExtractor returns canned records or a canned error.
type mockExtractor struct {
	name    string
	records []models.Opinion
	err     error
}

func (m *mockExtractor) Name() string {
	return m.name
}

func (m *mockExtractor) Extract(ctx context.Context) ([]models.Opinion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}
