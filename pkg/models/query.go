package models

import "time"

// Default and maximum page sizes for warehouse searches.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// OpinionFilter narrows warehouse searches and exports. Zero values mean
// the filter is not applied. Limit, when set, replaces page-based
// pagination and returns the first N rows.
type OpinionFilter struct {
	Page     int
	PageSize int
	Limit    int

	ProductName     string
	ProductCategory string
	ProductBrand    string

	CustomerName string
	Country      string
	City         string
	Segment      string

	ChannelName string
	ChannelType string

	DateFrom *time.Time
	DateTo   *time.Time
	Year     int
	Quarter  int

	RatingMin    *int
	RatingMax    *int
	SentimentMin *int
	SentimentMax *int

	OrderBy        string
	OrderDirection string
}

// Normalize fills pagination defaults and clamps out-of-range values.
func (f *OpinionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// SearchResult is one page of denormalized opinion rows plus the total
// match count for the filter.
type SearchResult struct {
	Opinions   []OpinionRow `json:"opinions"`
	TotalCount int64        `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
}
