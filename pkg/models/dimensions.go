package models

import "time"

// DimProduct is a row of the product dimension. ProductKey is the
// warehouse-assigned surrogate key; (SourceProductID, ProductName) is the
// natural key and must map to the same surrogate key for the lifetime of
// the warehouse.
type DimProduct struct {
	ProductKey      int
	SourceProductID int
	ProductName     string
	ProductCategory string
	ProductBrand    string
}

// NaturalKey returns the lookup key for this product row.
func (p *DimProduct) NaturalKey() string {
	return ProductNaturalKey(p.SourceProductID, p.ProductName)
}

// DimCustomer is a row of the customer dimension.
type DimCustomer struct {
	CustomerKey      int
	SourceCustomerID int
	CustomerName     string
	Country          string
	City             string
	Segment          string
	AgeRange         string
}

// NaturalKey returns the lookup key for this customer row.
func (c *DimCustomer) NaturalKey() string {
	return CustomerNaturalKey(c.SourceCustomerID, c.CustomerName)
}

// DimChannel is a row of the channel dimension. ChannelName is the natural key.
type DimChannel struct {
	ChannelKey  int
	ChannelName string
	ChannelType string
}

// DimDate is a row of the date dimension. Unlike the other dimensions its
// surrogate key is not store-assigned: DateKey is derived from the calendar
// date itself, so resolving a date never requires a store round-trip.
type DimDate struct {
	DateKey     int
	FullDate    time.Time
	DayOfMonth  int
	MonthNumber int
	MonthName   string
	Quarter     int
	Year        int
}

// DateKey encodes a calendar date as an integer surrogate key (yyyymmdd).
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// NewDimDate derives the full date dimension row for t. The time component
// is discarded; only the calendar date participates in the dimension.
func NewDimDate(t time.Time) DimDate {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DimDate{
		DateKey:     DateKey(t),
		FullDate:    date,
		DayOfMonth:  t.Day(),
		MonthNumber: int(t.Month()),
		MonthName:   t.Month().String(),
		Quarter:     (int(t.Month())-1)/3 + 1,
		Year:        t.Year(),
	}
}
