package models

import (
	"fmt"
	"time"
)

// Opinion is the source-agnostic representation of one customer opinion,
// produced by an extractor and consumed by the validation phase. It is
// treated as immutable once an extractor has emitted it; the validator
// works on its own copy.
type Opinion struct {
	SourceProductID int    `json:"product_id"`
	ProductName     string `json:"product_name"`
	ProductCategory string `json:"product_category,omitempty"`
	ProductBrand    string `json:"product_brand,omitempty"`

	SourceCustomerID int    `json:"customer_id"`
	CustomerName     string `json:"customer_name"`
	Country          string `json:"country,omitempty"`
	City             string `json:"city,omitempty"`
	Segment          string `json:"segment,omitempty"`
	AgeRange         string `json:"age_range,omitempty"`

	OpinionDate time.Time `json:"opinion_date"`
	ChannelName string    `json:"channel_name"`
	ChannelType string    `json:"channel_type"`

	Rating         *int   `json:"rating,omitempty"`
	SentimentScore int    `json:"sentiment_score"`
	CommentText    string `json:"comment_text,omitempty"`
}

// ProductNaturalKey identifies the product dimension row for this opinion.
// The pair (source product id, product name) is the stable natural key.
func (o *Opinion) ProductNaturalKey() string {
	return ProductNaturalKey(o.SourceProductID, o.ProductName)
}

// CustomerNaturalKey identifies the customer dimension row for this opinion.
func (o *Opinion) CustomerNaturalKey() string {
	return CustomerNaturalKey(o.SourceCustomerID, o.CustomerName)
}

// DateKey returns the derived surrogate key of the opinion's date.
func (o *Opinion) DateKey() int {
	return DateKey(o.OpinionDate)
}

// ProductNaturalKey builds the lookup key for a product dimension row.
func ProductNaturalKey(sourceID int, name string) string {
	return fmt.Sprintf("%d_%s", sourceID, name)
}

// CustomerNaturalKey builds the lookup key for a customer dimension row.
func CustomerNaturalKey(sourceID int, name string) string {
	return fmt.Sprintf("%d_%s", sourceID, name)
}
