package models

// FactOpinion is one row of the fact table: four surrogate foreign keys
// plus the measures. Rows reference their dimensions by integer key only;
// there are no navigation pointers back into dimension structs. The fact
// table is replaced wholesale on every run (truncate then bulk insert).
type FactOpinion struct {
	ProductKey     int
	CustomerKey    int
	DateKey        int
	ChannelKey     int
	Rating         *int
	SentimentScore int
	OpinionCount   int
}

// OpinionRow is a denormalized fact row joined with its four dimensions,
// as surfaced by the read-side search and export queries.
type OpinionRow struct {
	ProductKey     int    `json:"product_key"`
	CustomerKey    int    `json:"customer_key"`
	DateKey        int    `json:"date_key"`
	ChannelKey     int    `json:"channel_key"`
	Rating         *int   `json:"rating"`
	SentimentScore int    `json:"sentiment_score"`
	OpinionCount   int    `json:"opinion_count"`

	ProductName     string `json:"product_name"`
	ProductCategory string `json:"product_category"`
	ProductBrand    string `json:"product_brand"`

	CustomerName string `json:"customer_name"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Segment      string `json:"segment"`
	AgeRange     string `json:"age_range"`

	FullDate    string `json:"full_date"`
	Year        int    `json:"year"`
	MonthNumber int    `json:"month_number"`
	MonthName   string `json:"month_name"`
	Quarter     int    `json:"quarter"`

	ChannelName string `json:"channel_name"`
	ChannelType string `json:"channel_type"`
}
