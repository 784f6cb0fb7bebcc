package extractors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/retry"
)

// apiOpinion mirrors the payload of the social media opinions endpoint.
type apiOpinion struct {
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`

	UserID      int          `json:"userId"`
	UserName    string       `json:"userName"`
	Location    *apiLocation `json:"location"`
	UserSegment string       `json:"userSegment"`
	AgeRange    string       `json:"ageRange"`

	CommentDate    time.Time `json:"commentDate"`
	Source         string    `json:"source"`
	Rating         *int      `json:"rating"`
	SentimentScore int       `json:"sentimentScore"`
	CommentText    string    `json:"commentText"`
}

type apiLocation struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type apiExtractor struct {
	cfg    config.APISourceConfig
	client *http.Client
	logger *zap.Logger
}

// NewAPIExtractor creates an extractor that fetches social media opinions
// from the configured REST endpoint. Transient failures (5xx, rate limits,
// connection errors) are retried with exponential backoff.
func NewAPIExtractor(cfg config.APISourceConfig, logger *zap.Logger) Extractor {
	return &apiExtractor{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.Named("api-extractor"),
	}
}

var _ Extractor = (*apiExtractor)(nil)

func (e *apiExtractor) Name() string {
	return "api"
}

func (e *apiExtractor) Extract(ctx context.Context) ([]models.Opinion, error) {
	url := strings.TrimRight(e.cfg.BaseURL, "/") + e.cfg.Endpoint
	e.logger.Info("Starting API extraction", zap.String("url", url))
	start := time.Now()

	var payload []apiOpinion
	err := retry.DoIfRetryable(ctx, retry.HTTPConfig(e.cfg.MaxRetries), func() error {
		var fetchErr error
		payload, fetchErr = e.fetch(ctx, url)
		if fetchErr != nil {
			e.logger.Warn("API fetch attempt failed", zap.Error(fetchErr))
		}
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opinions from API: %w", err)
	}

	opinions := make([]models.Opinion, 0, len(payload))
	for _, record := range payload {
		opinions = append(opinions, mapAPIOpinion(record))
	}

	e.logger.Info("API extraction complete",
		zap.Int("records", len(opinions)),
		zap.Duration("elapsed", time.Since(start)))
	return opinions, nil
}

func (e *apiExtractor) fetch(ctx context.Context, url string) ([]apiOpinion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call opinions API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused across retries.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("opinions API returned status %d", resp.StatusCode)
	}

	var payload []apiOpinion
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return payload, nil
}

// mapAPIOpinion converts an API record to the common model. Social feeds
// often omit identity fields, so blanks fall back to placeholder values
// instead of being rejected downstream.
func mapAPIOpinion(record apiOpinion) models.Opinion {
	o := models.Opinion{
		SourceProductID: record.ProductID,
		ProductName:     record.ProductName,
		ProductCategory: record.Category,
		ProductBrand:    record.Brand,

		SourceCustomerID: record.UserID,
		CustomerName:     record.UserName,
		Segment:          record.UserSegment,
		AgeRange:         record.AgeRange,

		OpinionDate: record.CommentDate,
		ChannelName: record.Source,
		ChannelType: "API",

		Rating:         record.Rating,
		SentimentScore: record.SentimentScore,
		CommentText:    record.CommentText,
	}
	if record.Location != nil {
		o.Country = record.Location.Country
		o.City = record.Location.City
	}
	if o.ProductName == "" {
		o.ProductName = "Unknown"
	}
	if o.CustomerName == "" {
		o.CustomerName = "Anonymous"
	}
	if o.ChannelName == "" {
		o.ChannelName = "Social Media"
	}
	return o
}
