package models

import (
	"time"

	"github.com/google/uuid"
)

// Rejection reasons reported by the validation phase.
const (
	RejectMissingProductName  = "missing_product_name"
	RejectMissingCustomerName = "missing_customer_name"
	RejectInvalidDate         = "invalid_date"
)

// EtlResult is the outcome of one pipeline run, surfaced to the hosting
// process. Rejected is the sum of the per-reason counts in Rejections.
type EtlResult struct {
	RunID               uuid.UUID      `json:"run_id"`
	Success             bool           `json:"success"`
	Extracted           int            `json:"extracted"`
	Transformed         int            `json:"transformed"`
	Rejected            int            `json:"rejected"`
	Loaded              int            `json:"loaded"`
	Rejections          map[string]int `json:"rejections,omitempty"`
	NormalizedSentiment int            `json:"normalized_sentiment"`
	Elapsed             time.Duration  `json:"elapsed_ns"`
	ErrorMessage        string         `json:"error_message,omitempty"`
}

// RecordsPerSecond reports load throughput for the run summary log.
func (r *EtlResult) RecordsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Loaded) / r.Elapsed.Seconds()
}
