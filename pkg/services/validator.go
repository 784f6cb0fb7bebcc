package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

// ValidationOutcome aggregates one validation pass: the accepted records
// (normalized in place) plus counters. Unless the pass was cancelled,
// accepted count + Rejected equals the input count exactly.
type ValidationOutcome struct {
	Accepted            []models.Opinion
	Rejected            int
	Rejections          map[string]int
	NormalizedSentiment int
}

// Validator classifies raw records as accepted or rejected and normalizes
// out-of-range sentiment scores on the accepted ones.
type Validator interface {
	Validate(ctx context.Context, records []models.Opinion) *ValidationOutcome
}

type validator struct {
	parallelism int
	logger      *zap.Logger
}

// NewValidator creates a Validator that processes records across the given
// number of workers.
func NewValidator(parallelism int, logger *zap.Logger) Validator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &validator{
		parallelism: parallelism,
		logger:      logger.Named("validator"),
	}
}

var _ Validator = (*validator)(nil)

func (v *validator) Validate(ctx context.Context, records []models.Opinion) *ValidationOutcome {
	start := time.Now()

	var (
		missingProduct  atomic.Int64
		missingCustomer atomic.Int64
		invalidDate     atomic.Int64
		normalized      atomic.Int64
	)

	workers := v.parallelism
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}

	// Each worker classifies a contiguous slice of the input and collects
	// accepted records locally; the partial slices are merged afterwards so
	// no locking happens in the hot loop. Counters are the only shared state.
	accepted := make([][]models.Opinion, workers)
	chunk := (len(records) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(records) {
			hi = len(records)
		}
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			local := make([]models.Opinion, 0, hi-lo)
			for i, record := range records[lo:hi] {
				if i%10000 == 0 && ctx.Err() != nil {
					return
				}
				switch {
				case strings.TrimSpace(record.ProductName) == "":
					missingProduct.Add(1)
				case strings.TrimSpace(record.CustomerName) == "":
					missingCustomer.Add(1)
				case record.OpinionDate.IsZero():
					invalidDate.Add(1)
				default:
					if record.SentimentScore < -1 || record.SentimentScore > 1 {
						if record.SentimentScore > 0 {
							record.SentimentScore = 1
						} else {
							record.SentimentScore = -1
						}
						normalized.Add(1)
					}
					local = append(local, record)
				}
			}
			accepted[w] = local
		}(w, lo, hi)
	}
	wg.Wait()

	outcome := &ValidationOutcome{
		Rejections:          make(map[string]int),
		NormalizedSentiment: int(normalized.Load()),
	}
	for _, part := range accepted {
		outcome.Accepted = append(outcome.Accepted, part...)
	}
	if n := int(missingProduct.Load()); n > 0 {
		outcome.Rejections[models.RejectMissingProductName] = n
	}
	if n := int(missingCustomer.Load()); n > 0 {
		outcome.Rejections[models.RejectMissingCustomerName] = n
	}
	if n := int(invalidDate.Load()); n > 0 {
		outcome.Rejections[models.RejectInvalidDate] = n
	}
	for _, n := range outcome.Rejections {
		outcome.Rejected += n
	}

	v.logger.Info("Validation complete",
		zap.Int("input", len(records)),
		zap.Int("accepted", len(outcome.Accepted)),
		zap.Int("rejected", outcome.Rejected),
		zap.Int("normalized_sentiment", outcome.NormalizedSentiment),
		zap.Duration("elapsed", time.Since(start)))

	return outcome
}
