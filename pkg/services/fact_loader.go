package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/apperrors"
	"github.com/opiniondw/opinions-etl/pkg/models"
	"github.com/opiniondw/opinions-etl/pkg/repositories"
)

// FactLoader performs the full refresh of the fact table: truncate, then
// bulk insert one fact row per accepted record. If the truncate succeeds
// and the insert fails, the fact table stays empty until the next
// successful run.
type FactLoader interface {
	Load(ctx context.Context, records []models.Opinion, keys *DimensionKeys) (int64, error)
}

type factLoader struct {
	repo      repositories.FactRepository
	batchSize int
	logger    *zap.Logger
}

// NewFactLoader creates a FactLoader that streams fact rows to the store
// in chunks of batchSize.
func NewFactLoader(repo repositories.FactRepository, batchSize int, logger *zap.Logger) FactLoader {
	if batchSize < 1 {
		batchSize = 10000
	}
	return &factLoader{
		repo:      repo,
		batchSize: batchSize,
		logger:    logger.Named("fact-loader"),
	}
}

var _ FactLoader = (*factLoader)(nil)

func (l *factLoader) Load(ctx context.Context, records []models.Opinion, keys *DimensionKeys) (int64, error) {
	// Assemble every fact row before touching the table, so surrogate key
	// gaps abort the run without destroying the previous load.
	facts, err := l.assemble(records, keys)
	if err != nil {
		return 0, err
	}

	// The truncate is destructive; never start it on a cancelled run.
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()
	removed, err := l.repo.Truncate(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to truncate fact table: %w", err)
	}
	l.logger.Info("Fact table truncated", zap.Int64("rows_removed", removed))

	var loaded int64
	for lo := 0; lo < len(facts); lo += l.batchSize {
		hi := lo + l.batchSize
		if hi > len(facts) {
			hi = len(facts)
		}

		if err := ctx.Err(); err != nil {
			return loaded, err
		}

		n, err := l.repo.BulkInsert(ctx, facts[lo:hi])
		loaded += n
		if err != nil {
			return loaded, fmt.Errorf("failed to load fact batch: %w", err)
		}
	}

	elapsed := time.Since(start)
	l.logger.Info("Fact load complete",
		zap.Int64("rows_loaded", loaded),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rows_per_second", float64(loaded)/elapsed.Seconds()))
	return loaded, nil
}

func (l *factLoader) assemble(records []models.Opinion, keys *DimensionKeys) ([]models.FactOpinion, error) {
	facts := make([]models.FactOpinion, 0, len(records))
	for i := range records {
		record := &records[i]

		productKey, ok := keys.Products[record.ProductNaturalKey()]
		if !ok {
			return nil, fmt.Errorf("product %q: %w", record.ProductNaturalKey(), apperrors.ErrMissingSurrogate)
		}
		customerKey, ok := keys.Customers[record.CustomerNaturalKey()]
		if !ok {
			return nil, fmt.Errorf("customer %q: %w", record.CustomerNaturalKey(), apperrors.ErrMissingSurrogate)
		}
		channelKey, ok := keys.Channels[record.ChannelName]
		if !ok {
			return nil, fmt.Errorf("channel %q: %w", record.ChannelName, apperrors.ErrMissingSurrogate)
		}

		facts = append(facts, models.FactOpinion{
			ProductKey:     productKey,
			CustomerKey:    customerKey,
			DateKey:        record.DateKey(),
			ChannelKey:     channelKey,
			Rating:         record.Rating,
			SentimentScore: record.SentimentScore,
			OpinionCount:   1,
		})
	}
	return facts, nil
}
