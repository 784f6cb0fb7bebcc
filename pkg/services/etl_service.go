package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/apperrors"
	"github.com/opiniondw/opinions-etl/pkg/extractors"
	"github.com/opiniondw/opinions-etl/pkg/models"
)

// EtlService orchestrates one full pipeline run: parallel multi-source
// extraction, validation, dimension resolution, and the fact table full
// refresh. Phases run strictly in order; each consumes the complete
// output of its predecessor.
type EtlService interface {
	// Run executes the pipeline once. Only one run may be in flight per
	// service; a second concurrent call fails with ErrRunInProgress. The
	// returned result is populated even when err is non-nil.
	Run(ctx context.Context) (*models.EtlResult, error)

	// IsRunning reports whether a run is currently in flight.
	IsRunning() bool
}

type etlService struct {
	extractors  []extractors.Extractor
	validator   Validator
	resolver    DimensionResolver
	loader      FactLoader
	parallel    bool
	parallelism int
	logger      *zap.Logger

	running atomic.Bool
}

// NewEtlService creates the pipeline orchestrator. When parallel is true,
// extractors run concurrently bounded by parallelism workers; otherwise
// they run one after another with identical failure isolation.
func NewEtlService(
	exts []extractors.Extractor,
	validator Validator,
	resolver DimensionResolver,
	loader FactLoader,
	parallel bool,
	parallelism int,
	logger *zap.Logger,
) EtlService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &etlService{
		extractors:  exts,
		validator:   validator,
		resolver:    resolver,
		loader:      loader,
		parallel:    parallel,
		parallelism: parallelism,
		logger:      logger.Named("etl-service"),
	}
}

var _ EtlService = (*etlService)(nil)

func (s *etlService) IsRunning() bool {
	return s.running.Load()
}

func (s *etlService) Run(ctx context.Context) (*models.EtlResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrRunInProgress
	}
	defer s.running.Store(false)

	result := &models.EtlResult{RunID: uuid.New()}
	start := time.Now()
	s.logger.Info("Pipeline run starting",
		zap.String("run_id", result.RunID.String()),
		zap.Int("sources", len(s.extractors)),
		zap.Bool("parallel_extraction", s.parallel))

	fail := func(err error) (*models.EtlResult, error) {
		result.Elapsed = time.Since(start)
		result.ErrorMessage = err.Error()
		s.logger.Error("Pipeline run failed",
			zap.String("run_id", result.RunID.String()),
			zap.Duration("elapsed", result.Elapsed),
			zap.Error(err))
		return result, err
	}

	records := s.runExtractors(ctx)
	result.Extracted = len(records)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	outcome := s.validator.Validate(ctx, records)
	result.Transformed = len(outcome.Accepted)
	result.Rejected = outcome.Rejected
	result.Rejections = outcome.Rejections
	result.NormalizedSentiment = outcome.NormalizedSentiment

	keys, err := s.resolver.Resolve(ctx, outcome.Accepted)
	if err != nil {
		return fail(err)
	}

	loaded, err := s.loader.Load(ctx, outcome.Accepted, keys)
	result.Loaded = int(loaded)
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.Elapsed = time.Since(start)
	s.logger.Info("Pipeline run complete",
		zap.String("run_id", result.RunID.String()),
		zap.Int("extracted", result.Extracted),
		zap.Int("transformed", result.Transformed),
		zap.Int("rejected", result.Rejected),
		zap.Int("loaded", result.Loaded),
		zap.Int("normalized_sentiment", result.NormalizedSentiment),
		zap.Duration("elapsed", result.Elapsed),
		zap.Float64("records_per_second", result.RecordsPerSecond()))
	return result, nil
}

// runExtractors fans out to every source and merges their outputs. A
// failing source contributes zero records and the run continues; no
// ordering is guaranteed across sources.
func (s *etlService) runExtractors(ctx context.Context) []models.Opinion {
	if !s.parallel {
		var merged []models.Opinion
		for _, ext := range s.extractors {
			merged = append(merged, s.runExtractor(ctx, ext)...)
		}
		return merged
	}

	results := make([][]models.Opinion, len(s.extractors))
	sem := make(chan struct{}, s.parallelism)

	var wg sync.WaitGroup
	for i, ext := range s.extractors {
		wg.Add(1)
		go func(i int, ext extractors.Extractor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.runExtractor(ctx, ext)
		}(i, ext)
	}
	wg.Wait()

	var merged []models.Opinion
	for _, part := range results {
		merged = append(merged, part...)
	}
	return merged
}

func (s *etlService) runExtractor(ctx context.Context, ext extractors.Extractor) []models.Opinion {
	start := time.Now()
	records, err := ext.Extract(ctx)
	if err != nil {
		s.logger.Warn("Source extraction failed, continuing without it",
			zap.String("source", ext.Name()),
			zap.Error(err))
		return nil
	}
	s.logger.Info("Source extraction complete",
		zap.String("source", ext.Name()),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records
}
