package extractors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
	"github.com/opiniondw/opinions-etl/pkg/models"
)

type jsonExtractor struct {
	cfg    config.JSONSourceConfig
	logger *zap.Logger
}

// NewJSONExtractor creates an extractor that reads opinions from a local
// JSON file holding an array of records in the common model shape.
func NewJSONExtractor(cfg config.JSONSourceConfig, logger *zap.Logger) Extractor {
	return &jsonExtractor{
		cfg:    cfg,
		logger: logger.Named("json-extractor"),
	}
}

var _ Extractor = (*jsonExtractor)(nil)

func (e *jsonExtractor) Name() string {
	return "json"
}

func (e *jsonExtractor) Extract(ctx context.Context) ([]models.Opinion, error) {
	e.logger.Info("Starting JSON extraction", zap.String("file_path", e.cfg.FilePath))
	start := time.Now()

	file, err := os.Open(e.cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file %s: %w", e.cfg.FilePath, err)
	}
	defer file.Close()

	var opinions []models.Opinion
	if err := json.NewDecoder(file).Decode(&opinions); err != nil {
		return nil, fmt.Errorf("failed to decode JSON file %s: %w", e.cfg.FilePath, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range opinions {
		if opinions[i].ChannelName == "" {
			opinions[i].ChannelName = "Partner Feed"
		}
		if opinions[i].ChannelType == "" {
			opinions[i].ChannelType = "JSON"
		}
	}

	e.logger.Info("JSON extraction complete",
		zap.Int("records", len(opinions)),
		zap.Duration("elapsed", time.Since(start)))
	return opinions, nil
}
