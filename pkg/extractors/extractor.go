package extractors

import (
	"context"

	"github.com/opiniondw/opinions-etl/pkg/models"
)

// Extractor pulls opinions out of one upstream source and maps them to the
// source-agnostic model. Implementations are independent of each other and
// may run concurrently, but a single Extract call is sequential.
type Extractor interface {
	// Name identifies the source in logs and run summaries.
	Name() string

	// Extract reads all available records from the source. When the source
	// is unreachable or malformed the whole call fails; extractors never
	// return partial results alongside an error.
	Extract(ctx context.Context) ([]models.Opinion, error)
}
