package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// DefaultBatchSize keeps each BulkAddCafes payload well under Temporal's
// blob limit.
const DefaultBatchSize = 200

// ImportInput selects which open cafes to copy. Empty Query and IDs import
// everything in the area.
type ImportInput struct {
	Query     string
	IDs       []string
	BatchSize int
}

// BulkImportWorkflow fetches open cafes and stores them in batches. The
// result sums every batch; a failed batch stops the run and keeps what the
// earlier batches stored.
func BulkImportWorkflow(ctx workflow.Context, input ImportInput) (domain.BulkResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting bulk import", "query", input.Query, "ids", len(input.IDs))

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 5,
		},
	})
	storeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var cafes []domain.Cafe
	if err := workflow.ExecuteActivity(fetchCtx, "FetchOpenCafes", input).Get(ctx, &cafes); err != nil {
		return domain.BulkResult{}, err
	}

	size := input.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var total domain.BulkResult
	for start := 0; start < len(cafes); start += size {
		batch := cafes[start:min(start+size, len(cafes))]

		var res domain.BulkResult
		if err := workflow.ExecuteActivity(storeCtx, "BulkAddCafes", batch).Get(ctx, &res); err != nil {
			logger.Warn("import batch failed", "offset", start, "error", err)
			return total, err
		}
		total.Added += res.Added
		total.Skipped += res.Skipped
		total.Total += res.Total
	}

	logger.Info("Bulk import finished", "added", total.Added, "skipped", total.Skipped)
	return total, nil
}
