package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/core/usecases"
)

// ImportActivities copies open cafes into the custom store.
type ImportActivities struct {
	Source ports.CafeSource
	Custom *usecases.CustomCafeService
	Bounds domain.Bounds
}

// FetchOpenCafes pulls the open cafes inside the area, optionally filtered
// by query and restricted to ids. The built-in fallback list is never
// imported: an unreachable feed fails the attempt so Temporal retries it.
func (a *ImportActivities) FetchOpenCafes(ctx context.Context, input ImportInput) ([]domain.Cafe, error) {
	cafes := a.Source.FetchOpenCafes(ctx, a.Bounds, "")
	if len(cafes) > 0 && cafes[0].IsFallback() {
		return nil, errors.New("open cafe feed unreachable")
	}
	cafes = domain.FilterCafes(cafes, input.Query)

	if len(input.IDs) > 0 {
		want := make(map[string]bool, len(input.IDs))
		for _, id := range input.IDs {
			want[id] = true
		}
		picked := cafes[:0]
		for _, c := range cafes {
			if want[c.ID] {
				picked = append(picked, c)
			}
		}
		cafes = picked
	}

	activity.GetLogger(ctx).Info("fetched open cafes", "count", len(cafes), "query", input.Query)
	return cafes, nil
}

// BulkAddCafes stores one batch. A disabled store or a rejected batch is
// not retried.
func (a *ImportActivities) BulkAddCafes(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	res, err := a.Custom.BulkAdd(ctx, cafes)
	switch {
	case errors.Is(err, domain.ErrStoreDisabled), errors.Is(err, domain.ErrValidation):
		return domain.BulkResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "store", err)
	case err != nil:
		return domain.BulkResult{}, fmt.Errorf("bulk add: %w", err)
	}
	activity.GetLogger(ctx).Info("import batch stored", "added", res.Added, "skipped", res.Skipped)
	return res, nil
}
