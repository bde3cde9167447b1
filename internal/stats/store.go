package stats

import (
	"time"

	"watch-market-portal/internal/models"
)

// Store is the data-access contract the pipeline consumes. Fetches are
// batched at the coarsest useful granularity: one round trip per step,
// never one per model. Both database backends satisfy it.
type Store interface {
	ModelsByBrand(brand string) ([]models.WatchModel, error)
	ListingsByModelIDs(ids []int64) ([]models.Listing, error)
	SnapshotsByListingIDsAndDate(ids []int64, day time.Time) ([]models.ListingSnapshot, error)
	UpsertDailyStats(rows []models.ModelDailyStat) (int, error)
}
