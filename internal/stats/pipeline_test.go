package stats

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-market-portal/internal/models"
)

// fakeStore backs the pipeline with in-memory tables
type fakeStore struct {
	models    []models.WatchModel
	listings  []models.Listing
	snapshots []models.ListingSnapshot

	stats       map[string]models.ModelDailyStat
	upsertCalls int
	failFetch   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{stats: make(map[string]models.ModelDailyStat)}
}

func (f *fakeStore) ModelsByBrand(brand string) ([]models.WatchModel, error) {
	if f.failFetch {
		return nil, errors.New("connection refused")
	}
	var result []models.WatchModel
	for _, m := range f.models {
		if m.Brand == brand {
			result = append(result, m)
		}
	}
	return result, nil
}

func (f *fakeStore) ListingsByModelIDs(ids []int64) ([]models.Listing, error) {
	wanted := make(map[int64]bool)
	for _, id := range ids {
		wanted[id] = true
	}
	var result []models.Listing
	for _, l := range f.listings {
		if wanted[l.ModelID] {
			result = append(result, l)
		}
	}
	return result, nil
}

func (f *fakeStore) SnapshotsByListingIDsAndDate(ids []int64, day time.Time) ([]models.ListingSnapshot, error) {
	wanted := make(map[int64]bool)
	for _, id := range ids {
		wanted[id] = true
	}
	var result []models.ListingSnapshot
	for _, s := range f.snapshots {
		if wanted[s.ListingID] && s.CapturedDate.Format(models.DateLayout) == day.Format(models.DateLayout) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeStore) UpsertDailyStats(rows []models.ModelDailyStat) (int, error) {
	f.upsertCalls++
	for _, row := range rows {
		key := fmt.Sprintf("%d/%s", row.ModelID, row.CapturedDate.Format(models.DateLayout))
		f.stats[key] = row
	}
	return len(rows), nil
}

func seedStore() *fakeStore {
	store := newFakeStore()
	store.models = []models.WatchModel{
		{ID: 1, Brand: "rolex", ModelName: "Submariner Date", MSRP: fptr(10000)},
		{ID: 2, Brand: "rolex", ModelName: "Datejust 41", MSRP: fptr(9000)},
		{ID: 3, Brand: "rolex", ModelName: "Day-Date 40"}, // listings but no priced snapshot
	}
	store.listings = []models.Listing{
		{ID: 11, ModelID: 1, URL: "https://market.example/sub-1"},
		{ID: 12, ModelID: 1, URL: "https://market.example/sub-2"},
		{ID: 21, ModelID: 2, URL: "https://market.example/dj-1"},
		{ID: 31, ModelID: 3, URL: "https://market.example/dd-1"},
	}
	target := day("2024-06-01")
	store.snapshots = []models.ListingSnapshot{
		{ListingID: 11, CapturedDate: target, PriceValue: fptr(13000), AvailabilityFlag: false},
		{ListingID: 12, CapturedDate: target, PriceValue: fptr(14000), AvailabilityFlag: true},
		{ListingID: 21, CapturedDate: target, PriceValue: fptr(9100), AvailabilityFlag: true},
		{ListingID: 31, CapturedDate: target, PriceValue: nil, AvailabilityFlag: true},
	}
	return store
}

func TestPipelineRun_ScoresAndPersists(t *testing.T) {
	store := seedStore()
	written, err := NewPipeline(store).Run("rolex", day("2024-06-01"))

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	require.Len(t, store.stats, 2)

	sub := store.stats["1/2024-06-01"]
	assert.Equal(t, 13500.0, sub.MedianPrice)
	assert.Equal(t, 2, sub.ListingsCount)
	require.NotNil(t, sub.PremiumOverMSRP)
	assert.Equal(t, 0.35, *sub.PremiumOverMSRP)
	assert.Equal(t, 0.5, sub.SoldRateProxy)

	// Day-Date had no priced snapshot: silently excluded, never zero-filled
	_, exists := store.stats["3/2024-06-01"]
	assert.False(t, exists)
}

func TestPipelineRun_EmptyScopeIsNotAnError(t *testing.T) {
	target := day("2024-06-01")

	// No models for the brand
	store := newFakeStore()
	written, err := NewPipeline(store).Run("tudor", target)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, store.upsertCalls)

	// Models but no listings
	store = newFakeStore()
	store.models = []models.WatchModel{{ID: 1, Brand: "rolex"}}
	written, err = NewPipeline(store).Run("rolex", target)
	require.NoError(t, err)
	assert.Zero(t, written)

	// Listings but no snapshots for the date
	store = seedStore()
	written, err = NewPipeline(store).Run("rolex", day("2030-01-01"))
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, store.upsertCalls)
}

func TestPipelineRun_FetchFailureAborts(t *testing.T) {
	store := seedStore()
	store.failFetch = true

	_, err := NewPipeline(store).Run("rolex", day("2024-06-01"))
	require.Error(t, err)
	assert.Zero(t, store.upsertCalls)
}

func TestPipelineRun_Idempotent(t *testing.T) {
	store := seedStore()
	pipeline := NewPipeline(store)
	target := day("2024-06-01")

	written, err := pipeline.Run("rolex", target)
	require.NoError(t, err)
	first := make(map[string]models.ModelDailyStat, len(store.stats))
	for k, v := range store.stats {
		first[k] = v
	}

	writtenAgain, err := pipeline.Run("rolex", target)
	require.NoError(t, err)

	assert.Equal(t, written, writtenAgain)
	assert.Equal(t, len(first), len(store.stats))
	for key, row := range store.stats {
		assert.Equal(t, first[key], row, "row %s changed across reruns", key)
	}
}

// weightSensitiveStore builds a batch whose features are not perfectly
// correlated, so different weight policies produce different indexes: one
// model leads on premium, the other on scarcity and velocity.
func weightSensitiveStore() *fakeStore {
	store := newFakeStore()
	store.models = []models.WatchModel{
		{ID: 1, Brand: "rolex", ModelName: "Explorer 40", MSRP: fptr(10000)},
		{ID: 2, Brand: "rolex", ModelName: "Air-King", MSRP: fptr(10000)},
	}
	store.listings = []models.Listing{
		{ID: 11, ModelID: 1, URL: "https://market.example/exp-1"},
		{ID: 21, ModelID: 2, URL: "https://market.example/ak-1"},
	}
	target := day("2024-06-01")
	store.snapshots = []models.ListingSnapshot{
		{ListingID: 11, CapturedDate: target, PriceValue: fptr(15000), AvailabilityFlag: true},
		{ListingID: 21, CapturedDate: target, PriceValue: fptr(10000), AvailabilityFlag: false},
	}
	return store
}

func TestPipelineRun_ConfiguredWeightsApplyOnEverySurface(t *testing.T) {
	// Runs built from the same configured weights must persist identical
	// rows no matter which entry point constructed the pipeline, and those
	// rows must reflect the configuration rather than the defaults.
	configured := WeightsOrDefault(0.8, 0.1, 0.1)
	target := day("2024-06-01")

	cliStore := weightSensitiveStore()
	_, err := NewPipelineWithWeights(cliStore, configured).Run("rolex", target)
	require.NoError(t, err)

	adminStore := weightSensitiveStore()
	_, err = NewPipelineWithWeights(adminStore, configured).Run("rolex", target)
	require.NoError(t, err)

	require.Equal(t, len(cliStore.stats), len(adminStore.stats))
	for key, row := range cliStore.stats {
		assert.Equal(t, row, adminStore.stats[key], "row %s differs between surfaces", key)
	}

	defaultStore := weightSensitiveStore()
	_, err = NewPipeline(defaultStore).Run("rolex", target)
	require.NoError(t, err)

	// Model 1 leads only on premium: 0.8 under the configured weights,
	// 0.45 under the defaults.
	assert.Equal(t, 0.8, cliStore.stats["1/2024-06-01"].WaitTimeIndex)
	assert.Equal(t, 0.45, defaultStore.stats["1/2024-06-01"].WaitTimeIndex)
}

func TestPipelineWithWeights(t *testing.T) {
	store := seedStore()
	// Zero weights collapse every index to 0 regardless of the features
	pipeline := NewPipelineWithWeights(store, Weights{})

	_, err := pipeline.Run("rolex", day("2024-06-01"))
	require.NoError(t, err)
	for _, row := range store.stats {
		assert.Equal(t, 0.0, row.WaitTimeIndex)
		assert.Equal(t, BandShortest, row.WaitBand)
	}
}
