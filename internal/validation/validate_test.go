package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-market-portal/internal/models"
)

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func fptr(v float64) *float64 { return &v }

// fakeStore backs the engine with in-memory tables
type fakeStore struct {
	models    []models.WatchModel
	listings  []models.Listing
	snapshots []models.ListingSnapshot
	present   map[int64]bool
}

func (f *fakeStore) ModelsByBrand(brand string) ([]models.WatchModel, error) {
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

func (f *fakeStore) SnapshotsByListingIDsAndDates(ids []int64, days []time.Time) ([]models.ListingSnapshot, error) {
	wantedID := make(map[int64]bool)
	for _, id := range ids {
		wantedID[id] = true
	}
	wantedDay := make(map[string]bool)
	for _, d := range days {
		wantedDay[d.Format(models.DateLayout)] = true
	}
	var result []models.ListingSnapshot
	for _, s := range f.snapshots {
		if wantedID[s.ListingID] && wantedDay[s.CapturedDate.Format(models.DateLayout)] {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeStore) DailyStatsPresence(ids []int64, dayArg time.Time) (map[int64]bool, error) {
	present := make(map[int64]bool)
	for _, id := range ids {
		if f.present[id] {
			present[id] = true
		}
	}
	return present, nil
}

func TestCheckDuplicateURLs(t *testing.T) {
	listings := []models.Listing{
		{ID: 1, URL: "https://market.example/a"},
		{ID: 2, URL: "https://market.example/a"},
		{ID: 3, URL: "https://market.example/b"},
		{ID: 4, URL: "  https://market.example/a  "}, // trimmed before grouping
		{ID: 5, URL: ""},
		{ID: 6, URL: "   "}, // blank URLs are ignored
	}

	count, examples := checkDuplicateURLs(listings)
	assert.Equal(t, 1, count)
	require.Len(t, examples, 1)
	assert.Equal(t, "https://market.example/a", examples[0].URL)
	assert.Equal(t, 3, examples[0].Count)
}

func TestCheckDuplicateURLs_TopTenByCount(t *testing.T) {
	var listings []models.Listing
	// 12 duplicate groups with counts 2..13
	for group := 0; group < 12; group++ {
		url := "https://market.example/dup-" + string(rune('a'+group))
		for i := 0; i < group+2; i++ {
			listings = append(listings, models.Listing{URL: url})
		}
	}

	count, examples := checkDuplicateURLs(listings)
	assert.Equal(t, 12, count)
	require.Len(t, examples, 10)
	assert.Equal(t, 13, examples[0].Count)
	for i := 1; i < len(examples); i++ {
		assert.GreaterOrEqual(t, examples[i-1].Count, examples[i].Count)
	}
}

func TestCheckMissingStats(t *testing.T) {
	count, missing := checkMissingStats([]int64{5, 3, 1, 4, 2}, map[int64]bool{3: true, 4: true})
	assert.Equal(t, 3, count)
	assert.Equal(t, []int64{1, 2, 5}, missing)

	count, missing = checkMissingStats([]int64{1, 2}, map[int64]bool{1: true, 2: true})
	assert.Zero(t, count)
	assert.Empty(t, missing)
}

func TestPriceAnomalies_ThresholdIsStrict(t *testing.T) {
	target := day("2024-06-01")
	prev := day("2024-05-31")
	store := &fakeStore{
		models:   []models.WatchModel{{ID: 1, Brand: "rolex"}},
		listings: []models.Listing{{ID: 11, ModelID: 1, URL: "https://market.example/a"}, {ID: 12, ModelID: 1, URL: "https://market.example/b"}},
		snapshots: []models.ListingSnapshot{
			{ListingID: 11, CapturedDate: prev, PriceValue: fptr(100)},
			{ListingID: 11, CapturedDate: target, PriceValue: fptr(130)}, // 30% jump, flagged
			{ListingID: 12, CapturedDate: prev, PriceValue: fptr(100)},
			{ListingID: 12, CapturedDate: target, PriceValue: fptr(120)}, // 20% jump, below threshold
		},
		present: map[int64]bool{1: true},
	}

	report, err := NewEngine(store).Run("rolex", target, 25.0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AnomalyCount)
	require.Len(t, report.AnomalyExamples, 1)
	anomaly := report.AnomalyExamples[0]
	assert.Equal(t, int64(11), anomaly.ListingID)
	assert.Equal(t, 100.0, anomaly.PrevPrice)
	assert.Equal(t, 130.0, anomaly.CurrPrice)
	assert.Equal(t, 30.0, anomaly.PctJump)
}

func TestPriceAnomalies_SkipsUnpairedAndNonPositive(t *testing.T) {
	target := day("2024-06-01")
	prev := day("2024-05-31")
	store := &fakeStore{
		models: []models.WatchModel{{ID: 1, Brand: "rolex"}},
		listings: []models.Listing{
			{ID: 11, ModelID: 1, URL: "https://market.example/a"},
			{ID: 12, ModelID: 1, URL: "https://market.example/b"},
			{ID: 13, ModelID: 1, URL: "https://market.example/c"},
		},
		snapshots: []models.ListingSnapshot{
			{ListingID: 11, CapturedDate: target, PriceValue: fptr(500)}, // no prior day
			{ListingID: 12, CapturedDate: prev, PriceValue: fptr(0)},     // prior price <= 0
			{ListingID: 12, CapturedDate: target, PriceValue: fptr(900)},
			{ListingID: 13, CapturedDate: prev, PriceValue: fptr(200)}, // no current day
		},
		present: map[int64]bool{1: true},
	}

	report, err := NewEngine(store).Run("rolex", target, 25.0)
	require.NoError(t, err)
	assert.Zero(t, report.AnomalyCount)
	assert.Empty(t, report.AnomalyExamples)
}

func TestEngineRun_CombinedReport(t *testing.T) {
	target := day("2024-06-01")
	store := &fakeStore{
		models: []models.WatchModel{
			{ID: 1, Brand: "rolex"},
			{ID: 2, Brand: "rolex"},
			{ID: 3, Brand: "rolex"},
			{ID: 9, Brand: "omega"}, // out of scope
		},
		listings: []models.Listing{
			{ID: 11, ModelID: 1, URL: "https://market.example/a"},
			{ID: 12, ModelID: 2, URL: "https://market.example/a"},
		},
		present: map[int64]bool{1: true, 9: true},
	}

	report, err := NewEngine(store).Run("rolex", target, 25.0)
	require.NoError(t, err)

	assert.Equal(t, "rolex", report.Brand)
	assert.Equal(t, "2024-06-01", report.CapturedDate)
	assert.Equal(t, 25.0, report.AnomalyThresholdPct)

	assert.Equal(t, 1, report.DuplicateURLCount)
	assert.Equal(t, 2, report.MissingStatsCount)
	assert.Equal(t, []int64{2, 3}, report.MissingStatsIDs)
	assert.Zero(t, report.AnomalyCount)
}
