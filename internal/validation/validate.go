package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"watch-market-portal/internal/models"
)

const maxExamples = 10

// Store is the data-access contract the validation engine consumes. It is a
// subset of what the database backends already provide.
type Store interface {
	ModelsByBrand(brand string) ([]models.WatchModel, error)
	ListingsByModelIDs(ids []int64) ([]models.Listing, error)
	SnapshotsByListingIDsAndDates(ids []int64, days []time.Time) ([]models.ListingSnapshot, error)
	DailyStatsPresence(ids []int64, day time.Time) (map[int64]bool, error)
}

// Report is the combined result of one audit pass over a (brand, date)
// window. It is ephemeral: built, rendered, never persisted.
type Report struct {
	CapturedDate        string         `json:"captured_date"`
	Brand               string         `json:"brand"`
	AnomalyThresholdPct float64        `json:"anomaly_threshold_pct"`
	AnomalyCount        int            `json:"anomaly_count"`
	AnomalyExamples     []PriceAnomaly `json:"anomaly_examples"`
	MissingStatsCount   int            `json:"missing_stats_count"`
	MissingStatsIDs     []int64        `json:"missing_stats_model_ids"`
	DuplicateURLCount   int            `json:"duplicate_url_count"`
	DuplicateURLSamples []DuplicateURL `json:"duplicate_url_examples"`
}

// DuplicateURL is one group of listings sharing the same source URL
type DuplicateURL struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// PriceAnomaly is one listing whose price jumped day-over-day beyond the
// threshold
type PriceAnomaly struct {
	ListingID int64   `json:"listing_id"`
	PrevPrice float64 `json:"prev_price"`
	CurrPrice float64 `json:"curr_price"`
	PctJump   float64 `json:"pct_jump"`
}

// Engine audits the observation window independently of the stats pipeline
type Engine struct {
	store Store
}

// NewEngine creates a validation engine
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Run executes the three checks for (brand, day) and combines their results.
// The checks are independent: each reads its own slice of the window.
func (e *Engine) Run(brand string, day time.Time, thresholdPct float64) (*Report, error) {
	watchModels, err := e.store.ModelsByBrand(brand)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models for brand %s: %w", brand, err)
	}
	modelIDs := make([]int64, len(watchModels))
	for i, m := range watchModels {
		modelIDs[i] = m.ID
	}

	listings, err := e.store.ListingsByModelIDs(modelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	duplicateCount, duplicateExamples := checkDuplicateURLs(listings)

	present, err := e.store.DailyStatsPresence(modelIDs, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily stats presence: %w", err)
	}
	missingCount, missingIDs := checkMissingStats(modelIDs, present)

	anomalyCount, anomalyExamples, err := e.checkPriceAnomalies(listings, day, thresholdPct)
	if err != nil {
		return nil, err
	}

	return &Report{
		CapturedDate:        day.Format(models.DateLayout),
		Brand:               brand,
		AnomalyThresholdPct: thresholdPct,
		AnomalyCount:        anomalyCount,
		AnomalyExamples:     anomalyExamples,
		MissingStatsCount:   missingCount,
		MissingStatsIDs:     missingIDs,
		DuplicateURLCount:   duplicateCount,
		DuplicateURLSamples: duplicateExamples,
	}, nil
}

// checkDuplicateURLs groups listings by trimmed URL text and reports every
// URL occurring more than once. Empty URLs are ignored.
func checkDuplicateURLs(listings []models.Listing) (int, []DuplicateURL) {
	seen := make(map[string]int)
	for _, l := range listings {
		url := strings.TrimSpace(l.URL)
		if url == "" {
			continue
		}
		seen[url]++
	}

	var duplicates []DuplicateURL
	for url, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, DuplicateURL{URL: url, Count: count})
		}
	}
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].Count > duplicates[j].Count
	})

	total := len(duplicates)
	if len(duplicates) > maxExamples {
		duplicates = duplicates[:maxExamples]
	}
	return total, duplicates
}

// checkMissingStats reports every model id without a daily stat row for the
// date, sorted ascending.
func checkMissingStats(modelIDs []int64, present map[int64]bool) (int, []int64) {
	var missing []int64
	for _, id := range modelIDs {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return len(missing), missing
}

// checkPriceAnomalies compares each listing's price on the date against the
// prior calendar day. Both days are fetched in one round trip. Pairs missing
// either side, or with a prior price <= 0, are skipped.
func (e *Engine) checkPriceAnomalies(listings []models.Listing, day time.Time, thresholdPct float64) (int, []PriceAnomaly, error) {
	if len(listings) == 0 {
		return 0, nil, nil
	}

	listingIDs := make([]int64, len(listings))
	for i, l := range listings {
		listingIDs[i] = l.ID
	}

	prevDay := day.AddDate(0, 0, -1)
	snapshots, err := e.store.SnapshotsByListingIDsAndDates(listingIDs, []time.Time{prevDay, day})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}

	currStr := day.Format(models.DateLayout)
	prevStr := prevDay.Format(models.DateLayout)

	prevPrices := make(map[int64]float64)
	currPrices := make(map[int64]float64)
	for _, s := range snapshots {
		if s.PriceValue == nil {
			continue
		}
		switch s.CapturedDate.Format(models.DateLayout) {
		case prevStr:
			prevPrices[s.ListingID] = *s.PriceValue
		case currStr:
			currPrices[s.ListingID] = *s.PriceValue
		}
	}

	var anomalies []PriceAnomaly
	for listingID, curr := range currPrices {
		prev, ok := prevPrices[listingID]
		if !ok || prev <= 0 {
			continue
		}
		pctJump := math.Abs(curr-prev) / prev * 100.0
		if pctJump > thresholdPct {
			anomalies = append(anomalies, PriceAnomaly{
				ListingID: listingID,
				PrevPrice: round2(prev),
				CurrPrice: round2(curr),
				PctJump:   round2(pctJump),
			})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].PctJump > anomalies[j].PctJump
	})

	total := len(anomalies)
	if len(anomalies) > maxExamples {
		anomalies = anomalies[:maxExamples]
	}
	return total, anomalies, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
