package stats

import (
	"sort"
	"time"

	"watch-market-portal/internal/models"
)

// defaultShippingDays stands in for "unknown delay" when no snapshot of the
// day carries both shipping bounds.
const defaultShippingDays = 7.0

// ModelDayRaw is the unscored feature record for one model on one date.
// All values are kept at full precision; rounding happens when the scored
// output rows are built.
type ModelDayRaw struct {
	ModelID          int64
	CapturedDate     time.Time
	MSRP             *float64
	MedianPrice      float64
	ListingsCount    int
	NewListingsCount int
	SoldRateProxy    float64
	PremiumOverMSRP  *float64
	AvailabilityRatio float64
	AvgShippingDays  float64
}

// AggregateModelDay reduces one model's listings and the day's snapshots into
// a raw feature record. It returns nil when the model has no listing with a
// priced snapshot on the date: the model is skipped for the day, not
// zero-filled.
//
// ListingsCount counts matched snapshots. Under the one-snapshot-per-listing-
// per-day invariant that equals the number of observed listings; the
// collector enforces the invariant on write.
func AggregateModelDay(modelID int64, msrp *float64, listings []models.Listing, snapshots []models.ListingSnapshot, day time.Time) *ModelDayRaw {
	if len(listings) == 0 {
		return nil
	}

	listingIDs := make(map[int64]bool, len(listings))
	for _, l := range listings {
		listingIDs[l.ID] = true
	}

	var matched []models.ListingSnapshot
	for _, s := range snapshots {
		if listingIDs[s.ListingID] {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	var prices []float64
	for _, s := range matched {
		if s.PriceValue != nil {
			prices = append(prices, *s.PriceValue)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	listingsCount := len(matched)
	availableCount := 0
	for _, s := range matched {
		if s.AvailabilityFlag {
			availableCount++
		}
	}
	availabilityRatio := float64(availableCount) / float64(listingsCount)

	// Unavailable listings proxy for sold-through inventory
	soldRateProxy := 1.0 - availabilityRatio

	dateStr := day.Format(models.DateLayout)
	newListings := 0
	for _, l := range listings {
		if !l.CreatedAt.IsZero() && l.CreatedAt.Format(models.DateLayout) == dateStr {
			newListings++
		}
	}

	var shippingValues []float64
	for _, s := range matched {
		if s.ShippingDaysMin != nil && s.ShippingDaysMax != nil {
			shippingValues = append(shippingValues, (float64(*s.ShippingDaysMin)+float64(*s.ShippingDaysMax))/2.0)
		}
	}
	avgShippingDays := defaultShippingDays
	if len(shippingValues) > 0 {
		sum := 0.0
		for _, v := range shippingValues {
			sum += v
		}
		avgShippingDays = sum / float64(len(shippingValues))
	}

	medianPrice := median(prices)

	var premium *float64
	if msrp != nil && *msrp > 0 {
		p := (medianPrice / *msrp) - 1.0
		premium = &p
	}

	return &ModelDayRaw{
		ModelID:           modelID,
		CapturedDate:      day,
		MSRP:              msrp,
		MedianPrice:       medianPrice,
		ListingsCount:     listingsCount,
		NewListingsCount:  newListings,
		SoldRateProxy:     soldRateProxy,
		PremiumOverMSRP:   premium,
		AvailabilityRatio: availabilityRatio,
		AvgShippingDays:   avgShippingDays,
	}
}

// median returns the statistical median: the middle value, or the average of
// the two middle values when the count is even.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
