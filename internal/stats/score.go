package stats

import (
	"math"

	"watch-market-portal/internal/models"
)

// Weights are the composite scoring weights for the wait-time index.
type Weights struct {
	Premium  float64
	Scarcity float64
	Velocity float64
}

// DefaultWeights returns the documented default scoring weights.
func DefaultWeights() Weights {
	return Weights{Premium: 0.45, Scarcity: 0.30, Velocity: 0.25}
}

// WeightsOrDefault returns the given weights, falling back to the defaults
// when all three are zero (unset configuration). Every surface that builds
// a pipeline from configuration resolves its weights here so a rerun
// produces the same rows regardless of which surface triggered it.
func WeightsOrDefault(premium, scarcity, velocity float64) Weights {
	if premium == 0 && scarcity == 0 && velocity == 0 {
		return DefaultWeights()
	}
	return Weights{Premium: premium, Scarcity: scarcity, Velocity: velocity}
}

// Wait band labels, shortest implied wait first. Thresholds are fixed policy,
// not configuration.
const (
	BandShortest = "0-6 months"
	BandShort    = "6-18 months"
	BandMedium   = "18 months-3 years"
	BandLong     = "3-5 years"
	BandLongest  = "5-8+ years"
)

// WaitBand maps a wait-time index to its ordinal band. Comparisons are strict
// less-than against each band's upper bound, ascending, so an index sitting
// exactly on a threshold falls into the band above it.
func WaitBand(index float64) string {
	switch {
	case index < 0.25:
		return BandShortest
	case index < 0.45:
		return BandShort
	case index < 0.65:
		return BandMedium
	case index < 0.85:
		return BandLong
	default:
		return BandLongest
	}
}

// ScoreRows normalizes the three features across the whole batch, combines
// them into the wait-time index and builds the output rows. Normalization is
// cross-sectional: it needs the full batch, never a single record.
func ScoreRows(raws []ModelDayRaw, w Weights) []models.ModelDailyStat {
	if len(raws) == 0 {
		return nil
	}

	premiums := make([]float64, len(raws))
	scarcity := make([]float64, len(raws))
	velocities := make([]float64, len(raws))
	for i, raw := range raws {
		if raw.PremiumOverMSRP != nil {
			premiums[i] = *raw.PremiumOverMSRP
		}
		// Inverted availability: scaling it directly equals 1-availability_norm
		// for any spread batch, and keeps a degenerate batch at index 0.
		scarcity[i] = 1.0 - raw.AvailabilityRatio

		// Velocity proxy combines sold pressure and new-listing churn
		churn := 0.0
		if raw.ListingsCount > 0 {
			churn = float64(raw.NewListingsCount) / float64(raw.ListingsCount)
		}
		velocities[i] = 0.6*raw.SoldRateProxy + 0.4*churn
	}

	premiumNorm := normalize(premiums)
	scarcityNorm := normalize(scarcity)
	velocityNorm := normalize(velocities)

	rows := make([]models.ModelDailyStat, 0, len(raws))
	for i, raw := range raws {
		index := w.Premium*premiumNorm[i] + w.Scarcity*scarcityNorm[i] + w.Velocity*velocityNorm[i]
		// Hard invariant against floating-point overshoot
		index = math.Max(0.0, math.Min(1.0, index))

		var premium *float64
		if raw.PremiumOverMSRP != nil {
			p := round4(*raw.PremiumOverMSRP)
			premium = &p
		}

		rows = append(rows, models.ModelDailyStat{
			ModelID:          raw.ModelID,
			CapturedDate:     raw.CapturedDate,
			MedianPrice:      round2(raw.MedianPrice),
			ListingsCount:    raw.ListingsCount,
			NewListingsCount: raw.NewListingsCount,
			SoldRateProxy:    round4(raw.SoldRateProxy),
			PremiumOverMSRP:  premium,
			WaitTimeIndex:    round4(index),
			WaitBand:         WaitBand(index),
		})
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
