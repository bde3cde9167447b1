package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Nil(t, normalize(nil))
	assert.Equal(t, []float64{0, 0.5, 1}, normalize([]float64{10, 20, 30}))

	// Degenerate batches map every element to zero
	assert.Equal(t, []float64{0}, normalize([]float64{42}))
	assert.Equal(t, []float64{0, 0, 0}, normalize([]float64{5, 5, 5}))
}

func TestWaitBand_StrictThresholds(t *testing.T) {
	tests := []struct {
		index float64
		band  string
	}{
		{0.0, BandShortest},
		{0.2499, BandShortest},
		{0.25, BandShort}, // exact threshold falls into the band above
		{0.4499, BandShort},
		{0.45, BandMedium},
		{0.65, BandLong},
		{0.85, BandLongest},
		{1.0, BandLongest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, WaitBand(tt.index), "index %v", tt.index)
	}
}

func TestWeightsOrDefault(t *testing.T) {
	// All-zero means unset configuration, not a zero-weight policy
	assert.Equal(t, DefaultWeights(), WeightsOrDefault(0, 0, 0))

	custom := WeightsOrDefault(0.6, 0.2, 0.2)
	assert.Equal(t, Weights{Premium: 0.6, Scarcity: 0.2, Velocity: 0.2}, custom)

	// A single non-zero component is honored as given
	assert.Equal(t, Weights{Premium: 1.0}, WeightsOrDefault(1.0, 0, 0))
}

func TestScoreRows_SingleElementBatch(t *testing.T) {
	// A one-element batch is degenerate: every feature normalizes to 0 and
	// the index collapses to 0 in the shortest band.
	raws := []ModelDayRaw{{
		ModelID:           1,
		CapturedDate:      day("2024-06-01"),
		MedianPrice:       10000,
		ListingsCount:     3,
		SoldRateProxy:     0.5,
		AvailabilityRatio: 0.5,
		PremiumOverMSRP:   fptr(0.8),
	}}

	rows := ScoreRows(raws, DefaultWeights())
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].WaitTimeIndex)
	assert.Equal(t, BandShortest, rows[0].WaitBand)
}

func TestScoreRows_AllIdenticalBatch(t *testing.T) {
	raw := ModelDayRaw{
		ModelID:           1,
		CapturedDate:      day("2024-06-01"),
		MedianPrice:       12000,
		ListingsCount:     4,
		NewListingsCount:  1,
		SoldRateProxy:     0.25,
		AvailabilityRatio: 0.75,
		PremiumOverMSRP:   fptr(0.2),
	}
	second := raw
	second.ModelID = 2

	rows := ScoreRows([]ModelDayRaw{raw, second}, DefaultWeights())
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, 0.0, row.WaitTimeIndex)
		assert.Equal(t, BandShortest, row.WaitBand)
	}
}

func TestScoreRows_Monotonicity(t *testing.T) {
	// A has strictly higher premium and strictly lower availability than B,
	// so A must score a strictly higher wait-time index.
	a := ModelDayRaw{
		ModelID:           1,
		CapturedDate:      day("2024-06-01"),
		MedianPrice:       15000,
		ListingsCount:     4,
		SoldRateProxy:     0.75,
		AvailabilityRatio: 0.25,
		PremiumOverMSRP:   fptr(0.5),
	}
	b := ModelDayRaw{
		ModelID:           2,
		CapturedDate:      day("2024-06-01"),
		MedianPrice:       10000,
		ListingsCount:     4,
		SoldRateProxy:     0.25,
		AvailabilityRatio: 0.75,
		PremiumOverMSRP:   fptr(0.1),
	}

	rows := ScoreRows([]ModelDayRaw{a, b}, DefaultWeights())
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].WaitTimeIndex, rows[1].WaitTimeIndex)
}

func TestScoreRows_IndexBounded(t *testing.T) {
	raws := []ModelDayRaw{
		{ModelID: 1, SoldRateProxy: 1.0, AvailabilityRatio: 0.0, PremiumOverMSRP: fptr(3.0), ListingsCount: 2, NewListingsCount: 2},
		{ModelID: 2, SoldRateProxy: 0.0, AvailabilityRatio: 1.0, PremiumOverMSRP: fptr(-0.5), ListingsCount: 2},
	}

	for _, row := range ScoreRows(raws, DefaultWeights()) {
		assert.GreaterOrEqual(t, row.WaitTimeIndex, 0.0)
		assert.LessOrEqual(t, row.WaitTimeIndex, 1.0)
	}
}

func TestScoreRows_NilPremiumScalesAsZero(t *testing.T) {
	withPremium := ModelDayRaw{ModelID: 1, ListingsCount: 1, PremiumOverMSRP: fptr(0.4), AvailabilityRatio: 0.5, SoldRateProxy: 0.5}
	without := ModelDayRaw{ModelID: 2, ListingsCount: 1, AvailabilityRatio: 0.5, SoldRateProxy: 0.5}

	rows := ScoreRows([]ModelDayRaw{withPremium, without}, DefaultWeights())
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].PremiumOverMSRP)
	// premium_norm: 0.4 -> 1, substituted 0.0 -> 0
	assert.Greater(t, rows[0].WaitTimeIndex, rows[1].WaitTimeIndex)
}

func TestScoreRows_OutputRounding(t *testing.T) {
	raws := []ModelDayRaw{{
		ModelID:           1,
		CapturedDate:      day("2024-06-01"),
		MedianPrice:       10333.33333,
		ListingsCount:     3,
		SoldRateProxy:     1.0 / 3.0,
		AvailabilityRatio: 2.0 / 3.0,
		PremiumOverMSRP:   fptr(0.123456),
	}}

	rows := ScoreRows(raws, DefaultWeights())
	require.Len(t, rows, 1)
	assert.Equal(t, 10333.33, rows[0].MedianPrice)
	assert.Equal(t, 0.3333, rows[0].SoldRateProxy)
	require.NotNil(t, rows[0].PremiumOverMSRP)
	assert.Equal(t, 0.1235, *rows[0].PremiumOverMSRP)
}
