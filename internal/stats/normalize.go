package stats

// normalize min-max scales values across the cross-sectional batch for one
// date. When max equals min (single-element batch or all-identical values)
// every element maps to 0.0: a degenerate batch is maximally
// indistinguishable, not an error.
func normalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	low, high := values[0], values[0]
	for _, v := range values[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}

	result := make([]float64, len(values))
	if high == low {
		return result
	}
	for i, v := range values {
		result[i] = (v - low) / (high - low)
	}
	return result
}
