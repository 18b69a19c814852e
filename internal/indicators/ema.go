package indicators

// emaSeries computes an exponential moving average over a series that may
// contain undefined values. Undefined inputs are skipped; the first defined
// output is the simple average of the first period defined inputs, placed at
// the position of the last of them, and later outputs follow
// ema = prev + k*(x - prev) with k = 2/(period+1).
func emaSeries(values []*float64, period int) []*float64 {
	out := make([]*float64, len(values))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	var (
		seeded bool
		prev   float64
		sum    float64
		seen   int
	)
	for i, v := range values {
		if v == nil {
			continue
		}
		if !seeded {
			sum += *v
			seen++
			if seen < period {
				continue
			}
			prev = sum / float64(period)
			seeded = true
		} else {
			prev += k * (*v - prev)
		}
		ema := prev
		out[i] = &ema
	}
	return out
}

// toOptional lifts a plain float series into the optional representation
// shared by the smoothing helpers.
func toOptional(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}
