package aggregate

import "math"

// NaN marks "no data" in every series smartem returns.
var NaN = math.NaN()

// IsMissing reports whether v is the no-data sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Coerce returns a copy of series with NaN replaced by v. It is the only place
// the sentinel is changed, and only display code calls it.
func Coerce(series []float64, v float64) []float64 {
	out := make([]float64, len(series))
	for i, x := range series {
		if math.IsNaN(x) {
			x = v
		}
		out[i] = x
	}
	return out
}

// Mean averages values, NaN when there are none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return NaN
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
