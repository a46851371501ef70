package pipeline

import (
	"math"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// Derive fills the absolute and growth series of every location from its
// relative series.
func Derive(c *domain.Cube) {
	for _, m := range domain.Metrics {
		rel := c.Series(m, domain.RelationRelative)
		abs := c.Series(m, domain.RelationAbsolute)
		grw := c.Series(m, domain.RelationGrowth)

		for _, loc := range rel.Locations() {
			v, _ := rel.Values(loc)
			_ = abs.Set(loc, RunningSum(v))
			_ = grw.Set(loc, Growth(v))
		}
	}
}

// RunningSum returns out[i] = v[0] + ... + v[i].
func RunningSum(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		sum += x
		out[i] = sum
	}
	return out
}

// Growth returns the ratio of each delta to the previous one, rounded to two
// decimals with ties to even. The first value and any value following a zero
// delta are 0.
func Growth(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := 1; i < len(v); i++ {
		if v[i-1] == 0 {
			continue
		}
		out[i] = round2(v[i] / v[i-1])
	}
	return out
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
