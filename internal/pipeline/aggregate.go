package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// Aggregate writes one total per tier into every relative series. The total
// at each offset is the sum over all non-total locations of that tier. A
// precomputed total shipped by a source is replaced by the computed one.
func Aggregate(c *domain.Cube, logger *slog.Logger) {
	for _, m := range domain.Metrics {
		rel := c.Series(m, domain.RelationRelative)
		for _, tier := range domain.Tiers {
			sum, n := sumTier(rel, tier)
			if n == 0 {
				continue
			}
			total := domain.TotalFor(tier)
			if prev, err := rel.Values(total); err == nil && !equal(prev, sum) {
				logger.Warn("precomputed total disagrees with sum of locations, replacing",
					"metric", m, "tier", tier.String())
			}
			// sum has rel.Days() entries, so Set cannot fail.
			_ = rel.Set(total, sum)
		}
	}
}

func sumTier(rel *domain.Series, tier domain.Tier) ([]float64, int) {
	sum := make([]float64, rel.Days())
	var n int
	for _, loc := range rel.Locations() {
		if loc.Tier() != tier || loc.IsTotal() {
			continue
		}
		v, err := rel.Values(loc)
		if err != nil {
			continue
		}
		for i := range sum {
			sum[i] += v[i]
		}
		n++
	}
	return sum, n
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
