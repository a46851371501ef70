package pipeline

import (
	"fmt"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// TrimLeading drops offset 0. Its delta has no prior day, so it is reserved
// rather than derived from.
func TrimLeading(c *domain.Cube) (*domain.Cube, error) {
	if c.Axis.Days < 2 {
		return nil, fmt.Errorf("trim leading day: axis has %d days", c.Axis.Days)
	}
	return c.Window(1, c.Axis.Days, nil), nil
}

// SplitTiers partitions the cube into one cube per chart group. Country and
// meta locations keep every day; state and county series lose their final
// day, which sub-national sources have not fully reported yet.
func SplitTiers(c *domain.Cube) (map[domain.Tier]*domain.Cube, error) {
	out := make(map[domain.Tier]*domain.Cube, len(domain.Tiers))
	for _, tier := range domain.Tiers {
		keep := func(l domain.Location) bool { return l.Tier().Group() == tier }
		to := c.Axis.Days
		if tier == domain.TierState || tier == domain.TierCounty {
			to--
		}
		if to < 1 {
			return nil, fmt.Errorf("trim %s tier: axis has %d days", tier, c.Axis.Days)
		}
		out[tier] = c.Window(0, to, keep)
	}
	return out, nil
}
