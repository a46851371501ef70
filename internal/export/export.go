// Package export projects trimmed tier cubes into the JSON documents served
// to chart and map clients.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// Namer gives the display name of a location.
type Namer interface {
	DisplayName(loc domain.Location) string
}

// Selector decides whether a (metric, relation, location) triple is part of
// a view.
type Selector func(m domain.Metric, r domain.Relation, loc domain.Location) bool

// KeyFunc formats the document key of a location. Returning false leaves the
// location out.
type KeyFunc func(loc domain.Location) (string, bool)

// Projection is the filtered, keyed content of a cube.
type Projection map[domain.Metric]map[domain.Relation]map[string][]float64

// Project keeps the selected series of c and keys them with key. Two
// locations formatting to the same key are an error.
func Project(c *domain.Cube, sel Selector, key KeyFunc) (Projection, error) {
	out := make(Projection, len(domain.Metrics))
	for _, m := range domain.Metrics {
		for _, r := range domain.Relations {
			s := c.Series(m, r)
			for _, loc := range s.Locations() {
				if !sel(m, r, loc) {
					continue
				}
				k, ok := key(loc)
				if !ok {
					continue
				}
				if out[m] == nil {
					out[m] = make(map[domain.Relation]map[string][]float64, len(domain.Relations))
				}
				if out[m][r] == nil {
					out[m][r] = make(map[string][]float64)
				}
				if _, dup := out[m][r][k]; dup {
					return nil, fmt.Errorf("project %s/%s: key %q used by more than one location", m, r, k)
				}
				v, _ := s.Values(loc)
				out[m][r][k] = v
			}
		}
	}
	return out, nil
}

// All selects every series.
func All(domain.Metric, domain.Relation, domain.Location) bool { return true }

// Only selects one (metric, relation) pair and skips synthetic totals.
func Only(metric domain.Metric, relation domain.Relation) Selector {
	return func(m domain.Metric, r domain.Relation, loc domain.Location) bool {
		return m == metric && r == relation && !loc.IsTotal()
	}
}

// ByDisplayName keys locations by their human-readable name.
func ByDisplayName(n Namer) KeyFunc {
	return func(loc domain.Location) (string, bool) {
		return n.DisplayName(loc), true
	}
}

// MapKey returns the key map clients join geometry on: the ISO code for
// countries, the display name for states and the FIPS id for counties.
// Counties without a FIPS id cannot be placed and are skipped.
func MapKey(tier domain.Tier, n Namer) KeyFunc {
	return func(loc domain.Location) (string, bool) {
		switch tier {
		case domain.TierCounty:
			return loc.FIPS, loc.FIPS != ""
		case domain.TierState:
			return n.DisplayName(loc), true
		default:
			return loc.Code, true
		}
	}
}

// DateRange is the retained span of a tier.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

func rangeOf(axis domain.DateAxis) DateRange {
	return DateRange{
		Start: axis.Start,
		End:   axis.Start.Add(time.Duration(axis.Days-1) * domain.Day),
		Count: axis.Days,
	}
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
