package domain

import (
	"fmt"
	"sort"
)

// Series maps each location to one value per day, indexed by day offset.
// Every slice has exactly Days() entries.
type Series struct {
	days   int
	values map[Location][]float64
}

// NewSeries creates an empty series over days slots.
func NewSeries(days int) *Series {
	return &Series{days: days, values: make(map[Location][]float64)}
}

// Days is the length of every per-location slice.
func (s *Series) Days() int { return s.days }

// Len is the number of locations.
func (s *Series) Len() int { return len(s.values) }

// Touch returns the slice for loc, creating a zeroed one on first use. It is
// meant for the accumulation phase only; later stages use Values.
func (s *Series) Touch(loc Location) []float64 {
	v, ok := s.values[loc]
	if !ok {
		v = make([]float64, s.days)
		s.values[loc] = v
	}
	return v
}

// Values returns the slice for loc or ErrUnknownLocation.
func (s *Series) Values(loc Location) ([]float64, error) {
	v, ok := s.values[loc]
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc, ErrUnknownLocation)
	}
	return v, nil
}

// Has reports whether loc has been accumulated.
func (s *Series) Has(loc Location) bool {
	_, ok := s.values[loc]
	return ok
}

// Set replaces the slice for loc. The slice must have Days() entries.
func (s *Series) Set(loc Location, v []float64) error {
	if len(v) != s.days {
		return fmt.Errorf("series for %s has %d days, want %d", loc, len(v), s.days)
	}
	s.values[loc] = v
	return nil
}

// Delete drops loc.
func (s *Series) Delete(loc Location) {
	delete(s.values, loc)
}

// Locations returns every location ordered by Key.
func (s *Series) Locations() []Location {
	locs := make([]Location, 0, len(s.values))
	for loc := range s.values {
		locs = append(locs, loc)
	}
	sortLocations(locs)
	return locs
}

// Window copies the [from, to) day range of the locations kept by keep.
func (s *Series) Window(from, to int, keep func(Location) bool) *Series {
	out := NewSeries(to - from)
	for loc, v := range s.values {
		if keep != nil && !keep(loc) {
			continue
		}
		w := make([]float64, to-from)
		copy(w, v[from:to])
		out.values[loc] = w
	}
	return out
}

func sortLocations(locs []Location) {
	sort.Slice(locs, func(i, j int) bool { return locs[i].Key() < locs[j].Key() })
}

// Cube holds one Series per (metric, relation) pair over a shared axis.
type Cube struct {
	Axis   DateAxis
	series map[Metric]map[Relation]*Series
}

// NewCube creates empty series for every metric and relation.
func NewCube(axis DateAxis) *Cube {
	c := &Cube{Axis: axis, series: make(map[Metric]map[Relation]*Series, len(Metrics))}
	for _, m := range Metrics {
		c.series[m] = make(map[Relation]*Series, len(Relations))
		for _, r := range Relations {
			c.series[m][r] = NewSeries(axis.Days)
		}
	}
	return c
}

// Series returns the series for (m, r).
func (c *Cube) Series(m Metric, r Relation) *Series {
	return c.series[m][r]
}

// Locations is the union of locations with a relative series, ordered by Key.
func (c *Cube) Locations() []Location {
	seen := make(map[Location]struct{})
	for _, m := range Metrics {
		for loc := range c.series[m][RelationRelative].values {
			seen[loc] = struct{}{}
		}
	}
	locs := make([]Location, 0, len(seen))
	for loc := range seen {
		locs = append(locs, loc)
	}
	sortLocations(locs)
	return locs
}

// Window returns a new cube restricted to [from, to) and to the kept
// locations. The axis is shifted to match.
func (c *Cube) Window(from, to int, keep func(Location) bool) *Cube {
	axis := c.Axis
	for i := 0; i < from; i++ {
		axis = axis.DropFirst()
	}
	for i := to; i < c.Axis.Days; i++ {
		axis = axis.DropLast()
	}
	out := &Cube{Axis: axis, series: make(map[Metric]map[Relation]*Series, len(Metrics))}
	for _, m := range Metrics {
		out.series[m] = make(map[Relation]*Series, len(Relations))
		for _, r := range Relations {
			out.series[m][r] = c.series[m][r].Window(from, to, keep)
		}
	}
	return out
}
