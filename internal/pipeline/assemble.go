package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// Snapshot is the live feed's cumulative totals per location.
type Snapshot map[domain.Location]map[domain.Metric]int64

// Assembler accumulates per-location daily deltas into a cube and reconciles
// the live snapshot against them.
type Assembler struct {
	cube   *domain.Cube
	logger *slog.Logger
}

// NewAssembler creates an assembler over an empty cube.
func NewAssembler(axis domain.DateAxis, logger *slog.Logger) *Assembler {
	return &Assembler{cube: domain.NewCube(axis), logger: logger}
}

// Cube returns the cube being assembled.
func (a *Assembler) Cube() *domain.Cube { return a.cube }

// AddDeltas sums delta observations into the relative series.
func (a *Assembler) AddDeltas(obs []domain.Observation) error {
	for _, o := range obs {
		if o.Kind != domain.KindDelta {
			return fmt.Errorf("add deltas: %s observation for %s", o.Kind, o.Location)
		}
		if !a.cube.Axis.Contains(o.Offset) {
			return fmt.Errorf("add deltas: %s offset %d: %w", o.Location, o.Offset, domain.ErrOffsetOutOfRange)
		}
		a.cube.Series(o.Metric, domain.RelationRelative).Touch(o.Location)[o.Offset] += float64(o.Value)
	}
	return nil
}

// AddCumulative converts running totals into deltas. For each location the
// last reported total on a day wins, days without a report carry the previous
// total forward, and the delta at offset i is total[i] - total[i-1] for i > 0.
// Offset 0 has no prior day and stays zero.
func (a *Assembler) AddCumulative(obs []domain.Observation) error {
	days := a.cube.Axis.Days
	type key struct {
		loc    domain.Location
		metric domain.Metric
	}
	totals := make(map[key][]float64)
	seen := make(map[key][]bool)

	for _, o := range obs {
		if o.Kind != domain.KindCumulative {
			return fmt.Errorf("add cumulative: %s observation for %s", o.Kind, o.Location)
		}
		if !a.cube.Axis.Contains(o.Offset) {
			return fmt.Errorf("add cumulative: %s offset %d: %w", o.Location, o.Offset, domain.ErrOffsetOutOfRange)
		}
		k := key{loc: o.Location, metric: o.Metric}
		if _, ok := totals[k]; !ok {
			totals[k] = make([]float64, days)
			seen[k] = make([]bool, days)
		}
		totals[k][o.Offset] = float64(o.Value)
		seen[k][o.Offset] = true
	}

	for k, total := range totals {
		for i := 1; i < days; i++ {
			if !seen[k][i] {
				total[i] = total[i-1]
			}
		}
		rel := a.cube.Series(k.metric, domain.RelationRelative).Touch(k.loc)
		for i := 1; i < days; i++ {
			rel[i] += total[i] - total[i-1]
		}
	}
	return nil
}

// BuildSnapshot groups live observations by location. Entries resolving to
// the same location are summed.
func BuildSnapshot(obs []domain.Observation) Snapshot {
	s := make(Snapshot)
	for _, o := range obs {
		m, ok := s[o.Location]
		if !ok {
			m = make(map[domain.Metric]int64, len(domain.Metrics))
			s[o.Location] = m
		}
		m[o.Metric] += o.Value
	}
	return s
}

// MergeCombined folds each missing entity's totals into its target and
// removes the missing entry. Pairs whose missing entity is absent are skipped.
func MergeCombined(s Snapshot, combined map[domain.Location]domain.Location, logger *slog.Logger) {
	for missing, target := range combined {
		counts, ok := s[missing]
		if !ok {
			continue
		}
		t, ok := s[target]
		if !ok {
			t = make(map[domain.Metric]int64, len(counts))
			s[target] = t
		}
		for m, v := range counts {
			t[m] += v
		}
		delete(s, missing)
		logger.Debug("merged combined entity", "missing", missing.Key(), "target", target.Key())
	}
}

// ReconcileLive sets the final day's delta so that the relative series sums
// to the live cumulative total. A negative catch-up value is kept as-is.
func (a *Assembler) ReconcileLive(s Snapshot) {
	last := a.cube.Axis.Last()
	for loc, counts := range s {
		for _, m := range domain.Metrics {
			total, ok := counts[m]
			if !ok {
				continue
			}
			rel := a.cube.Series(m, domain.RelationRelative).Touch(loc)
			var prior float64
			for _, v := range rel[:last] {
				prior += v
			}
			rel[last] = float64(total) - prior
			if rel[last] < 0 {
				a.logger.Debug("live total below historical trail", "location", loc.Key(), "metric", m, "delta", rel[last])
			}
		}
	}
}
