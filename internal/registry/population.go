package registry

import (
	"log/slog"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// PopulationSource says where a population figure came from.
type PopulationSource string

const (
	PopulationReported PopulationSource = "reported"
	PopulationOverride PopulationSource = "override"
	PopulationFallback PopulationSource = "fallback"
)

// PopulationTable maps country locations to a population. Missing figures
// never fail a run: an override is used, else the global fallback average.
type PopulationTable struct {
	overrides map[string]int64
	fallback  int64
	logger    *slog.Logger

	values  map[domain.Location]int64
	sources map[domain.Location]PopulationSource
}

// NewPopulationTable creates an empty table using the registry's overrides.
func NewPopulationTable(o *Overrides, logger *slog.Logger) *PopulationTable {
	return &PopulationTable{
		overrides: o.Populations,
		fallback:  o.FallbackPopulation,
		logger:    logger,
		values:    make(map[domain.Location]int64),
		sources:   make(map[domain.Location]PopulationSource),
	}
}

// Observe records the figure a provider reported for loc; zero means none.
// A reported value always wins over an override or fallback seen earlier.
func (p *PopulationTable) Observe(loc domain.Location, reported int64) PopulationSource {
	if reported > 0 {
		p.values[loc] = reported
		p.sources[loc] = PopulationReported
		return PopulationReported
	}
	if src, ok := p.sources[loc]; ok {
		return src
	}
	if v, ok := p.overrides[loc.Code]; ok {
		p.values[loc] = v
		p.sources[loc] = PopulationOverride
		return PopulationOverride
	}
	p.logger.Warn("unknown population, using average", "code", loc.Code, "fallback", p.fallback)
	p.values[loc] = p.fallback
	p.sources[loc] = PopulationFallback
	return PopulationFallback
}

// Get returns the population of loc.
func (p *PopulationTable) Get(loc domain.Location) (int64, bool) {
	v, ok := p.values[loc]
	return v, ok
}

// Len is the number of countries with a figure.
func (p *PopulationTable) Len() int { return len(p.values) }

// ByName keys the table by display name for export.
func (p *PopulationTable) ByName(r *Registry) map[string]int64 {
	out := make(map[string]int64, len(p.values))
	for loc, v := range p.values {
		out[r.DisplayName(loc)] = v
	}
	return out
}
