// Package registry resolves raw provider identifiers into canonical
// locations and owns the override tables that make resolution work for
// irregular codes.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/biter777/countries"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// cacheKey is the raw identifier tuple a resolution was made for.
type cacheKey struct {
	code, geoID, name string
}

type cached struct {
	loc domain.Location
	ok  bool
}

// Registry resolves raw identifiers to Locations. One Registry is owned by a
// pipeline run and shared by every adapter; resolutions are cached so the
// same raw tuple always yields the identical Location.
type Registry struct {
	overrides *Overrides
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]cached
	subs  map[domain.Location]struct{}
}

// New creates a Registry over the given override tables.
func New(overrides *Overrides, logger *slog.Logger) *Registry {
	return &Registry{
		overrides: overrides,
		logger:    logger,
		cache:     make(map[cacheKey]cached),
		subs:      make(map[domain.Location]struct{}),
	}
}

// Overrides exposes the tables the registry was built with.
func (r *Registry) Overrides() *Overrides { return r.overrides }

// Resolve normalizes a country identifier. It returns false, after logging a
// warning, when no rule matches; callers drop that record.
func (r *Registry) Resolve(rawCode, rawGeoID, rawName string) (domain.Location, bool) {
	key := cacheKey{code: rawCode, geoID: rawGeoID, name: rawName}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[key]; ok {
		return c.loc, c.ok
	}

	code, ok := r.normalize(rawCode, rawGeoID, rawName)
	if !ok {
		r.logger.Warn("unresolved location, dropping record",
			"code", rawCode, "geo_id", rawGeoID, "name", rawName)
	}
	c := cached{ok: ok}
	if ok {
		c.loc = domain.Country(code)
	}
	r.cache[key] = c
	return c.loc, c.ok
}

// normalize applies the resolution rules in order: code overrides, alpha-3
// validation, alpha-2 lookup, geo id overrides, name overrides.
func (r *Registry) normalize(rawCode, rawGeoID, rawName string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))

	if c, ok := r.overrides.Codes[code]; ok && code != "" {
		return c, true
	}
	switch len(code) {
	case 3:
		if cc := countries.ByName(code); cc.IsValid() && cc.Alpha3() == code {
			return code, true
		}
	case 2:
		if cc := countries.ByName(code); cc.IsValid() && cc.Alpha2() == code {
			return cc.Alpha3(), true
		}
	}
	if c, ok := r.overrides.GeoIDs[strings.TrimSpace(rawGeoID)]; ok {
		return c, true
	}
	if c, ok := r.overrides.Names[normalizeName(rawName)]; ok {
		return c, true
	}
	return "", false
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// ResolveState builds a state location within the national scope.
func (r *Registry) ResolveState(state string) (domain.Location, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return domain.Location{}, fmt.Errorf("state name is empty")
	}
	loc := domain.Location{Code: r.nationalCode(), State: state}
	r.remember(loc)
	return loc, nil
}

// ResolveCounty builds a county location within the national scope.
func (r *Registry) ResolveCounty(state, county, fips string) (domain.Location, error) {
	state = strings.TrimSpace(state)
	county = strings.TrimSpace(county)
	if state == "" {
		return domain.Location{}, fmt.Errorf("county %q: %w", county, domain.ErrOrphanCounty)
	}
	if county == "" {
		return domain.Location{}, fmt.Errorf("county name is empty for state %q", state)
	}
	// A shipped subtotal row is folded onto the tier total, whichever state
	// it was reported under. The aggregator replaces its values.
	if county == domain.TotalLabel {
		if state != domain.TotalLabel {
			r.logger.Debug("per-state subtotal mapped to county total", "state", state)
		}
		loc := domain.Location{Code: r.nationalCode(), State: domain.TotalLabel, County: domain.TotalLabel}
		r.remember(loc)
		return loc, nil
	}
	loc := domain.Location{Code: r.nationalCode(), State: state, County: county, FIPS: strings.TrimSpace(fips)}
	r.remember(loc)
	return loc, nil
}

func (r *Registry) remember(loc domain.Location) {
	r.mu.Lock()
	r.subs[loc] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) nationalCode() string {
	if r.overrides.NationalCode != "" {
		return r.overrides.NationalCode
	}
	return domain.NationalCode
}

// DisplayName is the human-readable key used in chart documents.
func (r *Registry) DisplayName(loc domain.Location) string {
	if loc.IsTotal() {
		return domain.TotalLabel
	}
	switch loc.Tier() {
	case domain.TierCounty:
		return fmt.Sprintf("%s County, %s", loc.County, loc.State)
	case domain.TierState:
		return loc.State
	}
	if name, ok := r.overrides.DisplayNames[loc.Code]; ok {
		return name
	}
	if cc := countries.ByName(loc.Code); cc.IsValid() {
		return cc.String()
	}
	return loc.Code
}

// CombinedEntities returns the declared missing->target merges.
func (r *Registry) CombinedEntities() map[domain.Location]domain.Location {
	out := make(map[domain.Location]domain.Location, len(r.overrides.Combined))
	for missing, target := range r.overrides.Combined {
		out[domain.Country(missing)] = domain.Country(target)
	}
	return out
}

// Orphans lists county locations whose state was never resolved.
func (r *Registry) Orphans() []domain.Location {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Location
	for loc := range r.subs {
		parent, ok := loc.Parent()
		if !ok || parent.IsTotal() {
			continue
		}
		if _, found := r.subs[parent]; !found {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
