package domain

import (
	"fmt"
	"strings"
)

// Tier is the geographic granularity of a Location.
type Tier int

const (
	TierCountry Tier = iota
	TierState
	TierCounty
	TierMeta
)

// Tiers lists the geographic tiers that carry real locations, in export order.
var Tiers = []Tier{TierCountry, TierState, TierCounty}

func (t Tier) String() string {
	switch t {
	case TierCountry:
		return "country"
	case TierState:
		return "state"
	case TierCounty:
		return "county"
	case TierMeta:
		return "meta"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Plural is the tier name used in document names, e.g. "countries".
func (t Tier) Plural() string {
	switch t {
	case TierCountry:
		return "countries"
	case TierCounty:
		return "counties"
	default:
		return t.String() + "s"
	}
}

// Group returns the tier a location is charted with. The grand total is
// charted alongside the countries it sums.
func (t Tier) Group() Tier {
	if t == TierMeta {
		return TierCountry
	}
	return t
}

const (
	// TotalCode is the sentinel code of the grand total.
	TotalCode = "TOT"
	// TotalLabel is the sentinel state/county value of a per-tier subtotal
	// and the display name of every total.
	TotalLabel = "Total"
	// NationalCode scopes all state and county locations.
	NationalCode = "USA"
)

// Location is the canonical identity of one geographic entity. It is
// comparable and is used directly as a map key.
type Location struct {
	Code   string `json:"code"`
	State  string `json:"state,omitempty"`
	County string `json:"county,omitempty"`
	FIPS   string `json:"fips,omitempty"`
}

// Country returns a country-tier location.
func Country(code string) Location {
	return Location{Code: code}
}

// State returns a state-tier location within the national scope.
func State(state string) Location {
	return Location{Code: NationalCode, State: state}
}

// County returns a county-tier location within the national scope.
func County(state, county, fips string) Location {
	return Location{Code: NationalCode, State: state, County: county, FIPS: fips}
}

// GrandTotal is the meta location summing every country.
func GrandTotal() Location {
	return Location{Code: TotalCode}
}

// TotalFor returns the synthetic location that sums all locations of tier.
func TotalFor(tier Tier) Location {
	switch tier {
	case TierState:
		return State(TotalLabel)
	case TierCounty:
		return County(TotalLabel, TotalLabel, "")
	default:
		return GrandTotal()
	}
}

// Tier derives the granularity from the populated fields.
func (l Location) Tier() Tier {
	switch {
	case l.County != "":
		return TierCounty
	case l.State != "":
		return TierState
	case l.Code == TotalCode:
		return TierMeta
	default:
		return TierCountry
	}
}

// IsTotal reports whether l is a synthetic total rather than a real place.
func (l Location) IsTotal() bool {
	switch l.Tier() {
	case TierMeta:
		return true
	case TierState:
		return l.State == TotalLabel
	case TierCounty:
		return l.County == TotalLabel
	default:
		return false
	}
}

// Parent returns the state a county belongs to.
func (l Location) Parent() (Location, bool) {
	if l.Tier() != TierCounty {
		return Location{}, false
	}
	return Location{Code: l.Code, State: l.State}, true
}

// Key is a stable string form used for ordering and logging.
func (l Location) Key() string {
	parts := []string{l.Code}
	if l.State != "" {
		parts = append(parts, l.State)
	}
	if l.County != "" {
		parts = append(parts, l.County)
	}
	if l.FIPS != "" {
		parts = append(parts, l.FIPS)
	}
	return strings.Join(parts, "|")
}

func (l Location) String() string {
	return l.Key()
}
