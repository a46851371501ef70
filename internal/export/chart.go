package export

import (
	"encoding/json"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// ChartDocument holds every day of every series of one tier, keyed by
// display name. Synthetic totals appear under "Total".
type ChartDocument struct {
	Dates       DateRange
	Series      Projection
	Populations map[string]int64
}

// NewChartDocument projects c for charts. populations may be nil.
func NewChartDocument(c *domain.Cube, n Namer, populations map[string]int64) (*ChartDocument, error) {
	p, err := Project(c, All, ByDisplayName(n))
	if err != nil {
		return nil, err
	}
	return &ChartDocument{Dates: rangeOf(c.Axis), Series: p, Populations: populations}, nil
}

// Locations is the number of distinct keys in the document.
func (d *ChartDocument) Locations() int {
	seen := make(map[string]struct{})
	for _, byRel := range d.Series {
		for _, byKey := range byRel {
			for k := range byKey {
				seen[k] = struct{}{}
			}
		}
	}
	return len(seen)
}

// MarshalJSON writes the flat layout clients read:
//
//	{"dates": {...}, "cases": {"absolute": {...}, ...}, "deaths": {...}, "populations": {...}}
//
// Every metric and relation is present even when empty.
func (d *ChartDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(domain.Metrics)+2)
	out["dates"] = d.Dates
	for _, m := range domain.Metrics {
		byRel := make(map[string]map[string][]float64, len(domain.Relations))
		for _, r := range domain.Relations {
			series := d.Series[m][r]
			if series == nil {
				series = map[string][]float64{}
			}
			byRel[string(r)] = series
		}
		out[string(m)] = byRel
	}
	if d.Populations != nil {
		out["populations"] = d.Populations
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the layout written by MarshalJSON.
func (d *ChartDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if b, ok := raw["dates"]; ok {
		if err := json.Unmarshal(b, &d.Dates); err != nil {
			return err
		}
	}
	if b, ok := raw["populations"]; ok {
		if err := json.Unmarshal(b, &d.Populations); err != nil {
			return err
		}
	}
	d.Series = make(Projection, len(domain.Metrics))
	for _, m := range domain.Metrics {
		b, ok := raw[string(m)]
		if !ok {
			continue
		}
		var byRel map[domain.Relation]map[string][]float64
		if err := json.Unmarshal(b, &byRel); err != nil {
			return err
		}
		d.Series[m] = byRel
	}
	return nil
}
