package export

import (
	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// MapDocument is the final-day value of one (relation, metric) per location,
// plus the value range for color scaling.
type MapDocument struct {
	Locations []string  `json:"locations"`
	Z         []float64 `json:"z"`
	ZMin      float64   `json:"zmin"`
	ZMax      float64   `json:"zmax"`
}

// NewMapDocument projects the last day of (m, r) for tier. Totals are never
// placed on a map.
func NewMapDocument(c *domain.Cube, tier domain.Tier, m domain.Metric, r domain.Relation, n Namer) (*MapDocument, error) {
	p, err := Project(c, Only(m, r), MapKey(tier, n))
	if err != nil {
		return nil, err
	}
	series := p[m][r]
	doc := &MapDocument{
		Locations: make([]string, 0, len(series)),
		Z:         make([]float64, 0, len(series)),
	}
	last := c.Axis.Last()
	for i, k := range sortedKeys(series) {
		z := series[k][last]
		doc.Locations = append(doc.Locations, k)
		doc.Z = append(doc.Z, z)
		if i == 0 || z < doc.ZMin {
			doc.ZMin = z
		}
		if i == 0 || z > doc.ZMax {
			doc.ZMax = z
		}
	}
	return doc, nil
}
