package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// Document is one rendered output file.
type Document struct {
	Name string
	Tier domain.Tier
	Body []byte
}

// Batch is everything a run produces. Sinks receive it only once rendering
// has fully succeeded.
type Batch struct {
	RunID       string
	GeneratedAt time.Time
	Documents   []Document
	// Locations counts chart keys per tier.
	Locations map[domain.Tier]int
}

// ChartName is the file name of a tier's chart document.
func ChartName(tier domain.Tier) string {
	return "chart-" + tier.Plural() + ".json"
}

// MapName is the file name of a map document.
func MapName(r domain.Relation, m domain.Metric, tier domain.Tier) string {
	return fmt.Sprintf("map-%s-%s-%s.json", r, m, tier.Plural())
}

// Render builds the chart document of every tier and one map document per
// (relation, metric, tier). populations is attached to the country chart.
func Render(cubes map[domain.Tier]*domain.Cube, n Namer, populations map[string]int64) ([]Document, map[domain.Tier]int, error) {
	var docs []Document
	counts := make(map[domain.Tier]int, len(domain.Tiers))

	for _, tier := range domain.Tiers {
		c, ok := cubes[tier]
		if !ok {
			continue
		}

		var pops map[string]int64
		if tier == domain.TierCountry {
			pops = populations
		}
		chart, err := NewChartDocument(c, n, pops)
		if err != nil {
			return nil, nil, fmt.Errorf("render %s chart: %w", tier, err)
		}
		body, err := json.Marshal(chart)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s chart: %w", tier, err)
		}
		docs = append(docs, Document{Name: ChartName(tier), Tier: tier, Body: body})
		counts[tier] = chart.Locations()

		for _, r := range domain.Relations {
			for _, m := range domain.Metrics {
				doc, err := NewMapDocument(c, tier, m, r, n)
				if err != nil {
					return nil, nil, fmt.Errorf("render %s map: %w", MapName(r, m, tier), err)
				}
				body, err := json.Marshal(doc)
				if err != nil {
					return nil, nil, fmt.Errorf("encode %s: %w", MapName(r, m, tier), err)
				}
				docs = append(docs, Document{Name: MapName(r, m, tier), Tier: tier, Body: body})
			}
		}
	}
	return docs, counts, nil
}
