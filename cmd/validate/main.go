// Command validate checks the documents written by a pipeline run for
// internal consistency: running sums, growth ratios, per-tier totals, day
// counts, and map value ranges.
//
// Usage:
//
//	go run ./cmd/validate -dir data
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "data", "directory containing the run's documents")
	flag.Parse()

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Outbreak Document Validation ===")
	fmt.Println()

	charts := make(map[domain.Tier]*export.ChartDocument, len(domain.Tiers))
	for _, tier := range domain.Tiers {
		doc, err := loadChart(filepath.Join(dir, export.ChartName(tier)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		charts[tier] = doc
	}

	maps := make(map[string]*export.MapDocument)
	for _, tier := range domain.Tiers {
		for _, r := range domain.Relations {
			for _, m := range domain.Metrics {
				name := export.MapName(r, m, tier)
				doc, err := loadJSON[export.MapDocument](filepath.Join(dir, name))
				if err != nil {
					fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
					return 1
				}
				maps[name] = doc
			}
		}
	}

	phases := []*phase{
		validateRunningSums(charts),
		validateGrowth(charts),
		validateTotals(charts),
		validateDayCounts(charts),
		validateMaps(maps),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Locations: %d countries, %d states, %d counties\n",
		charts[domain.TierCountry].Locations(), charts[domain.TierState].Locations(), charts[domain.TierCounty].Locations())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadChart(path string) (*export.ChartDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc export.ChartDocument
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

func loadJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// validateRunningSums checks absolute[i] == sum(relative[0..i]).
func validateRunningSums(charts map[domain.Tier]*export.ChartDocument) *phase {
	p := &phase{name: "Absolute is running sum of relative"}
	fmt.Printf("Phase 1: %s\n", p.name)

	for _, tier := range domain.Tiers {
		for _, m := range domain.Metrics {
			rel := charts[tier].Series[m][domain.RelationRelative]
			abs := charts[tier].Series[m][domain.RelationAbsolute]
			for name, r := range rel {
				a, ok := abs[name]
				if !ok || len(a) != len(r) {
					p.errorf("%s %s %q: absolute has %d days, relative %d", tier, m, name, len(a), len(r))
					continue
				}
				var sum float64
				for i := range r {
					sum += r[i]
					if math.Abs(sum-a[i]) > tolerance {
						p.errorf("%s %s %q day %d: absolute %v, running sum %v", tier, m, name, i, a[i], sum)
						break
					}
				}
			}
		}
	}
	return p
}

// validateGrowth checks growth against the rounded ratio of consecutive deltas.
func validateGrowth(charts map[domain.Tier]*export.ChartDocument) *phase {
	p := &phase{name: "Growth matches relative ratio"}
	fmt.Printf("Phase 2: %s\n", p.name)

	for _, tier := range domain.Tiers {
		for _, m := range domain.Metrics {
			rel := charts[tier].Series[m][domain.RelationRelative]
			grw := charts[tier].Series[m][domain.RelationGrowth]
			for name, r := range rel {
				g, ok := grw[name]
				if !ok || len(g) != len(r) {
					p.errorf("%s %s %q: growth has %d days, relative %d", tier, m, name, len(g), len(r))
					continue
				}
				for i := range r {
					var want float64
					if i > 0 && r[i-1] != 0 {
						want = math.Round(r[i]/r[i-1]*100) / 100
					}
					if math.Abs(want-g[i]) > tolerance {
						p.errorf("%s %s %q day %d: growth %v, want %v", tier, m, name, i, g[i], want)
						break
					}
				}
			}
		}
	}
	return p
}

// validateTotals checks each tier's total against the sum of its locations.
func validateTotals(charts map[domain.Tier]*export.ChartDocument) *phase {
	p := &phase{name: "Totals equal sum of locations"}
	fmt.Printf("Phase 3: %s\n", p.name)

	for _, tier := range domain.Tiers {
		for _, m := range domain.Metrics {
			rel := charts[tier].Series[m][domain.RelationRelative]
			total, ok := rel[domain.TotalLabel]
			if !ok {
				if len(rel) > 0 {
					p.errorf("%s %s: no %q series", tier, m, domain.TotalLabel)
				}
				continue
			}
			sum := make([]float64, len(total))
			for name, r := range rel {
				if name == domain.TotalLabel {
					continue
				}
				for i := range r {
					if i < len(sum) {
						sum[i] += r[i]
					}
				}
			}
			for i := range total {
				if math.Abs(sum[i]-total[i]) > tolerance {
					p.errorf("%s %s day %d: total %v, sum of locations %v", tier, m, i, total[i], sum[i])
				}
			}
		}
	}
	return p
}

// validateDayCounts checks that every series matches its document's count and
// that sub-national tiers end one day before the country tier.
func validateDayCounts(charts map[domain.Tier]*export.ChartDocument) *phase {
	p := &phase{name: "Day counts consistent"}
	fmt.Printf("Phase 4: %s\n", p.name)

	for _, tier := range domain.Tiers {
		doc := charts[tier]
		for m, byRel := range doc.Series {
			for r, byName := range byRel {
				for name, v := range byName {
					if len(v) != doc.Dates.Count {
						p.errorf("%s %s/%s %q: %d values, count %d", tier, m, r, name, len(v), doc.Dates.Count)
					}
				}
			}
		}
	}

	country := charts[domain.TierCountry].Dates
	for _, tier := range []domain.Tier{domain.TierState, domain.TierCounty} {
		d := charts[tier].Dates
		if d.Count != country.Count-1 {
			p.errorf("%s: count %d, want %d", tier, d.Count, country.Count-1)
		}
		if !d.Start.Equal(country.Start) {
			p.errorf("%s: start %s, want %s", tier, d.Start, country.Start)
		}
	}
	return p
}

// validateMaps checks parallel arrays and the value range of every map document.
func validateMaps(maps map[string]*export.MapDocument) *phase {
	p := &phase{name: "Map documents well-formed"}
	fmt.Printf("Phase 5: %s\n", p.name)

	for name, doc := range maps {
		if len(doc.Locations) != len(doc.Z) {
			p.errorf("%s: %d locations, %d values", name, len(doc.Locations), len(doc.Z))
			continue
		}
		seen := make(map[string]bool, len(doc.Locations))
		for i, loc := range doc.Locations {
			if loc == domain.TotalCode || loc == domain.TotalLabel {
				p.errorf("%s: total %q placed on map", name, loc)
			}
			if seen[loc] {
				p.errorf("%s: duplicate location %q", name, loc)
			}
			seen[loc] = true
			if doc.Z[i] < doc.ZMin || doc.Z[i] > doc.ZMax {
				p.errorf("%s: %q value %v outside [%v, %v]", name, loc, doc.Z[i], doc.ZMin, doc.ZMax)
			}
		}
	}
	return p
}
