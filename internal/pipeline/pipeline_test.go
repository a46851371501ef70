package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/ingest"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/observability"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/pipeline"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

// --- fixtures ---

const countryCSV = `dateRep,day,month,year,cases,deaths,countriesAndTerritories,geoId,countryterritoryCode,popData2019,continentExp
04/03/2020,4,3,2020,0,0,France,FR,FRA,67012883,Europe
03/03/2020,3,3,2020,15,1,France,FR,FRA,67012883,Europe
02/03/2020,2,3,2020,20,2,France,FR,FRA,67012883,Europe
01/03/2020,1,3,2020,10,0,France,FR,FRA,67012883,Europe
02/03/2020,2,3,2020,5,5,Atlantis,QQ,QQQ,1000,Atlantis
`

const stateCSV = `date,state,fips,cases,deaths
2020-03-01,New York,36,1,0
2020-03-02,New York,36,3,0
2020-03-03,New York,36,6,1
2020-03-02,Ohio,39,2,0
`

const countyCSV = `date,county,state,fips,cases,deaths
2020-03-02,Kings,New York,36047,1,0
2020-03-03,Kings,New York,36047,4,0
2020-03-03,Franklin,Ohio,39049,2,0
`

// --- mocks ---

type mapLoader map[string]string

func (m mapLoader) Load(_ context.Context, location string) ([]byte, error) {
	data, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", location)
	}
	return []byte(data), nil
}

type staticLive struct {
	entries []ingest.LiveEntry
	err     error
}

func (s *staticLive) Name() string { return "static" }

func (s *staticLive) Snapshot(context.Context) ([]ingest.LiveEntry, error) {
	return s.entries, s.err
}

type memorySink struct {
	batches []*export.Batch
	err     error
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Write(_ context.Context, b *export.Batch) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, b)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	o, err := registry.DefaultOverrides()
	require.NoError(t, err)
	return registry.New(o, discardLogger())
}

func defaultLive() *staticLive {
	return &staticLive{entries: []ingest.LiveEntry{
		{Code: "FR", Name: "France", Cases: 50, Deaths: 4},
		{Code: "CHN", Name: "China", Cases: 10, Deaths: 1},
		{Code: "HKG", Name: "Hong Kong", Cases: 3, Deaths: 0},
		{Code: "ZZ", Name: "Nowhere", Cases: 99, Deaths: 99},
	}}
}

var testSources = pipeline.Sources{Country: "countries.csv", State: "states.csv", County: "counties.csv"}

func newTestPipeline(t *testing.T, live ingest.LiveProvider, sink pipeline.Sink) *pipeline.Pipeline {
	t.Helper()
	return pipeline.New(testSources, pipeline.Deps{
		Loader: mapLoader{
			"countries.csv": countryCSV,
			"states.csv":    stateCSV,
			"counties.csv":  countyCSV,
		},
		Live:     live,
		Registry: newTestRegistry(t),
		Sinks:    []pipeline.Sink{sink},
		// 2020-03-01 10:00 Brussels is 09:00 UTC; now is three days and three hours later.
		Clock:   clockwork.NewFakeClockAt(time.Date(2020, 3, 4, 12, 0, 0, 0, time.UTC)),
		Logger:  discardLogger(),
		Metrics: observability.NewMetricsForTesting(),
	})
}

func chart(t *testing.T, b *export.Batch, tier domain.Tier) *export.ChartDocument {
	t.Helper()
	for _, d := range b.Documents {
		if d.Name == export.ChartName(tier) {
			var doc export.ChartDocument
			require.NoError(t, doc.UnmarshalJSON(d.Body))
			return &doc
		}
	}
	t.Fatalf("no chart document for %s", tier)
	return nil
}

// --- tests ---

func TestPipeline_EndToEndExample(t *testing.T) {
	sink := &memorySink{}
	batch, err := newTestPipeline(t, defaultLive(), sink).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.batches, 1)
	assert.Same(t, batch, sink.batches[0])
	assert.NotEmpty(t, batch.RunID)

	doc := chart(t, batch, domain.TierCountry)
	cases := doc.Series[domain.MetricCases]
	assert.Equal(t, []float64{20, 15, 5}, cases[domain.RelationRelative]["France"])
	assert.Equal(t, []float64{20, 35, 40}, cases[domain.RelationAbsolute]["France"])
	assert.Equal(t, []float64{0, 0.75, 0.33}, cases[domain.RelationGrowth]["France"])

	deaths := doc.Series[domain.MetricDeaths]
	assert.Equal(t, []float64{2, 1, 1}, deaths[domain.RelationRelative]["France"])

	// Hong Kong is folded into China before reconciliation.
	assert.Equal(t, []float64{0, 0, 13}, cases[domain.RelationRelative]["China"])
	assert.NotContains(t, cases[domain.RelationRelative], "Hong Kong")

	assert.Equal(t, map[string]int64{"France": 67012883}, doc.Populations)
}

func TestPipeline_DayCounts(t *testing.T) {
	batch, err := newTestPipeline(t, defaultLive(), &memorySink{}).Run(context.Background())
	require.NoError(t, err)

	// four days on the axis: one dropped at the start for every tier, one more
	// at the end for sub-national tiers
	country := chart(t, batch, domain.TierCountry)
	assert.Equal(t, 3, country.Dates.Count)
	assert.True(t, country.Dates.Start.Equal(time.Date(2020, 3, 2, 9, 0, 0, 0, time.UTC)))

	for _, tier := range []domain.Tier{domain.TierState, domain.TierCounty} {
		doc := chart(t, batch, tier)
		assert.Equal(t, 2, doc.Dates.Count, tier.String())
		assert.True(t, doc.Dates.Start.Equal(country.Dates.Start))
		for _, byRel := range doc.Series {
			for _, byName := range byRel {
				for name, v := range byName {
					assert.Len(t, v, 2, "%s %s", tier, name)
				}
			}
		}
	}

	states := chart(t, batch, domain.TierState).Series[domain.MetricCases][domain.RelationRelative]
	assert.Equal(t, []float64{2, 3}, states["New York"])
	assert.Equal(t, []float64{2, 0}, states["Ohio"])
	assert.Equal(t, []float64{4, 3}, states[domain.TotalLabel])
}

func TestPipeline_ShippedCountySubtotalIsReplaced(t *testing.T) {
	p := newTestPipeline(t, defaultLive(), &memorySink{})
	p.Loader = mapLoader{
		"countries.csv": countryCSV,
		"states.csv":    stateCSV,
		"counties.csv":  countyCSV + "2020-03-03,Total,New York,,40,0\n",
	}

	batch, err := p.Run(context.Background())
	require.NoError(t, err)

	counties := chart(t, batch, domain.TierCounty).Series[domain.MetricCases][domain.RelationRelative]
	assert.Equal(t, []float64{1, 3}, counties["Kings County, New York"])
	assert.Equal(t, []float64{0, 2}, counties["Franklin County, Ohio"])
	assert.Equal(t, []float64{1, 5}, counties[domain.TotalLabel])
	assert.Len(t, counties, 3)
}

func TestPipeline_StageLogsCarryRunID(t *testing.T) {
	var buf bytes.Buffer
	p := newTestPipeline(t, defaultLive(), &memorySink{})
	p.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	var stages []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] != "stage complete" {
			continue
		}
		assert.Equal(t, p.RunID(), rec["run_id"], "stage %v", rec["stage"])
		stages = append(stages, rec["stage"].(string))
	}
	assert.Equal(t, []string{"fetch", "parse", "live", "assemble", "render", "write"}, stages)
}

func TestPipeline_TrimmedDayCountIsElapsedWholeDays(t *testing.T) {
	p := newTestPipeline(t, defaultLive(), &memorySink{})
	batch, err := p.Run(context.Background())
	require.NoError(t, err)

	start := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)
	elapsed := int(p.Clock.Now().Sub(start) / domain.Day)

	assert.Equal(t, elapsed, chart(t, batch, domain.TierCountry).Dates.Count)
	assert.Equal(t, elapsed-1, chart(t, batch, domain.TierState).Dates.Count)
	assert.Equal(t, elapsed-1, chart(t, batch, domain.TierCounty).Dates.Count)
}

func TestPipeline_DerivedSeriesInvariants(t *testing.T) {
	batch, err := newTestPipeline(t, defaultLive(), &memorySink{}).Run(context.Background())
	require.NoError(t, err)

	for _, tier := range domain.Tiers {
		doc := chart(t, batch, tier)
		for _, m := range domain.Metrics {
			rel := doc.Series[m][domain.RelationRelative]
			abs := doc.Series[m][domain.RelationAbsolute]
			grw := doc.Series[m][domain.RelationGrowth]
			require.NotEmpty(t, rel, "%s %s", tier, m)

			var total []float64
			for name, r := range rel {
				var sum float64
				for i := range r {
					sum += r[i]
					assert.InDelta(t, sum, abs[name][i], 1e-9, "absolute %s %s[%d]", m, name, i)

					want := 0.0
					if i > 0 && r[i-1] != 0 {
						want = math.RoundToEven(r[i]/r[i-1]*100) / 100
					}
					assert.InDelta(t, want, grw[name][i], 1e-9, "growth %s %s[%d]", m, name, i)
				}
				if name == domain.TotalLabel {
					continue
				}
				if total == nil {
					total = make([]float64, len(r))
				}
				for i := range r {
					total[i] += r[i]
				}
			}
			assert.Equal(t, total, rel[domain.TotalLabel], "%s %s total", tier, m)
		}
	}
}

func TestPipeline_UnresolvedLocationsNeverExported(t *testing.T) {
	batch, err := newTestPipeline(t, defaultLive(), &memorySink{}).Run(context.Background())
	require.NoError(t, err)

	for _, d := range batch.Documents {
		body := string(d.Body)
		for _, unwanted := range []string{"Atlantis", "QQQ", "Nowhere", `"ZZ"`} {
			assert.NotContains(t, body, unwanted, d.Name)
		}
	}
}

func TestPipeline_MapDocuments(t *testing.T) {
	batch, err := newTestPipeline(t, defaultLive(), &memorySink{}).Run(context.Background())
	require.NoError(t, err)

	var found bool
	for _, d := range batch.Documents {
		if d.Name != export.MapName(domain.RelationAbsolute, domain.MetricCases, domain.TierCounty) {
			continue
		}
		found = true
		assert.JSONEq(t, `{"locations":["36047","39049"],"z":[4,2],"zmin":2,"zmax":4}`, string(d.Body))
	}
	assert.True(t, found)
	assert.Len(t, batch.Documents, 3*(1+len(domain.Relations)*len(domain.Metrics)))
}

func TestPipeline_Failures(t *testing.T) {
	tests := []struct {
		name    string
		live    *staticLive
		sinkErr error
		loader  map[string]string
		want    string
	}{
		{
			name: "live providers exhausted",
			live: &staticLive{err: &domain.LiveError{Provider: "static", Kind: domain.LiveNetwork, Err: errors.New("refused")}},
			want: "live snapshot",
		},
		{
			name:    "sink fails",
			live:    defaultLive(),
			sinkErr: errors.New("disk full"),
			want:    "memory sink",
		},
		{
			name:   "missing dataset",
			live:   defaultLive(),
			loader: map[string]string{"countries.csv": countryCSV, "states.csv": stateCSV},
			want:   "load county dataset",
		},
		{
			name: "malformed count",
			live: defaultLive(),
			loader: map[string]string{
				"countries.csv": strings.Replace(countryCSV, ",15,1,", ",1.5,1,", 1),
				"states.csv":    stateCSV,
				"counties.csv":  countyCSV,
			},
			want: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{err: tt.sinkErr}
			p := newTestPipeline(t, tt.live, sink)
			if tt.loader != nil {
				p.Loader = mapLoader(tt.loader)
			}

			batch, err := p.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, sink.batches)
		})
	}
}

func TestPipeline_MalformedCountIsParseError(t *testing.T) {
	p := newTestPipeline(t, defaultLive(), &memorySink{})
	p.Loader = mapLoader{
		"countries.csv": strings.Replace(countryCSV, ",15,1,", ",abc,1,", 1),
		"states.csv":    stateCSV,
		"counties.csv":  countyCSV,
	}

	_, err := p.Run(context.Background())
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "cases", pe.Field)
	require.ErrorIs(t, err, domain.ErrMalformedNumber)
}
