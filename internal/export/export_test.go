package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

type namer map[domain.Location]string

func (n namer) DisplayName(loc domain.Location) string {
	if name, ok := n[loc]; ok {
		return name
	}
	switch {
	case loc.IsTotal():
		return domain.TotalLabel
	case loc.Tier() == domain.TierCounty:
		return loc.County + " County, " + loc.State
	case loc.Tier() == domain.TierState:
		return loc.State
	}
	return loc.Code
}

var (
	france    = domain.Country("FRA")
	italy     = domain.Country("ITA")
	newYork   = domain.State("New York")
	ohio      = domain.State("Ohio")
	kings     = domain.County("New York", "Kings", "36047")
	nyc       = domain.County("New York", "New York City", "")
	testNames = namer{france: "France", italy: "Italy"}
)

func testCube(t *testing.T, days int, values map[domain.Location][]float64) *domain.Cube {
	t.Helper()
	start := time.Date(2020, 3, 2, 9, 0, 0, 0, time.UTC)
	axis, err := domain.NewDateAxis(start, start.Add(time.Duration(days-1)*domain.Day))
	require.NoError(t, err)

	c := domain.NewCube(axis)
	for loc, v := range values {
		for _, m := range domain.Metrics {
			for _, r := range domain.Relations {
				require.NoError(t, c.Series(m, r).Set(loc, v))
			}
		}
	}
	return c
}

func TestProject_DuplicateKey(t *testing.T) {
	c := testCube(t, 2, map[domain.Location][]float64{france: {1, 2}, italy: {3, 4}})
	_, err := Project(c, All, func(domain.Location) (string, bool) { return "same", true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"same"`)
}

func TestMapKey(t *testing.T) {
	n := namer{}
	tests := []struct {
		name string
		tier domain.Tier
		loc  domain.Location
		want string
		ok   bool
	}{
		{"country uses code", domain.TierCountry, france, "FRA", true},
		{"state uses name", domain.TierState, newYork, "New York", true},
		{"county uses fips", domain.TierCounty, kings, "36047", true},
		{"county without fips skipped", domain.TierCounty, nyc, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapKey(tt.tier, n)(tt.loc)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestChartDocument_JSON(t *testing.T) {
	c := testCube(t, 3, map[domain.Location][]float64{
		france:              {20, 15, 5},
		domain.GrandTotal(): {20, 15, 5},
	})
	doc, err := NewChartDocument(c, testNames, map[string]int64{"France": 67000000})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Locations())

	body, err := json.Marshal(doc)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))

	dates := got["dates"].(map[string]any)
	assert.Equal(t, "2020-03-02T09:00:00Z", dates["start"])
	assert.Equal(t, "2020-03-04T09:00:00Z", dates["end"])
	assert.InDelta(t, 3, dates["count"], 0)

	cases := got["cases"].(map[string]any)
	for _, r := range []string{"absolute", "relative", "growth"} {
		series := cases[r].(map[string]any)
		assert.Contains(t, series, "France")
		assert.Contains(t, series, "Total")
	}
	assert.Contains(t, got, "deaths")
	assert.Equal(t, map[string]any{"France": float64(67000000)}, got["populations"])
}

func TestChartDocument_RoundTrip(t *testing.T) {
	c := testCube(t, 2, map[domain.Location][]float64{newYork: {3, 4}})
	doc, err := NewChartDocument(c, testNames, nil)
	require.NoError(t, err)

	body, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "populations")

	var back ChartDocument
	require.NoError(t, json.Unmarshal(body, &back))
	if diff := cmp.Diff(doc.Series, back.Series); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, doc.Dates.Count, back.Dates.Count)
	assert.True(t, doc.Dates.Start.Equal(back.Dates.Start))
}

func TestNewMapDocument(t *testing.T) {
	c := testCube(t, 3, map[domain.Location][]float64{
		newYork:                          {1, 2, 9},
		ohio:                             {1, 2, -3},
		domain.TotalFor(domain.TierState): {2, 4, 6},
	})

	doc, err := NewMapDocument(c, domain.TierState, domain.MetricCases, domain.RelationRelative, testNames)
	require.NoError(t, err)

	want := &MapDocument{
		Locations: []string{"New York", "Ohio"},
		Z:         []float64{9, -3},
		ZMin:      -3,
		ZMax:      9,
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("map document mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMapDocument_Empty(t *testing.T) {
	c := testCube(t, 2, nil)
	doc, err := NewMapDocument(c, domain.TierCounty, domain.MetricDeaths, domain.RelationGrowth, testNames)
	require.NoError(t, err)

	body, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"locations":[],"z":[],"zmin":0,"zmax":0}`, string(body))
}

func TestRender(t *testing.T) {
	cubes := map[domain.Tier]*domain.Cube{
		domain.TierCountry: testCube(t, 3, map[domain.Location][]float64{france: {1, 2, 3}, domain.GrandTotal(): {1, 2, 3}}),
		domain.TierState:   testCube(t, 2, map[domain.Location][]float64{newYork: {1, 2}}),
		domain.TierCounty:  testCube(t, 2, map[domain.Location][]float64{kings: {1, 2}, nyc: {0, 1}}),
	}

	docs, counts, err := Render(cubes, testNames, map[string]int64{"France": 1})
	require.NoError(t, err)

	// one chart plus six maps per tier
	require.Len(t, docs, 21)
	names := make(map[string]bool, len(docs))
	for _, d := range docs {
		names[d.Name] = true
		assert.True(t, json.Valid(d.Body), d.Name)
	}
	assert.True(t, names["chart-countries.json"])
	assert.True(t, names["chart-states.json"])
	assert.True(t, names["chart-counties.json"])
	assert.True(t, names["map-growth-deaths-counties.json"])
	assert.True(t, names["map-absolute-cases-countries.json"])

	assert.Equal(t, map[domain.Tier]int{domain.TierCountry: 2, domain.TierState: 1, domain.TierCounty: 2}, counts)

	for _, d := range docs {
		if d.Name == "map-relative-cases-countries.json" {
			var m MapDocument
			require.NoError(t, json.Unmarshal(d.Body, &m))
			assert.Equal(t, []string{"FRA"}, m.Locations)
		}
		if d.Name == "chart-states.json" {
			assert.NotContains(t, string(d.Body), "populations")
		}
	}
}
