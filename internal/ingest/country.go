// Package ingest adapts each provider's native record shape into
// observations on the shared day axis.
package ingest

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

const countrySource = "country"

// Country provider reports are published at 10:00 local time in Brussels and
// cover the preceding day.
const (
	countryTimezone   = "Europe/Brussels"
	countryReportHour = 10
)

// CountryRecord is one resolved row of the historical country dataset.
type CountryRecord struct {
	Date       time.Time
	Location   domain.Location
	Cases      int64
	Deaths     int64
	Population int64
}

// CountryDataset is the parsed historical country export.
type CountryDataset struct {
	Records []CountryRecord
	Dropped int
}

// ParseCountryCSV decodes the ISO-8859-1 country export. Rows whose location
// cannot be resolved are dropped with a warning; malformed counts are fatal.
func ParseCountryCSV(data []byte, reg *registry.Registry, logger *slog.Logger) (*CountryDataset, error) {
	loc, err := time.LoadLocation(countryTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", countryTimezone, err)
	}

	r := charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(data))
	t, err := readTable(countrySource, r,
		"day", "month", "year", "cases", "deaths", "countriesAndTerritories", "geoId")
	if err != nil {
		return nil, err
	}
	popColumn, hasPop := t.columnWithPrefix("popData")

	ds := &CountryDataset{Records: make([]CountryRecord, 0, len(t.rows))}
	for i, row := range t.rows {
		rowNum := i + 2

		day, err := t.integer(row, rowNum, "day")
		if err != nil {
			return nil, err
		}
		month, err := t.integer(row, rowNum, "month")
		if err != nil {
			return nil, err
		}
		year, err := t.integer(row, rowNum, "year")
		if err != nil {
			return nil, err
		}
		cases, err := t.count(row, rowNum, "cases")
		if err != nil {
			return nil, err
		}
		deaths, err := t.count(row, rowNum, "deaths")
		if err != nil {
			return nil, err
		}

		geoID := t.column(row, "geoId")
		code := t.column(row, "countryterritoryCode")
		if code == "" {
			code = geoID
		}
		location, ok := reg.Resolve(code, geoID, t.column(row, "countriesAndTerritories"))
		if !ok {
			ds.Dropped++
			continue
		}

		var population int64
		if raw := t.column(row, popColumn); hasPop && raw != "" {
			population, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				logger.Warn("malformed population, treating as missing",
					"row", rowNum, "location", location.Key(), "value", raw)
				population = 0
			}
		}

		ds.Records = append(ds.Records, CountryRecord{
			Date:       time.Date(int(year), time.Month(month), int(day), countryReportHour, 0, 0, 0, loc),
			Location:   location,
			Cases:      cases,
			Deaths:     deaths,
			Population: population,
		})
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%s: no resolvable rows: %w", countrySource, domain.ErrEmptyDataset)
	}
	logger.Info("parsed country dataset", "rows", len(t.rows), "records", len(ds.Records), "dropped", ds.Dropped)
	return ds, nil
}

// Start is the earliest record date; the day axis begins there.
func (d *CountryDataset) Start() time.Time {
	start := d.Records[0].Date
	for _, rec := range d.Records[1:] {
		if rec.Date.Before(start) {
			start = rec.Date
		}
	}
	return start
}

// Populations feeds every record's reported population into p.
func (d *CountryDataset) Populations(p *registry.PopulationTable) {
	for _, rec := range d.Records {
		p.Observe(rec.Location, rec.Population)
	}
}

// Observations emits one delta per (metric, location, offset). Duplicate rows
// for the same location and day are summed, never overwritten.
func (d *CountryDataset) Observations(axis domain.DateAxis, logger *slog.Logger) []domain.Observation {
	type slot struct {
		loc    domain.Location
		offset int
	}
	sums := make(map[slot][2]int64)
	order := make([]slot, 0, len(d.Records))

	for _, rec := range d.Records {
		off, err := axis.Offset(rec.Date)
		if err != nil {
			logger.Warn("country record outside day axis, dropping", "location", rec.Location.Key(), "error", err)
			continue
		}
		k := slot{loc: rec.Location, offset: off}
		v, seen := sums[k]
		if !seen {
			order = append(order, k)
		}
		v[0] += rec.Cases
		v[1] += rec.Deaths
		sums[k] = v
	}

	obs := make([]domain.Observation, 0, 2*len(order))
	for _, k := range order {
		v := sums[k]
		obs = append(obs,
			domain.Observation{Location: k.loc, Offset: k.offset, Metric: domain.MetricCases, Value: v[0], Kind: domain.KindDelta},
			domain.Observation{Location: k.loc, Offset: k.offset, Metric: domain.MetricDeaths, Value: v[1], Kind: domain.KindDelta},
		)
	}
	return obs
}
