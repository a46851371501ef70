package ingest

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

// Sub-national providers publish running totals per US calendar day; a row
// is taken as the total at the end of that day in New York.
const subnationalTimezone = "America/New_York"

// SubnationalRecord is one resolved state or county row.
type SubnationalRecord struct {
	Date     time.Time
	Location domain.Location
	Cases    int64
	Deaths   int64
}

// SubnationalDataset is a parsed state or county export.
type SubnationalDataset struct {
	Source  string
	Records []SubnationalRecord
	Dropped int
}

// ParseStateCSV reads rows of date,state,fips,cases,deaths.
func ParseStateCSV(data []byte, reg *registry.Registry, logger *slog.Logger) (*SubnationalDataset, error) {
	return parseSubnational("state", data, logger, []string{"date", "state", "cases", "deaths"},
		func(t *table, row []string) (domain.Location, error) {
			return reg.ResolveState(t.column(row, "state"))
		})
}

// ParseCountyCSV reads rows of date,county,state,fips,cases,deaths.
func ParseCountyCSV(data []byte, reg *registry.Registry, logger *slog.Logger) (*SubnationalDataset, error) {
	return parseSubnational("county", data, logger, []string{"date", "county", "state", "fips", "cases", "deaths"},
		func(t *table, row []string) (domain.Location, error) {
			return reg.ResolveCounty(t.column(row, "state"), t.column(row, "county"), t.column(row, "fips"))
		})
}

func parseSubnational(
	source string,
	data []byte,
	logger *slog.Logger,
	required []string,
	resolve func(*table, []string) (domain.Location, error),
) (*SubnationalDataset, error) {
	tz, err := time.LoadLocation(subnationalTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", subnationalTimezone, err)
	}

	t, err := readTable(source, bytes.NewReader(data), required...)
	if err != nil {
		return nil, err
	}

	ds := &SubnationalDataset{Source: source, Records: make([]SubnationalRecord, 0, len(t.rows))}
	for i, row := range t.rows {
		rowNum := i + 2

		cases, err := t.count(row, rowNum, "cases")
		if err != nil {
			return nil, err
		}
		deaths, err := t.count(row, rowNum, "deaths")
		if err != nil {
			return nil, err
		}

		rawDate := t.column(row, "date")
		day, err := time.ParseInLocation(time.DateOnly, rawDate, tz)
		if err != nil {
			return nil, &domain.ParseError{Source: source, Row: rowNum, Field: "date", Value: rawDate, Err: err}
		}

		loc, err := resolve(t, row)
		if err != nil {
			logger.Warn("unresolved location, dropping record", "source", source, "row", rowNum, "error", err)
			ds.Dropped++
			continue
		}

		ds.Records = append(ds.Records, SubnationalRecord{
			Date:     endOfDay(day),
			Location: loc,
			Cases:    cases,
			Deaths:   deaths,
		})
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%s: no resolvable rows: %w", source, domain.ErrEmptyDataset)
	}
	logger.Info("parsed "+source+" dataset", "rows", len(t.rows), "records", len(ds.Records), "dropped", ds.Dropped)
	return ds, nil
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}

// Observations emits cumulative observations. Rows before the axis start or
// after its end are dropped with a warning.
func (d *SubnationalDataset) Observations(axis domain.DateAxis, logger *slog.Logger) []domain.Observation {
	obs := make([]domain.Observation, 0, 2*len(d.Records))
	var outside int
	for _, rec := range d.Records {
		off, err := axis.Offset(rec.Date)
		if err != nil {
			outside++
			continue
		}
		obs = append(obs,
			domain.Observation{Location: rec.Location, Offset: off, Metric: domain.MetricCases, Value: rec.Cases, Kind: domain.KindCumulative},
			domain.Observation{Location: rec.Location, Offset: off, Metric: domain.MetricDeaths, Value: rec.Deaths, Kind: domain.KindCumulative},
		)
	}
	if outside > 0 {
		logger.Warn("records outside day axis, dropping", "source", d.Source, "count", outside)
	}
	return obs
}
