package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/source"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/ingest"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/observability"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

// Sink receives the rendered documents of a successful run.
type Sink interface {
	Name() string
	Write(ctx context.Context, b *export.Batch) error
}

// Sources locates the three historical datasets. Each is a path or URL.
type Sources struct {
	Country string
	State   string
	County  string
}

// Deps are the collaborators of a run.
type Deps struct {
	Loader   source.Getter
	Live     ingest.LiveProvider
	Registry *registry.Registry
	Sinks    []Sink
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Pipeline runs the batch: fetch, parse, assemble, aggregate, trim, derive,
// render, write. Stages run strictly in order.
type Pipeline struct {
	sources Sources
	runID   string
	Deps
}

// New creates a Pipeline. A nil clock means the real clock.
func New(sources Sources, deps Deps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{sources: sources, runID: uuid.NewString(), Deps: deps}
}

// RunID identifies this pipeline's run in logs, metrics and sink headers.
func (p *Pipeline) RunID() string { return p.runID }

// Run executes one full pass. Documents reach the sinks only after every
// stage succeeded; on error nothing is written.
func (p *Pipeline) Run(ctx context.Context) (batch *export.Batch, err error) {
	logger := p.Logger.With("run_id", p.runID)
	logger.Info("pipeline started")
	started := p.Clock.Now()

	defer func() {
		if err != nil {
			p.Metrics.RunSuccess.Set(0)
			logger.Error("pipeline failed", "error", err)
		} else {
			p.Metrics.RunSuccess.Set(1)
			logger.Info("pipeline finished", "documents", len(batch.Documents), "duration", p.Clock.Since(started))
		}
		p.Metrics.LastRunTimestamp.Set(float64(p.Clock.Now().Unix()))
	}()

	var raw map[string][]byte
	if err := p.stage(logger, "fetch", func() (err error) {
		raw, err = source.FetchAll(ctx, p.Loader, map[string]string{
			"country": p.sources.Country,
			"state":   p.sources.State,
			"county":  p.sources.County,
		})
		return err
	}); err != nil {
		return nil, err
	}

	var (
		country        *ingest.CountryDataset
		states, counties *ingest.SubnationalDataset
	)
	if err := p.stage(logger, "parse", func() (err error) {
		if country, err = ingest.ParseCountryCSV(raw["country"], p.Registry, logger); err != nil {
			return err
		}
		if states, err = ingest.ParseStateCSV(raw["state"], p.Registry, logger); err != nil {
			return err
		}
		counties, err = ingest.ParseCountyCSV(raw["county"], p.Registry, logger)
		return err
	}); err != nil {
		return nil, err
	}
	p.countRecords("country", len(country.Records), country.Dropped)
	p.countRecords("state", len(states.Records), states.Dropped)
	p.countRecords("county", len(counties.Records), counties.Dropped)
	for _, orphan := range p.Registry.Orphans() {
		logger.Warn("county without a known state", "state", orphan.State, "county", orphan.County, "fips", orphan.FIPS)
	}

	axis, err := domain.NewDateAxis(country.Start(), p.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("build day axis: %w", err)
	}
	logger.Info("day axis", "start", axis.Start, "end", axis.End, "days", axis.Days)

	populations := registry.NewPopulationTable(p.Registry.Overrides(), logger)
	country.Populations(populations)

	var liveObs []domain.Observation
	if err := p.stage(logger, "live", func() error {
		entries, err := p.Live.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("live snapshot: %w", err)
		}
		var dropped int
		liveObs, dropped = ingest.LiveObservations(entries, p.Registry, axis)
		p.countRecords("live", len(entries)-dropped, dropped)
		return nil
	}); err != nil {
		return nil, err
	}

	var cubes map[domain.Tier]*domain.Cube
	if err := p.stage(logger, "assemble", func() error {
		a := NewAssembler(axis, logger)
		if err := a.AddDeltas(country.Observations(axis, logger)); err != nil {
			return err
		}
		for _, ds := range []*ingest.SubnationalDataset{states, counties} {
			obs := ds.Observations(axis, logger)
			if outside := len(ds.Records) - len(obs)/len(domain.Metrics); outside > 0 {
				p.Metrics.RecordsDropped.WithLabelValues(ds.Source, "out_of_range").Add(float64(outside))
			}
			if err := a.AddCumulative(obs); err != nil {
				return err
			}
		}

		snapshot := BuildSnapshot(liveObs)
		MergeCombined(snapshot, p.Registry.CombinedEntities(), logger)
		a.ReconcileLive(snapshot)

		Aggregate(a.Cube(), logger)

		trimmed, err := TrimLeading(a.Cube())
		if err != nil {
			return err
		}
		Derive(trimmed)
		cubes, err = SplitTiers(trimmed)
		return err
	}); err != nil {
		return nil, err
	}

	batch = &export.Batch{RunID: p.runID}
	if err := p.stage(logger, "render", func() (err error) {
		batch.Documents, batch.Locations, err = export.Render(cubes, p.Registry, populations.ByName(p.Registry))
		return err
	}); err != nil {
		return nil, err
	}
	batch.GeneratedAt = p.Clock.Now()
	for tier, n := range batch.Locations {
		p.Metrics.Locations.WithLabelValues(tier.String()).Set(float64(n))
	}

	if err := p.stage(logger, "write", func() error {
		for _, s := range p.Sinks {
			if err := s.Write(ctx, batch); err != nil {
				return fmt.Errorf("%s sink: %w", s.Name(), err)
			}
			p.Metrics.Documents.WithLabelValues(s.Name()).Add(float64(len(batch.Documents)))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return batch, nil
}

// stage times fn under name.
func (p *Pipeline) stage(logger *slog.Logger, name string, fn func() error) error {
	start := p.Clock.Now()
	err := fn()
	p.Metrics.StageDuration.WithLabelValues(name).Observe(p.Clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("stage complete", "stage", name, "duration", p.Clock.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) countRecords(src string, read, dropped int) {
	p.Metrics.RecordsRead.WithLabelValues(src).Add(float64(read))
	if dropped > 0 {
		p.Metrics.RecordsDropped.WithLabelValues(src, "unresolved").Add(float64(dropped))
	}
}
