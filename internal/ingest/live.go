package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/source"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

// LiveEntry is one country's cumulative totals as reported by a live feed.
type LiveEntry struct {
	Code   string
	Name   string
	Cases  int64
	Deaths int64
}

// LiveProvider returns the current cumulative totals per country.
type LiveProvider interface {
	Name() string
	Snapshot(ctx context.Context) ([]LiveEntry, error)
}

// classifyFetch turns a loader error into a LiveError. Cancellation is
// returned as-is so that it never triggers the fallback.
func classifyFetch(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("live provider %s: %w", provider, ctx.Err())
	}
	kind := domain.LiveNetwork
	if errors.Is(err, source.ErrEmptyPayload) {
		kind = domain.LiveEmpty
	}
	return &domain.LiveError{Provider: provider, Kind: kind, Err: err}
}

// count accepts a JSON number or a numeric string. Fractional values are
// rejected.
type count int64

func (c *count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("count %q: %w", s, domain.ErrMalformedNumber)
	}
	*c = count(v)
	return nil
}

// KeyedFeed reads the primary live payload: a mapping of numeric keys to
// per-country totals, wrapped in a "countryitems" array.
type KeyedFeed struct {
	fetcher  source.Getter
	location string
}

// NewKeyedFeed creates the primary live provider.
func NewKeyedFeed(f source.Getter, location string) *KeyedFeed {
	return &KeyedFeed{fetcher: f, location: location}
}

func (k *KeyedFeed) Name() string { return "keyed" }

type keyedPayload struct {
	CountryItems []map[string]json.RawMessage `json:"countryitems"`
}

type keyedItem struct {
	Title       string `json:"title"`
	Code        string `json:"code"`
	TotalCases  count  `json:"total_cases"`
	TotalDeaths count  `json:"total_deaths"`
}

func (k *KeyedFeed) Snapshot(ctx context.Context) ([]LiveEntry, error) {
	data, err := k.fetcher.Load(ctx, k.location)
	if err != nil {
		return nil, classifyFetch(ctx, k.Name(), err)
	}
	return parseKeyed(k.Name(), data)
}

func parseKeyed(provider string, data []byte) ([]LiveEntry, error) {
	var p keyedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveShape, Err: err}
	}
	if len(p.CountryItems) == 0 {
		return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveShape, Err: errors.New("missing countryitems")}
	}

	var entries []LiveEntry
	for key, raw := range p.CountryItems[0] {
		// The mapping ends with a {"stat": "ok"} marker.
		if key == "stat" {
			continue
		}
		var item keyedItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveShape, Err: fmt.Errorf("item %s: %w", key, err)}
		}
		entries = append(entries, LiveEntry{
			Code:   item.Code,
			Name:   item.Title,
			Cases:  int64(item.TotalCases),
			Deaths: int64(item.TotalDeaths),
		})
	}
	if len(entries) == 0 {
		return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveEmpty}
	}
	return entries, nil
}

// ListFeed reads the secondary live payload: a JSON array of per-country
// objects carrying ISO codes under "countryInfo".
type ListFeed struct {
	fetcher  source.Getter
	location string
}

// NewListFeed creates the secondary live provider.
func NewListFeed(f source.Getter, location string) *ListFeed {
	return &ListFeed{fetcher: f, location: location}
}

func (l *ListFeed) Name() string { return "list" }

type listItem struct {
	Country     string `json:"country"`
	CountryInfo struct {
		Iso2 *string `json:"iso2"`
		Iso3 *string `json:"iso3"`
	} `json:"countryInfo"`
	Cases  count `json:"cases"`
	Deaths count `json:"deaths"`
}

func (l *ListFeed) Snapshot(ctx context.Context) ([]LiveEntry, error) {
	data, err := l.fetcher.Load(ctx, l.location)
	if err != nil {
		return nil, classifyFetch(ctx, l.Name(), err)
	}
	return parseList(l.Name(), data)
}

func parseList(provider string, data []byte) ([]LiveEntry, error) {
	var items []listItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveShape, Err: err}
	}
	if len(items) == 0 {
		return nil, &domain.LiveError{Provider: provider, Kind: domain.LiveEmpty}
	}

	entries := make([]LiveEntry, 0, len(items))
	for _, item := range items {
		code := ""
		switch {
		case item.CountryInfo.Iso3 != nil && *item.CountryInfo.Iso3 != "":
			code = *item.CountryInfo.Iso3
		case item.CountryInfo.Iso2 != nil:
			code = *item.CountryInfo.Iso2
		}
		entries = append(entries, LiveEntry{
			Code:   code,
			Name:   item.Country,
			Cases:  int64(item.Cases),
			Deaths: int64(item.Deaths),
		})
	}
	return entries, nil
}

// FallbackProvider tries the primary provider and, only when it fails with a
// LiveError, the secondary one. The two are never run concurrently.
type FallbackProvider struct {
	primary   LiveProvider
	secondary LiveProvider
	logger    *slog.Logger
	onSwitch  func(from, to string, kind domain.LiveFailure)
}

// NewFallbackProvider chains two providers. onSwitch, when non-nil, is called
// before the secondary provider is tried.
func NewFallbackProvider(primary, secondary LiveProvider, logger *slog.Logger, onSwitch func(from, to string, kind domain.LiveFailure)) *FallbackProvider {
	return &FallbackProvider{primary: primary, secondary: secondary, logger: logger, onSwitch: onSwitch}
}

func (f *FallbackProvider) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackProvider) Snapshot(ctx context.Context) ([]LiveEntry, error) {
	entries, err := f.primary.Snapshot(ctx)
	if err == nil {
		f.logger.Info("live snapshot loaded", "provider", f.primary.Name(), "entries", len(entries))
		return entries, nil
	}

	var liveErr *domain.LiveError
	if !errors.As(err, &liveErr) {
		return nil, err
	}

	f.logger.Warn("primary live provider failed, falling back",
		"provider", f.primary.Name(), "kind", liveErr.Kind.String(), "error", err)
	if f.onSwitch != nil {
		f.onSwitch(f.primary.Name(), f.secondary.Name(), liveErr.Kind)
	}

	entries, err = f.secondary.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("all live providers failed: %w", err)
	}
	f.logger.Info("live snapshot loaded", "provider", f.secondary.Name(), "entries", len(entries))
	return entries, nil
}

// LiveObservations resolves live entries and places their cumulative totals
// on the final day of the axis.
func LiveObservations(entries []LiveEntry, reg *registry.Registry, axis domain.DateAxis) ([]domain.Observation, int) {
	obs := make([]domain.Observation, 0, 2*len(entries))
	var dropped int
	for _, e := range entries {
		loc, ok := reg.Resolve(e.Code, "", e.Name)
		if !ok {
			dropped++
			continue
		}
		obs = append(obs,
			domain.Observation{Location: loc, Offset: axis.Last(), Metric: domain.MetricCases, Value: e.Cases, Kind: domain.KindCumulative},
			domain.Observation{Location: loc, Offset: axis.Last(), Metric: domain.MetricDeaths, Value: e.Deaths, Kind: domain.KindCumulative},
		)
	}
	return obs, dropped
}
