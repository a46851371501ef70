//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/filesink"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/source"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/export"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/ingest"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/observability"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/pipeline"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

const testTopic = "outbreak-documents-test"

const countryCSV = `dateRep,day,month,year,cases,deaths,countriesAndTerritories,geoId,countryterritoryCode,popData2019,continentExp
03/03/2020,3,3,2020,15,1,France,FR,FRA,67012883,Europe
02/03/2020,2,3,2020,20,2,France,FR,FRA,67012883,Europe
01/03/2020,1,3,2020,10,0,France,FR,FRA,67012883,Europe
`

const stateCSV = `date,state,fips,cases,deaths
2020-03-01,New York,36,1,0
2020-03-02,New York,36,3,0
`

const countyCSV = `date,county,state,fips,cases,deaths
2020-03-02,Kings,New York,36047,1,0
`

const keyedLive = `{"countryitems":[{"1":{"ourid":1,"title":"France","code":"FR","total_cases":50,"total_deaths":4},"stat":"ok"}],"stat":"ok"}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("outbreak-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func writeFixtures(t *testing.T) pipeline.Sources {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"countries.csv": countryCSV, "states.csv": stateCSV, "counties.csv": countyCSV}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return pipeline.Sources{
		Country: filepath.Join(dir, "countries.csv"),
		State:   filepath.Join(dir, "states.csv"),
		County:  filepath.Join(dir, "counties.csv"),
	}
}

// TestPipelineToKafka runs the full pipeline against local fixtures and an
// httptest live feed, then reads every document back from the topic.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(keyedLive))
	}))
	t.Cleanup(live.Close)

	o, err := registry.DefaultOverrides()
	require.NoError(t, err)

	loader := source.NewLoader(10*time.Second, nil, discardLogger())
	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	outDir := t.TempDir()
	p := pipeline.New(writeFixtures(t), pipeline.Deps{
		Loader: loader,
		Live: ingest.NewFallbackProvider(
			ingest.NewKeyedFeed(loader, live.URL),
			ingest.NewListFeed(loader, live.URL+"/unused"),
			discardLogger(), nil,
		),
		Registry: registry.New(o, discardLogger()),
		Sinks:    []pipeline.Sink{filesink.New(outDir, discardLogger()), writer},
		Clock:    clockwork.NewFakeClockAt(time.Date(2020, 3, 4, 12, 0, 0, 0, time.UTC)),
		Logger:   discardLogger(),
		Metrics:  observability.NewMetricsForTesting(),
	})

	batch, err := p.Run(ctx)
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     "outbreak-test-" + p.RunID(),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]kafkago.Message, len(batch.Documents))
	for len(received) < len(batch.Documents) {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")
		received[string(msg.Key)] = msg
	}

	msg, ok := received[export.ChartName(domain.TierCountry)]
	require.True(t, ok)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, p.RunID(), headers["run_id"])
	assert.Equal(t, "country", headers["tier"])
	_, err = time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	var doc export.ChartDocument
	require.NoError(t, doc.UnmarshalJSON(msg.Value))
	assert.Equal(t, []float64{20, 15, 5}, doc.Series[domain.MetricCases][domain.RelationRelative]["France"])

	onDisk, err := os.ReadFile(filepath.Join(outDir, export.ChartName(domain.TierCountry)))
	require.NoError(t, err)
	assert.JSONEq(t, string(onDisk), string(msg.Value))
}
