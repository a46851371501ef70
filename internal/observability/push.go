package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for pipeline runs.
const PushJob = "outbreak_etl"

// Push sends the gathered metrics to a Pushgateway, replacing the previous
// run's group.
func Push(ctx context.Context, url, runID string, g prometheus.Gatherer) error {
	err := push.New(url, PushJob).
		Gatherer(g).
		Grouping("instance", "batch").
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics for run %s: %w", runID, err)
	}
	return nil
}
