package mlflow

import (
	"context"
	"fmt"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/markercheck/internal/models"
)

// MLflow log-batch request limits
const (
	maxBatchMetrics = 1000
	maxBatchParams  = 100
	maxBatchTags    = 100
	maxBatchEntries = 1000
)

// Batch is everything published to a run in one go.
type Batch struct {
	Metrics []models.Metric
	Params  []models.Parameter
	Tags    []models.Tag
}

func (b Batch) Len() int {
	return len(b.Metrics) + len(b.Params) + len(b.Tags)
}

// Split cuts b into requests that fit the MLflow log-batch limits, keeping
// the order of every list.
func (b Batch) Split() []Batch {
	var out []Batch
	for b.Len() > 0 {
		var next Batch
		next.Params, b.Params = take(b.Params, maxBatchParams)
		next.Tags, b.Tags = take(b.Tags, maxBatchTags)
		room := maxBatchEntries - len(next.Params) - len(next.Tags)
		next.Metrics, b.Metrics = take(b.Metrics, min(room, maxBatchMetrics))
		out = append(out, next)
	}
	return out
}

func take[T any](s []T, n int) ([]T, []T) {
	if len(s) < n {
		n = len(s)
	}
	return s[:n], s[n:]
}

// LogBatch sends the batch in as many requests as the MLflow limits need.
func (c *Client) LogBatch(ctx context.Context, runID string, batch Batch) error {
	for _, part := range batch.Split() {
		req := ml.LogBatch{RunId: runID}
		for _, m := range part.Metrics {
			req.Metrics = append(req.Metrics, ml.Metric{
				Key:       m.Key,
				Value:     m.Value,
				Timestamp: m.Timestamp.UnixMilli(),
				Step:      m.Step,
			})
		}
		for _, p := range part.Params {
			req.Params = append(req.Params, ml.Param{Key: p.Key, Value: p.Value})
		}
		for _, t := range part.Tags {
			req.Tags = append(req.Tags, ml.RunTag{Key: t.Key, Value: t.Value})
		}

		if err := c.client.Experiments.LogBatch(ctx, req); err != nil {
			return fmt.Errorf("failed to log batch to run %s: %w", runID, err)
		}
	}
	return nil
}
