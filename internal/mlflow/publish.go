package mlflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imishinist/markercheck/internal/models"
)

// leaves room for the key prefixes within the 250 character MLflow limit
const maxNameLength = 200

// Tracker is the subset of the MLflow API used to publish results.
type Tracker interface {
	LogBatch(ctx context.Context, runID string, batch Batch) error
}

type PublishOptions struct {
	Timestamp time.Time
	// Params are logged once per run, e.g. tolerance and rounding.
	Params map[string]string
}

// Publish logs, per marker, the threshold as a param, the status as a tag
// and the average as a metric (absent averages are skipped), followed by
// the pass/fail/no-data counts.
func Publish(ctx context.Context, t Tracker, runID string, rows []models.ResultRow, opts PublishOptions) error {
	return t.LogBatch(ctx, runID, BuildBatch(rows, opts))
}

// BuildBatch lays out the run entries for rows in registry order.
func BuildBatch(rows []models.ResultRow, opts PublishOptions) Batch {
	var batch Batch

	keys := make([]string, 0, len(opts.Params))
	for key := range opts.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		batch.Params = append(batch.Params, models.Parameter{Key: SanitizeKey(key), Value: opts.Params[key]})
	}

	metric := func(key string, value float64) models.Metric {
		return models.Metric{Key: key, Value: value, Timestamp: opts.Timestamp}
	}

	names := newKeySet()
	for _, row := range rows {
		name := names.unique(SanitizeKey(row.Marker))

		batch.Params = append(batch.Params, models.Parameter{
			Key:   "threshold_ms/" + name,
			Value: strconv.FormatFloat(row.Threshold, 'f', -1, 64),
		})
		batch.Tags = append(batch.Tags, models.Tag{Key: "status/" + name, Value: string(row.Status)})
		if row.Average != nil {
			batch.Metrics = append(batch.Metrics, metric("average_ms/"+name, float64(*row.Average)))
		}
	}

	summary := models.Summarize(rows)
	batch.Metrics = append(batch.Metrics,
		metric("markers_pass", float64(summary.Pass)),
		metric("markers_fail", float64(summary.Fail)),
		metric("markers_no_data", float64(summary.NoData)),
	)

	result := "pass"
	if summary.Fail > 0 {
		result = "fail"
	}
	batch.Tags = append(batch.Tags, models.Tag{Key: "markercheck.result", Value: result})

	return batch
}

// SanitizeKey maps a marker name onto the characters MLflow accepts in
// metric, param and tag keys.
func SanitizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '.', r == ' ', r == '/':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	key := b.String()
	if key == "" {
		key = "_"
	}
	if len(key) > maxNameLength {
		key = key[:maxNameLength]
	}
	return key
}

// keySet disambiguates marker names that sanitize to the same key.
type keySet map[string]int

func newKeySet() keySet {
	return make(keySet)
}

func (s keySet) unique(key string) string {
	n := s[key]
	s[key] = n + 1
	if n == 0 {
		return key
	}
	return s.unique(fmt.Sprintf("%s_%d", key, n+1))
}
