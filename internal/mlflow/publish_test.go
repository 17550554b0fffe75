package mlflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/markercheck/internal/models"
)

type fakeTracker struct {
	runID   string
	batches []Batch
	err     error
}

func (f *fakeTracker) LogBatch(_ context.Context, runID string, batch Batch) error {
	if f.err != nil {
		return f.err
	}
	f.runID = runID
	f.batches = append(f.batches, batch)
	return nil
}

func ms(v int64) *int64 {
	return &v
}

func TestPublish(t *testing.T) {
	rows := []models.ResultRow{
		{Marker: "A", Threshold: 100, Average: ms(10), Status: models.StatusFail},
		{Marker: "boot: done", Threshold: 50.5, Average: ms(60), Status: models.StatusPass},
		{Marker: "C", Threshold: 30, Status: models.StatusNoData},
	}
	ts := time.Unix(0, 0)
	tracker := &fakeTracker{}

	err := Publish(context.Background(), tracker, "run-1", rows, PublishOptions{
		Timestamp: ts,
		Params:    map[string]string{"tolerance_ms": "10", "rounding": "half-even"},
	})
	require.NoError(t, err)
	require.Len(t, tracker.batches, 1)
	assert.Equal(t, "run-1", tracker.runID)

	batch := tracker.batches[0]
	assert.Equal(t, []models.Parameter{
		{Key: "rounding", Value: "half-even"},
		{Key: "tolerance_ms", Value: "10"},
		{Key: "threshold_ms/A", Value: "100"},
		{Key: "threshold_ms/boot_ done", Value: "50.5"},
		{Key: "threshold_ms/C", Value: "30"},
	}, batch.Params)
	assert.Equal(t, []models.Tag{
		{Key: "status/A", Value: "Fail"},
		{Key: "status/boot_ done", Value: "Pass"},
		{Key: "status/C", Value: "No Data"},
		{Key: "markercheck.result", Value: "fail"},
	}, batch.Tags)
	assert.Equal(t, []models.Metric{
		{Key: "average_ms/A", Value: 10, Timestamp: ts},
		{Key: "average_ms/boot_ done", Value: 60, Timestamp: ts},
		{Key: "markers_pass", Value: 1, Timestamp: ts},
		{Key: "markers_fail", Value: 1, Timestamp: ts},
		{Key: "markers_no_data", Value: 1, Timestamp: ts},
	}, batch.Metrics)
}

func TestPublishError(t *testing.T) {
	rows := []models.ResultRow{{Marker: "A", Threshold: 1, Average: ms(1), Status: models.StatusPass}}
	tracker := &fakeTracker{err: errors.New("server unavailable")}

	err := Publish(context.Background(), tracker, "run-1", rows, PublishOptions{})
	assert.EqualError(t, err, "server unavailable")
}

func TestBuildBatchCollidingNames(t *testing.T) {
	rows := []models.ResultRow{
		{Marker: "a:b", Threshold: 1, Status: models.StatusNoData},
		{Marker: "a;b", Threshold: 2, Status: models.StatusNoData},
	}

	batch := BuildBatch(rows, PublishOptions{})
	assert.Equal(t, []models.Parameter{
		{Key: "threshold_ms/a_b", Value: "1"},
		{Key: "threshold_ms/a_b_2", Value: "2"},
	}, batch.Params)
	assert.Equal(t, "markercheck.result", batch.Tags[2].Key)
	assert.Equal(t, "pass", batch.Tags[2].Value)
}

func TestBatchSplit(t *testing.T) {
	var batch Batch
	for i := 0; i < 250; i++ {
		batch.Params = append(batch.Params, models.Parameter{Key: fmt.Sprintf("p%d", i)})
		batch.Tags = append(batch.Tags, models.Tag{Key: fmt.Sprintf("t%d", i)})
	}
	for i := 0; i < 1500; i++ {
		batch.Metrics = append(batch.Metrics, models.Metric{Key: fmt.Sprintf("m%d", i)})
	}

	parts := batch.Split()
	require.Len(t, parts, 3)

	var merged Batch
	for _, part := range parts {
		assert.LessOrEqual(t, len(part.Params), maxBatchParams)
		assert.LessOrEqual(t, len(part.Tags), maxBatchTags)
		assert.LessOrEqual(t, len(part.Metrics), maxBatchMetrics)
		assert.LessOrEqual(t, part.Len(), maxBatchEntries)

		merged.Params = append(merged.Params, part.Params...)
		merged.Tags = append(merged.Tags, part.Tags...)
		merged.Metrics = append(merged.Metrics, part.Metrics...)
	}
	assert.Equal(t, batch, merged)

	assert.Empty(t, Batch{}.Split())
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "boot_done", SanitizeKey("boot!done"))
	assert.Equal(t, "phase 1/init-2.x", SanitizeKey(" phase 1/init-2.x "))
	assert.Equal(t, "_", SanitizeKey("   "))
	assert.Equal(t, "caf_", SanitizeKey("café"))
	assert.Len(t, SanitizeKey(strings.Repeat("x", 300)), maxNameLength)
}

func TestRunStatusFor(t *testing.T) {
	assert.Equal(t, models.RunStatusFinished, RunStatusFor(models.Summary{Pass: 2, NoData: 1}))
	assert.Equal(t, models.RunStatusFailed, RunStatusFor(models.Summary{Pass: 2, Fail: 1}))
}

func TestResolveArtifactDestination(t *testing.T) {
	dest, err := resolveArtifactDestination("mlflow-artifacts:/0/abc123/artifacts", "http://localhost:5000/", "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, destinationHTTP, dest.kind)
	assert.Equal(t, "http://localhost:5000/api/2.0/mlflow-artifacts/artifacts/0/abc123/artifacts/report.xlsx", dest.location)

	dest, err = resolveArtifactDestination("file:///tmp/mlruns/0/abc/artifacts", "", "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, destinationLocal, dest.kind)
	assert.Equal(t, "/tmp/mlruns/0/abc/artifacts/report.xlsx", dest.location)

	_, err = resolveArtifactDestination("mlflow-artifacts:/0", "http://localhost:5000", "report.xlsx")
	assert.Error(t, err)

	_, err = resolveArtifactDestination("s3://bucket/path", "http://localhost:5000", "report.xlsx")
	assert.Error(t, err)
}
