package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/markercheck/internal/check"
	"github.com/imishinist/markercheck/internal/config"
	"github.com/imishinist/markercheck/internal/logger"
	"github.com/imishinist/markercheck/internal/mlflow"
	"github.com/imishinist/markercheck/internal/models"
	"github.com/imishinist/markercheck/internal/report"
	timeutils "github.com/imishinist/markercheck/internal/time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// resetFlags puts every flag back to its default so repeated executions of
// the shared command tree do not see each other's values.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			require.NoError(t, sv.Replace(nil))
		} else {
			require.NoError(t, f.Value.Set(f.DefValue))
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	registryPath := writeFile(t, dir, "markers.csv", "Marker,Threshold\nA,100\nB,50\nC,30\n")
	logA := writeFile(t, dir, "soc1-1.txt", "5000[us]: A\n15000[us]: A\nabc[us]: D\n")
	logB := writeFile(t, dir, "soc1-2.txt", "60000[us]: B\n500[us]: Z\n")
	missing := filepath.Join(dir, "soc1-3.txt")
	output := filepath.Join(dir, "Result", "average_timestamps-final.csv")

	stdout, _, err := execute(t, "check",
		"--registry", registryPath,
		"--log", logA,
		"--log", missing,
		"--output", output,
		"--log-level", "error",
		"--fail-on-fail",
		logB,
	)
	require.Error(t, err)
	assert.Equal(t, ExitMarkersFailed, ExitCode(err))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "Marker,Threshold,Average Timestamp(ms),Status\n"+
		"A,100,10,Fail\n"+
		"B,50,60,Pass\n"+
		"C,30,,No Data\n", string(data))

	assert.Contains(t, stdout, "Report saved to "+output)
	assert.Contains(t, stdout, "Markers: 3 (pass: 1, fail: 1, no data: 1)")
	assert.Contains(t, stdout, missing+": not found")
	assert.Contains(t, stdout, "unknown_marker: 1")
	assert.Contains(t, stdout, "no_match: 1")
}

func TestCheckCommandCombinesLogSources(t *testing.T) {
	dir := t.TempDir()
	registryPath := writeFile(t, dir, "markers.csv", "Marker,Threshold\nA,10\nB,20\nC,30\n")
	configured := writeFile(t, dir, "a.txt", "10000[us]: A\n")
	flagged := writeFile(t, dir, "b.txt", "20000[us]: B\n")
	positional := writeFile(t, dir, "c.txt", "30000[us]: C\n")
	output := filepath.Join(dir, "r.csv")

	t.Setenv("MARKERCHECK_LOGS", configured)

	stdout, _, err := execute(t, "check",
		"--registry", registryPath,
		"--log", flagged,
		"-o", output,
		positional,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "Marker,Threshold,Average Timestamp(ms),Status\n"+
		"A,10,10,Pass\n"+
		"B,20,20,Pass\n"+
		"C,30,30,Pass\n", string(data))

	assert.Contains(t, stdout, "  "+configured+": 1 observations from 1 lines\n"+
		"  "+flagged+": 1 observations from 1 lines\n"+
		"  "+positional+": 1 observations from 1 lines\n")
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	logA := writeFile(t, dir, "soc1-1.txt", "5000[us]: A\nnoise\n99999999999999999999999[us]: B\n")

	stdout, _, err := execute(t, "parse", logA)
	require.NoError(t, err)

	assert.Contains(t, stdout, fmt.Sprintf("%s:1\t5000\tA\n", logA))
	assert.Contains(t, stdout, fmt.Sprintf("%s:3\tmalformed timestamp", logA))
	assert.NotContains(t, stdout, "noise")
	assert.Contains(t, stdout, "1 observations, 1 malformed timestamps, 1 other lines")
}

func TestParseCommandOpenErrors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "soc1-1.txt", "5000[us]: A\n")
	missing := filepath.Join(dir, "soc1-2.txt")
	notADir := filepath.Join(file, "nested.txt")

	stdout, stderr, err := execute(t, "parse", missing, notADir, file)
	require.NoError(t, err)

	assert.Contains(t, stderr, "File not found: "+missing)
	assert.Contains(t, stderr, "Cannot open "+notADir+": ")
	assert.NotContains(t, stderr, "File not found: "+notADir)
	assert.Contains(t, stdout, "1 observations, 0 malformed timestamps, 0 other lines")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "markercheck dev\n", stdout)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    report.Format
		wantErr bool
	}{
		{"default table", config.Config{}, report.FormatTable, false},
		{"from output", config.Config{Output: "out/result.xlsx"}, report.FormatXLSX, false},
		{"explicit wins", config.Config{Output: "result.txt", Format: "json"}, report.FormatJSON, false},
		{"xlsx to stdout", config.Config{Format: "xlsx"}, "", true},
		{"unknown", config.Config{Format: "pdf"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFormat(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	avg := int64(5)
	result := &check.Result{
		Rows: []models.ResultRow{
			{Marker: "A", Threshold: 5, Average: &avg, Status: models.StatusPass},
			{Marker: "B", Threshold: 5, Status: models.StatusNoData},
		},
		Sources: []check.SourceStats{
			{Source: "a.txt", Found: true, Lines: 3, Observations: 1},
			{Source: "b.txt"},
			{Source: "c.txt", Found: true, Error: "disk gone"},
		},
		Diagnostics: []models.Diagnostic{
			{Kind: models.DiagnosticMissingSource, Source: "b.txt"},
			{Kind: models.DiagnosticUnreadableSource, Source: "c.txt"},
			{Kind: models.DiagnosticNoMatch, Source: "a.txt", Line: 2},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, result)

	assert.Equal(t, "\nMarkers: 2 (pass: 1, fail: 0, no data: 1)\n"+
		"  a.txt: 1 observations from 3 lines\n"+
		"  b.txt: not found\n"+
		"  c.txt: skipped (disk gone)\n"+
		"Skipped input:\n"+
		"  missing_source: 1\n"+
		"  no_match: 1\n"+
		"  unreadable_source: 1\n", buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 3, Err: errors.New("skipped")})))
}

type fakeRunClient struct {
	batchErr  error
	uploadErr error

	created  []models.RunConfig
	batches  []mlflow.Batch
	uploads  []string
	statuses []models.RunStatus
}

func (f *fakeRunClient) CreateRun(_ context.Context, cfg models.RunConfig) (*models.RunInfo, error) {
	f.created = append(f.created, cfg)
	return &models.RunInfo{RunID: "run-9", ExperimentID: cfg.ExperimentID}, nil
}

func (f *fakeRunClient) UpdateRun(_ context.Context, runID string, status models.RunStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeRunClient) LogBatch(_ context.Context, runID string, batch mlflow.Batch) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeRunClient) UploadArtifact(_ context.Context, runID, filePath, artifactPath string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, filePath)
	return nil
}

func TestPublishWith(t *testing.T) {
	avg := int64(5)
	passing := &check.Result{Rows: []models.ResultRow{{Marker: "A", Threshold: 5, Average: &avg, Status: models.StatusPass}}}
	failing := &check.Result{Rows: []models.ResultRow{{Marker: "A", Threshold: 50, Average: &avg, Status: models.StatusFail}}}

	tests := []struct {
		name         string
		cfg          config.Config
		result       *check.Result
		client       *fakeRunClient
		wantRunID    string
		wantErr      bool
		wantCreated  int
		wantStatuses []models.RunStatus
		wantUploads  []string
	}{
		{
			name:         "new run finished",
			cfg:          config.Config{ExperimentID: "3", Registry: "markers.xlsx"},
			result:       passing,
			client:       &fakeRunClient{},
			wantRunID:    "run-9",
			wantCreated:  1,
			wantStatuses: []models.RunStatus{models.RunStatusFinished},
		},
		{
			name:         "new run with failing marker",
			cfg:          config.Config{ExperimentID: "3"},
			result:       failing,
			client:       &fakeRunClient{},
			wantRunID:    "run-9",
			wantCreated:  1,
			wantStatuses: []models.RunStatus{models.RunStatusFailed},
		},
		{
			name:         "new run ended when logging fails",
			cfg:          config.Config{ExperimentID: "3"},
			result:       passing,
			client:       &fakeRunClient{batchErr: errors.New("server unavailable")},
			wantErr:      true,
			wantCreated:  1,
			wantStatuses: []models.RunStatus{models.RunStatusFailed},
		},
		{
			name:         "new run ended when upload fails",
			cfg:          config.Config{ExperimentID: "3", UploadReport: true, Output: "r.xlsx"},
			result:       passing,
			client:       &fakeRunClient{uploadErr: errors.New("forbidden")},
			wantErr:      true,
			wantCreated:  1,
			wantStatuses: []models.RunStatus{models.RunStatusFailed},
		},
		{
			name:        "existing run left open",
			cfg:         config.Config{RunID: "run-1", UploadReport: true, Output: "r.xlsx"},
			result:      passing,
			client:      &fakeRunClient{},
			wantRunID:   "run-1",
			wantUploads: []string{"r.xlsx"},
		},
		{
			name:    "existing run not ended on failure",
			cfg:     config.Config{RunID: "run-1"},
			result:  passing,
			client:  &fakeRunClient{batchErr: errors.New("server unavailable")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runID, err := publishWith(context.Background(), tt.client, &tt.cfg, timeutils.RoundHalfEven, tt.result, logger.Discard())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRunID, runID)
				assert.Len(t, tt.client.batches, 1)
			}
			assert.Len(t, tt.client.created, tt.wantCreated)
			assert.Equal(t, tt.wantStatuses, tt.client.statuses)
			assert.Equal(t, tt.wantUploads, tt.client.uploads)
		})
	}
}
