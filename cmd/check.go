package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imishinist/markercheck/internal/check"
	"github.com/imishinist/markercheck/internal/config"
	"github.com/imishinist/markercheck/internal/logger"
	"github.com/imishinist/markercheck/internal/mlflow"
	"github.com/imishinist/markercheck/internal/models"
	"github.com/imishinist/markercheck/internal/registry"
	"github.com/imishinist/markercheck/internal/report"
	timeutils "github.com/imishinist/markercheck/internal/time"
)

var checkCmd = &cobra.Command{
	Use:   "check [log-file...]",
	Short: "Check marker timings against the registry",
	Long: `Read the marker registry, scan every log file for lines of the form
"<digits>[us]: <marker>", average each marker's timestamps in milliseconds and
compare the average with the marker's threshold.

Log files come from the config file, --log flags and positional arguments, in
that order. Missing files and unrecognised lines are reported but never stop
the check.`,
	Example: `  # Print a table for two log files
  markercheck check --registry markers.xlsx soc1-1.txt soc1-2.txt

  # Write the colored workbook, failing CI when a marker is out of tolerance
  markercheck check --registry markers.xlsx --log soc1-1.txt -o Result/average_timestamps-final.xlsx --fail-on-fail

  # Publish averages and statuses to a new MLflow run
  markercheck check --registry markers.csv --experiment-id 3 --tracking-uri http://localhost:5000 soc1-*.txt`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("registry", "", "Marker registry file (.xlsx/.csv/.json/.yaml)")
	checkCmd.Flags().String("registry-sheet", "", "Worksheet holding the registry (default: first sheet)")
	checkCmd.Flags().StringArray("log", []string{}, "Log file to scan (can be specified multiple times)")
	checkCmd.Flags().StringP("output", "o", "", "Report file (default: print to stdout)")
	checkCmd.Flags().String("format", "", "Report format (xlsx/json/yaml/csv/table, default: from output extension)")
	checkCmd.Flags().Float64("tolerance", 10, "Allowed deviation from the threshold in milliseconds")
	checkCmd.Flags().String("rounding", "", "Rounding of averages to whole milliseconds (half-even/half-up)")
	checkCmd.Flags().Int("concurrency", 1, "Number of log files scanned at once")
	checkCmd.Flags().Bool("strict", false, "Exit with status 3 when any line or file was skipped")
	checkCmd.Flags().Bool("fail-on-fail", false, "Exit with status 2 when any marker fails")
	checkCmd.Flags().String("run-id", "", "MLflow run to publish results to (overrides MLFLOW_RUN_ID)")
	checkCmd.Flags().String("run-name", "", "Name of the MLflow run created when only an experiment ID is given")
	checkCmd.Flags().Bool("upload-report", false, "Upload the report file as an MLflow artifact")

	for key, flag := range map[string]string{
		"registry":       "registry",
		"registry_sheet": "registry-sheet",
		"output":         "output",
		"format":         "format",
		"tolerance":      "tolerance",
		"rounding":       "rounding",
		"concurrency":    "concurrency",
		"strict":         "strict",
		"fail_on_fail":   "fail-on-fail",
		"run_id":         "run-id",
		"run_name":       "run-name",
		"upload_report":  "upload-report",
	} {
		viper.BindPFlag(key, checkCmd.Flags().Lookup(flag))
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	// --log adds to the configured list instead of replacing it
	flagLogs, _ := cmd.Flags().GetStringArray("log")
	logs := make([]string, 0, len(cfg.Logs)+len(flagLogs)+len(args))
	logs = append(logs, cfg.Logs...)
	logs = append(logs, flagLogs...)
	cfg.Logs = append(logs, args...)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	format, err := resolveFormat(cfg)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reg, err := registry.Load(cfg.Registry, cfg.RegistrySheet, log)
	if err != nil {
		return err
	}

	rounding, err := timeutils.ParseRounding(cfg.Rounding)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := check.Run(ctx, reg, check.FileSources(cfg.Logs), check.Options{
		Tolerance:   cfg.Tolerance,
		Rounding:    rounding,
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("marker check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Output == "" {
		if err := report.Render(out, format, result.Rows); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	} else {
		if err := report.WriteFile(cfg.Output, format, result.Rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report saved to %s\n", cfg.Output)
	}

	// keep machine-readable output on stdout parseable
	piped := cfg.Output == "" && format != report.FormatTable
	if !piped {
		printSummary(out, result)
	}

	if cfg.PublishEnabled() {
		if err := publishResults(ctx, out, cfg, rounding, result, log); err != nil {
			return err
		}
	}

	summary := result.Summary()
	if cfg.FailOnFail && summary.Fail > 0 {
		return &ExitError{Code: ExitMarkersFailed, Err: fmt.Errorf("%d of %d markers failed", summary.Fail, len(result.Rows))}
	}
	if cfg.Strict && len(result.Diagnostics) > 0 {
		return &ExitError{Code: ExitDiagnostics, Err: fmt.Errorf("skipped input: %w", result.Err())}
	}

	return nil
}

// resolveFormat picks the explicit format, else the output extension, else a
// plain table on stdout.
func resolveFormat(cfg *config.Config) (report.Format, error) {
	var format report.Format
	switch {
	case cfg.Format != "":
		f, err := report.ParseFormat(cfg.Format)
		if err != nil {
			return "", err
		}
		format = f
	case cfg.Output != "":
		format = report.FormatFromPath(cfg.Output)
	default:
		format = report.FormatTable
	}

	if format == report.FormatXLSX && cfg.Output == "" {
		return "", fmt.Errorf("xlsx reports need an output file (--output)")
	}
	return format, nil
}

func printSummary(w io.Writer, result *check.Result) {
	summary := result.Summary()
	fmt.Fprintf(w, "\nMarkers: %d (pass: %d, fail: %d, no data: %d)\n",
		len(result.Rows), summary.Pass, summary.Fail, summary.NoData)

	for _, src := range result.Sources {
		if !src.Found {
			fmt.Fprintf(w, "  %s: not found\n", src.Source)
			continue
		}
		if src.Error != "" {
			fmt.Fprintf(w, "  %s: skipped (%s)\n", src.Source, src.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %d observations from %d lines\n", src.Source, src.Observations, src.Lines)
	}

	counts := result.CountDiagnostics()
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "Skipped input:")
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", kind, counts[models.DiagnosticKind(kind)])
	}
}

func publishResults(ctx context.Context, out io.Writer, cfg *config.Config, rounding timeutils.Rounding, result *check.Result, log logrus.FieldLogger) error {
	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MLflow client: %w", err)
	}

	runID, err := publishWith(ctx, client, cfg, rounding, result, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Published results to MLflow run %s\n", runID)
	return nil
}

// runClient is the part of the MLflow client used when publishing.
type runClient interface {
	mlflow.Tracker
	CreateRun(ctx context.Context, config models.RunConfig) (*models.RunInfo, error)
	UpdateRun(ctx context.Context, runID string, status models.RunStatus) error
	UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error
}

// publishWith logs the results to the configured run, or to a new run in the
// configured experiment. A run created here is always ended, as FAILED when
// publishing did not complete.
func publishWith(ctx context.Context, client runClient, cfg *config.Config, rounding timeutils.Rounding, result *check.Result, log logrus.FieldLogger) (string, error) {
	if cfg.RunID != "" {
		return cfg.RunID, publishToRun(ctx, client, cfg.RunID, cfg, rounding, result)
	}

	run, err := client.CreateRun(ctx, models.RunConfig{
		ExperimentID: cfg.ExperimentID,
		RunName:      cfg.RunName,
		Tags:         map[string]string{"markercheck.registry": filepath.Base(cfg.Registry)},
	})
	if err != nil {
		return "", err
	}
	runID := run.RunID
	log.WithField("run_id", runID).Info("Created MLflow run")

	if err := publishToRun(ctx, client, runID, cfg, rounding, result); err != nil {
		if endErr := client.UpdateRun(ctx, runID, models.RunStatusFailed); endErr != nil {
			log.WithError(endErr).WithField("run_id", runID).Warn("Failed to end MLflow run")
		}
		return "", err
	}
	if err := client.UpdateRun(ctx, runID, mlflow.RunStatusFor(result.Summary())); err != nil {
		return "", err
	}
	return runID, nil
}

func publishToRun(ctx context.Context, client runClient, runID string, cfg *config.Config, rounding timeutils.Rounding, result *check.Result) error {
	err := mlflow.Publish(ctx, client, runID, result.Rows, mlflow.PublishOptions{
		Timestamp: time.Now(),
		Params: map[string]string{
			"tolerance_ms": report.FormatThreshold(cfg.Tolerance),
			"rounding":     string(rounding),
			"log_files":    fmt.Sprint(len(cfg.Logs)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish results: %w", err)
	}

	if cfg.UploadReport {
		if err := client.UploadArtifact(ctx, runID, cfg.Output, ""); err != nil {
			return fmt.Errorf("failed to upload report: %w", err)
		}
	}
	return nil
}
