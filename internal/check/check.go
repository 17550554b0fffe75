// Package check runs the marker timing check: scan log sources against a
// registry, average each marker's observations and classify the result.
package check

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imishinist/markercheck/internal/aggregate"
	"github.com/imishinist/markercheck/internal/classify"
	"github.com/imishinist/markercheck/internal/logger"
	"github.com/imishinist/markercheck/internal/models"
	"github.com/imishinist/markercheck/internal/parser"
	"github.com/imishinist/markercheck/internal/registry"
	timeutils "github.com/imishinist/markercheck/internal/time"
)

const byteOrderMark = "\uFEFF"

type Options struct {
	// Tolerance in milliseconds, inclusive.
	Tolerance float64
	Rounding  timeutils.Rounding
	// Concurrency is the number of sources scanned at once. Values below 1
	// mean 1.
	Concurrency int
	Logger      logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		Tolerance:   classify.DefaultTolerance,
		Rounding:    timeutils.RoundHalfEven,
		Concurrency: 1,
	}
}

type SourceStats struct {
	Source       string `json:"source" yaml:"source"`
	Found        bool   `json:"found" yaml:"found"`
	Lines        int    `json:"lines" yaml:"lines"`
	Blank        int    `json:"blank" yaml:"blank"`
	Observations int    `json:"observations" yaml:"observations"`
	NoMatch      int    `json:"no_match" yaml:"no_match"`
	Malformed    int    `json:"malformed_timestamp" yaml:"malformed_timestamp"`
	Unknown      int    `json:"unknown_marker" yaml:"unknown_marker"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is ordered: Rows follow the registry, Sources and Diagnostics
// follow the source order, then line number.
type Result struct {
	Rows        []models.ResultRow  `json:"rows" yaml:"rows"`
	Sources     []SourceStats       `json:"sources" yaml:"sources"`
	Diagnostics []models.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func (r *Result) Summary() models.Summary {
	return models.Summarize(r.Rows)
}

// Err folds every diagnostic into one error, or returns nil when the run was
// clean.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, d := range r.Diagnostics {
		merr = multierror.Append(merr, d)
	}
	return merr.ErrorOrNil()
}

// CountDiagnostics returns the number of diagnostics of each kind.
func (r *Result) CountDiagnostics() map[models.DiagnosticKind]int {
	counts := make(map[models.DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		counts[d.Kind]++
	}
	return counts
}

type sourceScan struct {
	agg   *aggregate.Aggregator
	stats SourceStats
	diags []models.Diagnostic
}

// Run scans sources in order against reg and returns one row per registry
// marker. Missing sources and bad lines become diagnostics; only invalid
// options or a cancelled context return an error.
func Run(ctx context.Context, reg *registry.Registry, sources []Source, opts Options) (*Result, error) {
	rounding, err := timeutils.ParseRounding(string(opts.Rounding))
	if err != nil {
		return nil, err
	}
	if opts.Tolerance < 0 || math.IsNaN(opts.Tolerance) || math.IsInf(opts.Tolerance, 0) {
		return nil, fmt.Errorf("invalid tolerance: %v", opts.Tolerance)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	scans, err := scanAll(ctx, reg, sources, opts.Concurrency, log)
	if err != nil {
		return nil, err
	}

	total := aggregate.New(reg)
	result := &Result{
		Sources:     make([]SourceStats, 0, len(scans)),
		Diagnostics: []models.Diagnostic{},
	}
	for _, s := range scans {
		if s.agg != nil {
			if err := total.Merge(s.agg); err != nil {
				return nil, err
			}
		}
		result.Sources = append(result.Sources, s.stats)
		result.Diagnostics = append(result.Diagnostics, s.diags...)
	}

	averages, err := total.Averages(rounding)
	if err != nil {
		return nil, fmt.Errorf("failed to average observations: %w", err)
	}
	result.Rows = classify.New(opts.Tolerance).Classify(averages)

	summary := result.Summary()
	log.WithFields(logrus.Fields{
		"markers":     len(result.Rows),
		"pass":        summary.Pass,
		"fail":        summary.Fail,
		"no_data":     summary.NoData,
		"diagnostics": len(result.Diagnostics),
	}).Info("Marker check complete")

	return result, nil
}

func scanAll(ctx context.Context, reg *registry.Registry, sources []Source, concurrency int, log logrus.FieldLogger) ([]*sourceScan, error) {
	scans := make([]*sourceScan, len(sources))

	if concurrency <= 1 {
		for i, src := range sources {
			s, err := scanSource(ctx, reg, src, log)
			if err != nil {
				return nil, err
			}
			scans[i] = s
		}
		return scans, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			s, err := scanSource(gctx, reg, src, log)
			if err != nil {
				return err
			}
			scans[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scans, nil
}

// scanSource reads one source into its own aggregator. A source that fails
// part way through contributes no observations.
func scanSource(ctx context.Context, reg *registry.Registry, src Source, log logrus.FieldLogger) (*sourceScan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &sourceScan{stats: SourceStats{Source: src.Name}}
	srcLog := log.WithField("source", src.Name)

	rc, err := src.Open()
	if err != nil {
		kind := models.DiagnosticUnreadableSource
		if errors.Is(err, os.ErrNotExist) {
			kind = models.DiagnosticMissingSource
			srcLog.Warn("Log source not found")
		} else {
			srcLog.WithError(err).Warn("Failed to open log source")
		}
		s.stats.Error = err.Error()
		s.diags = append(s.diags, models.Diagnostic{Kind: kind, Source: src.Name, Err: err})
		return s, nil
	}
	defer rc.Close()

	s.stats.Found = true
	agg := aggregate.New(reg)
	if err := s.scanLines(ctx, rc, agg, srcLog); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		srcLog.WithError(err).Warn("Failed to read log source, skipping it")
		s.stats.Error = err.Error()
		s.diags = append(s.diags, models.Diagnostic{Kind: models.DiagnosticUnreadableSource, Source: src.Name, Err: err})
		return s, nil
	}
	s.agg = agg

	srcLog.WithFields(logrus.Fields{
		"lines":        s.stats.Lines,
		"observations": s.stats.Observations,
	}).Debug("Scanned log source")

	return s, nil
}

func (s *sourceScan) scanLines(ctx context.Context, r io.Reader, agg *aggregate.Aggregator, log logrus.FieldLogger) error {
	return ReadLines(ctx, r, func(num int, line string) {
		s.stats.Lines = num
		s.scanLine(line, agg, log)
	})
}

// ReadLines calls fn with every line of r and its 1-based number. Line
// endings and a leading byte order mark are removed. A final line without a
// newline is still delivered.
func ReadLines(ctx context.Context, r io.Reader, fn func(num int, line string)) error {
	br := bufio.NewReader(r)
	num := 0

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if len(line) > 0 {
			num++
			if num == 1 {
				line = strings.TrimPrefix(line, byteOrderMark)
			}
			fn(num, strings.TrimRight(line, "\r\n"))

			if num%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

func (s *sourceScan) scanLine(content string, agg *aggregate.Aggregator, log logrus.FieldLogger) {
	if strings.TrimSpace(content) == "" {
		s.stats.Blank++
		return
	}

	diag := models.Diagnostic{Source: s.stats.Source, Line: s.stats.Lines, Content: content}
	llog := log.WithField("line", s.stats.Lines)

	obs, err := parser.ParseLine(content)
	switch {
	case errors.Is(err, parser.ErrMalformedTimestamp):
		s.stats.Malformed++
		diag.Kind = models.DiagnosticMalformedTimestamp
		diag.Err = err
		llog.WithField("content", content).Warn("Invalid timestamp in line")
		s.diags = append(s.diags, diag)
		return
	case err != nil:
		s.stats.NoMatch++
		diag.Kind = models.DiagnosticNoMatch
		diag.Err = err
		llog.WithField("content", content).Debug("Line does not match marker format")
		s.diags = append(s.diags, diag)
		return
	}

	if err := agg.Add(obs); err != nil {
		s.stats.Unknown++
		diag.Kind = models.DiagnosticUnknownMarker
		diag.Marker = obs.Marker
		diag.Err = err
		llog.WithField("marker", obs.Marker).Warn("Marker not found in registry")
		s.diags = append(s.diags, diag)
		return
	}

	s.stats.Observations++
	llog.WithFields(logrus.Fields{
		"marker": obs.Marker,
		"micros": obs.Micros,
	}).Debug("Added timestamp")
}
