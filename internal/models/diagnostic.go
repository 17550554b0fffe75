package models

import (
	"fmt"
	"strings"
)

type DiagnosticKind string

const (
	DiagnosticMissingSource      DiagnosticKind = "missing_source"
	DiagnosticUnreadableSource   DiagnosticKind = "unreadable_source"
	DiagnosticNoMatch            DiagnosticKind = "no_match"
	DiagnosticMalformedTimestamp DiagnosticKind = "malformed_timestamp"
	DiagnosticUnknownMarker      DiagnosticKind = "unknown_marker"
)

// Diagnostic describes one skipped source, line or observation. Line is
// 1-based and zero for source-level diagnostics.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Source  string         `json:"source" yaml:"source"`
	Line    int            `json:"line,omitempty" yaml:"line,omitempty"`
	Content string         `json:"content,omitempty" yaml:"content,omitempty"`
	Marker  string         `json:"marker,omitempty" yaml:"marker,omitempty"`
	Err     error          `json:"-" yaml:"-"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	b.WriteString(": ")
	b.WriteString(d.Source)
	if d.Line > 0 {
		fmt.Fprintf(&b, ":%d", d.Line)
	}
	if d.Marker != "" {
		fmt.Fprintf(&b, ": marker %q", d.Marker)
	} else if d.Content != "" {
		fmt.Fprintf(&b, ": %q", d.Content)
	}
	if d.Err != nil && d.Kind != DiagnosticUnknownMarker {
		fmt.Fprintf(&b, " (%v)", d.Err)
	}
	return b.String()
}

func (d Diagnostic) Error() string {
	return d.String()
}
