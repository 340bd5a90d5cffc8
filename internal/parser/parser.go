// Package parser defines the document parsing capability consumed by the
// pipeline, plus a built-in extraction engine for text-family formats.
// Parsed documents travel through the rest of the system as opaque handles;
// Export is the only consumer that looks inside one.
package parser

import (
	"context"
	"errors"
	"fmt"
)

// Format is a supported export format name.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// SupportedFormats lists every export format the pipeline accepts.
var SupportedFormats = []Format{FormatText, FormatMarkdown, FormatHTML, FormatJSON}

// ParseFormat validates a raw format string against the supported set.
func ParseFormat(s string) (Format, bool) {
	for _, f := range SupportedFormats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Handle is an opaque reference to a parsed document. Ownership transfers to
// whoever stores it; only Export interprets it.
type Handle any

// Options configure a parse invocation.
type Options struct {
	EnableOCR         bool `json:"enable_ocr"`
	ExtractTables     bool `json:"extract_tables"`
	PreserveHierarchy bool `json:"preserve_hierarchy"`
}

// Metadata describes the outcome of a parse.
type Metadata struct {
	Filename           string `json:"filename"`
	PageCount          int    `json:"page_count,omitempty"`
	HasTables          bool   `json:"has_tables"`
	StructurePreserved bool   `json:"structure_preserved"`
}

// Parser converts raw uploaded bytes into an opaque handle and renders a
// handle into textual formats. Implementations must be safe for concurrent
// use; a single Parse or Export call may block on I/O.
type Parser interface {
	// Parse converts content into a handle plus metadata.
	Parse(ctx context.Context, content []byte, filename string, opts Options) (Handle, Metadata, error)
	// Export renders a handle into the requested format.
	Export(ctx context.Context, h Handle, format Format) (string, error)
}

// ErrUnavailable signals that the underlying capability (e.g. an OCR engine)
// is not installed or failed to initialize. Callers can degrade gracefully
// rather than treating the artifact as faulty.
var ErrUnavailable = errors.New("parser: capability unavailable")

// ParseError reports that the parser ran but could not process the artifact.
// The content itself is presumed at fault; not retried.
type ParseError struct {
	Filename string
	Cause    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Filename, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExportError reports a failure rendering an already-parsed handle.
type ExportError struct {
	Format Format
	Cause  string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %s", e.Format, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Err }
