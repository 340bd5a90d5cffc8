package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docpipe/internal/doccache"
	"docpipe/internal/filestore"
	"docpipe/internal/model"
	"docpipe/internal/parser"
)

// ErrInvalidFormat is returned when a requested export format is outside the
// supported set. A caller input error; never retried.
var ErrInvalidFormat = errors.New("pipeline: unsupported export format")

// ParseResult is what a successful parse hands back to the caller.
type ParseResult struct {
	DocID    string          `json:"doc_id"`
	Metadata parser.Metadata `json:"metadata"`
}

// Pipeline composes the upload store, an external parser capability and the
// document cache to enforce "parse at most once, export lazily, memoize".
//
// Two concurrent ParseOnce calls for the same file id are not deduplicated:
// each produces an independent cache entry. Cache ids are caller-visible and
// callers are expected to parse once and reuse the returned id.
type Pipeline struct {
	files   *filestore.FileStore
	cache   *doccache.Cache
	parser  parser.Parser
	metrics *Metrics
	tracer  trace.Tracer
}

// New constructs a pipeline. metrics may be nil (instrumentation disabled).
func New(files *filestore.FileStore, cache *doccache.Cache, p parser.Parser, metrics *Metrics) *Pipeline {
	return &Pipeline{
		files:   files,
		cache:   cache,
		parser:  p,
		metrics: metrics,
		tracer:  otel.Tracer("docpipe/pipeline"),
	}
}

// ParseOnce reads the staged bytes, invokes the parser exactly once and
// caches the resulting handle with an empty format map. Returns
// filestore.ErrNotFound if the file id is unknown or expired. No lock is
// held while the parser runs.
func (p *Pipeline) ParseOnce(ctx context.Context, fileID string, opts parser.Options) (*ParseResult, error) {
	meta, err := p.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	content, err := p.files.Read(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.parse",
		trace.WithAttributes(attribute.String("file.id", fileID), attribute.String("file.name", meta.Filename)))
	handle, parseMeta, err := p.parser.Parse(ctx, content, meta.Filename, opts)
	span.End()
	if err != nil {
		return nil, err
	}
	p.metrics.incParses()

	docID := p.cache.Put("", meta.Filename, handle, nil, 0)
	return &ParseResult{DocID: docID, Metadata: parseMeta}, nil
}

// ExportFormat returns the rendering of a cached document in the given
// format, computing and memoizing it on first request. Subsequent calls for
// the same (doc, format) pair return the stored string without re-invoking
// the parser.
func (p *Pipeline) ExportFormat(ctx context.Context, docID string, format parser.Format) (string, error) {
	if _, ok := parser.ParseFormat(string(format)); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	entry, err := p.cache.Get(docID)
	if err != nil {
		return "", err
	}

	if content, ok := entry.Formats[string(format)]; ok {
		p.metrics.incExportHit()
		return content, nil
	}
	p.metrics.incExportMiss()

	ctx, span := p.tracer.Start(ctx, "pipeline.export",
		trace.WithAttributes(attribute.String("doc.id", docID), attribute.String("export.format", string(format))))
	content, err := p.parser.Export(ctx, entry.Handle, format)
	span.End()
	if err != nil {
		return "", err
	}

	// The entry may expire between Get and the merge; the rendering is still
	// valid for this caller, so the merge result is deliberately ignored.
	p.cache.UpdateFormats(docID, map[string]string{string(format): content})
	return content, nil
}

// ExportAll renders each requested format independently, best-effort. The
// first map holds successful renderings, the second maps failed formats to
// human-readable reasons.
func (p *Pipeline) ExportAll(ctx context.Context, docID string, formats []parser.Format) (map[string]string, map[string]string) {
	results := make(map[string]string)
	failures := make(map[string]string)
	for _, f := range formats {
		content, err := p.ExportFormat(ctx, docID, f)
		if err != nil {
			failures[string(f)] = err.Error()
			continue
		}
		results[string(f)] = content
	}
	return results, failures
}

// DeleteDocument evicts a cached document. Returns false if absent.
func (p *Pipeline) DeleteDocument(docID string) bool {
	return p.cache.Delete(docID)
}

// Document returns the cached summary view for a document id.
func (p *Pipeline) Document(docID string) (*doccache.Entry, error) {
	return p.cache.Get(docID)
}

// Stats aggregates the store and cache views.
func (p *Pipeline) Stats(ctx context.Context) model.PipelineStats {
	return model.PipelineStats{
		FileStore: p.files.Stats(ctx),
		Cache:     p.cache.Stats(),
	}
}
