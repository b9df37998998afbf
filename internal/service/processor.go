// Package service orchestrates statement processing end to end: parse (or
// reuse a cached parse), extract transactions, render CSV, persist, and
// optionally export, reporting progress throughout.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/progress"
	"github.com/dvloznov/statement-extractor/internal/schema"
	"github.com/dvloznov/statement-extractor/internal/storage"
	"github.com/dvloznov/statement-extractor/internal/transaction"
)

// ErrNotParsed indicates extraction was requested for a file that has no
// cached parse output yet. Callers parse first or use ProcessFile.
var ErrNotParsed = errors.New("document has not been parsed yet")

// Parser turns raw statement bytes into a parsed document, reporting
// parse progress as a fraction in [0,1]. Implemented by the vendor client.
type Parser interface {
	Parse(ctx context.Context, content []byte, onProgress func(fraction float64, message string)) (*docparse.ParsedDocument, error)
}

// Exporter receives extracted transactions after a successful run.
// Export failures are logged, never fatal.
type Exporter interface {
	Export(ctx context.Context, folderID, filename string, txs []transaction.Transaction) error
}

// Processor runs the statement processing pipeline against a storage
// backend. A nil exporter disables export.
type Processor struct {
	store    storage.Backend
	parser   Parser
	engine   *extract.Engine
	tracker  *progress.Tracker
	exporter Exporter
	log      zerolog.Logger
}

// NewProcessor wires a processing service.
func NewProcessor(store storage.Backend, parser Parser, engine *extract.Engine, tracker *progress.Tracker, exporter Exporter, log zerolog.Logger) *Processor {
	return &Processor{
		store:    store,
		parser:   parser,
		engine:   engine,
		tracker:  tracker,
		exporter: exporter,
		log:      log,
	}
}

// ProcessFile runs the full pipeline for one uploaded statement and returns
// the rendered CSV. A cached parse is reused unless forceReparse is set.
// The progress record is cleared on every exit path.
func (p *Processor) ProcessFile(ctx context.Context, folderID, filename string, forceReparse bool) (string, error) {
	defer p.tracker.Clear(folderID, filename)

	state := &pipelineState{folderID: folderID, filename: filename, forceReparse: forceReparse}
	pipe := newPipeline(
		&ensureParsedStep{p},
		&loadSchemaStep{p},
		&extractStep{p},
		&renderStep{p},
		&saveStep{p},
		&exportStep{p},
	)
	if err := pipe.execute(ctx, state); err != nil {
		return "", err
	}

	p.log.Info().
		Str("folder", folderID).
		Str("file", filename).
		Str("location", state.location).
		Msg("Statement processed")
	return state.csv, nil
}

// ParseFile parses one uploaded statement and caches the result, reusing an
// existing cache unless forceReparse is set.
func (p *Processor) ParseFile(ctx context.Context, folderID, filename string, forceReparse bool) (*docparse.ParsedDocument, error) {
	defer p.tracker.Clear(folderID, filename)

	state := &pipelineState{folderID: folderID, filename: filename, forceReparse: forceReparse}
	if err := (&ensureParsedStep{p}).execute(ctx, state); err != nil {
		return nil, err
	}
	return state.doc, nil
}

// ExtractFile re-runs extraction and rendering over an existing cached parse
// and returns the CSV. It never calls the parse API: a missing cache
// surfaces as ErrNotParsed.
func (p *Processor) ExtractFile(ctx context.Context, folderID, filename string) (string, error) {
	defer p.tracker.Clear(folderID, filename)

	doc, err := p.store.GetParsedOutput(ctx, folderID, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotParsed
	}
	if err != nil {
		return "", fmt.Errorf("load cached parse: %w", err)
	}

	state := &pipelineState{folderID: folderID, filename: filename, doc: doc}
	pipe := newPipeline(
		&loadSchemaStep{p},
		&extractStep{p},
		&renderStep{p},
		&saveStep{p},
		&exportStep{p},
	)
	if err := pipe.execute(ctx, state); err != nil {
		return "", err
	}
	return state.csv, nil
}

// Schema returns the extraction schema in effect for a file and whether it
// is a custom one. Files without a stored schema use the default.
func (p *Processor) Schema(ctx context.Context, folderID, filename string) (json.RawMessage, bool, error) {
	stored, err := p.store.GetExtractionSchema(ctx, folderID, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return schema.Default(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load extraction schema: %w", err)
	}
	return stored, true, nil
}

// UpdateSchema validates and stores a custom extraction schema for a file.
// Invalid submissions are rejected without touching stored state.
func (p *Processor) UpdateSchema(ctx context.Context, folderID, filename string, schemaJSON []byte) error {
	if err := schema.Validate(schemaJSON); err != nil {
		return err
	}
	if err := p.store.SaveExtractionSchema(ctx, folderID, filename, schemaJSON); err != nil {
		return fmt.Errorf("save extraction schema: %w", err)
	}
	return nil
}

// DeleteSchema removes a file's custom schema, reporting whether one
// existed. Subsequent extractions fall back to the default schema.
func (p *Processor) DeleteSchema(ctx context.Context, folderID, filename string) (bool, error) {
	return p.store.DeleteExtractionSchema(ctx, folderID, filename)
}

// Status reports a file's processing progress. Files not currently being
// processed get a neutral idle status.
func (p *Processor) Status(folderID, filename string) progress.Status {
	if s, ok := p.tracker.Get(folderID, filename); ok {
		return s
	}
	return progress.Status{Phase: "idle", Message: "not processing"}
}
