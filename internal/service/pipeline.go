package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/render"
	"github.com/dvloznov/statement-extractor/internal/schema"
	"github.com/dvloznov/statement-extractor/internal/storage"
	"github.com/dvloznov/statement-extractor/internal/transaction"
)

// Progress phases shown to clients polling Status.
const (
	phaseParsing    = "Parsing"
	phaseExtracting = "Extracting"
	phaseRendering  = "Generating CSV"
	phaseSaving     = "Saving results"
)

// pipelineState is the shared state threaded through the pipeline steps.
type pipelineState struct {
	folderID     string
	filename     string
	forceReparse bool

	doc          *docparse.ParsedDocument
	schemaJSON   json.RawMessage
	customSchema bool

	transactions []transaction.Transaction
	rows         []map[string]any

	csv      string
	location string
}

// pipelineStep is one stage of statement processing.
type pipelineStep interface {
	execute(ctx context.Context, state *pipelineState) error
}

// pipeline executes steps in order, stopping at the first failure.
type pipeline struct {
	steps []pipelineStep
}

func newPipeline(steps ...pipelineStep) *pipeline {
	return &pipeline{steps: steps}
}

func (p *pipeline) execute(ctx context.Context, state *pipelineState) error {
	for i, step := range p.steps {
		if err := step.execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// ensureParsedStep produces a parsed document: from the cache when present
// (unless a reparse is forced), otherwise via the vendor parse API. A fresh
// parse is cached before the step returns, so a later extraction failure
// never costs a re-parse.
type ensureParsedStep struct{ p *Processor }

func (s *ensureParsedStep) execute(ctx context.Context, state *pipelineState) error {
	p := s.p
	p.tracker.Update(state.folderID, state.filename, phaseParsing, "Parsing document", 10)

	if !state.forceReparse {
		doc, err := p.store.GetParsedOutput(ctx, state.folderID, state.filename)
		if err == nil {
			p.log.Info().Str("file", state.filename).Msg("Using cached parse output")
			p.tracker.Update(state.folderID, state.filename, phaseParsing, "Using cached parse", 50)
			state.doc = doc
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load cached parse: %w", err)
		}
	}

	content, err := p.store.ReadFileContent(ctx, state.folderID, state.filename)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	doc, err := p.parser.Parse(ctx, content, func(fraction float64, message string) {
		p.tracker.Update(state.folderID, state.filename, phaseParsing, message, 10+int(fraction*30))
	})
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	location, err := p.store.SaveParsedOutput(ctx, state.folderID, state.filename, doc)
	if err != nil {
		return fmt.Errorf("cache parse output: %w", err)
	}
	p.log.Info().Str("file", state.filename).Str("location", location).Msg("Parse output cached")

	state.doc = doc
	return nil
}

// loadSchemaStep selects the extraction schema: the file's stored custom
// schema when one exists, otherwise the default. Custom schemas switch the
// downstream steps to dynamic (untyped) mode.
type loadSchemaStep struct{ p *Processor }

func (s *loadSchemaStep) execute(ctx context.Context, state *pipelineState) error {
	stored, err := s.p.store.GetExtractionSchema(ctx, state.folderID, state.filename)
	if errors.Is(err, storage.ErrNotFound) {
		state.schemaJSON = schema.Default()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load extraction schema: %w", err)
	}
	state.schemaJSON = stored
	state.customSchema = true
	return nil
}

// extractStep runs chunked extraction, mapping engine progress onto the
// 40-75 band of the overall run.
type extractStep struct{ p *Processor }

func (s *extractStep) execute(ctx context.Context, state *pipelineState) error {
	p := s.p
	p.tracker.Update(state.folderID, state.filename, phaseExtracting, "Extracting transactions", 40)
	onProgress := func(fraction float64, message string) {
		p.tracker.Update(state.folderID, state.filename, phaseExtracting, message, 40+int(fraction*35))
	}

	var err error
	if state.customSchema {
		state.rows, err = p.engine.TransactionsRaw(ctx, state.doc, state.schemaJSON, onProgress)
	} else {
		state.transactions, err = p.engine.Transactions(ctx, state.doc, state.schemaJSON, onProgress)
	}
	if err != nil {
		return fmt.Errorf("extract transactions: %w", err)
	}
	return nil
}

// renderStep projects the extraction result into CSV.
type renderStep struct{ p *Processor }

func (s *renderStep) execute(_ context.Context, state *pipelineState) error {
	s.p.tracker.Update(state.folderID, state.filename, phaseRendering, "Generating CSV", 80)

	var err error
	if state.customSchema {
		state.csv, err = render.DynamicCSV(state.rows, state.schemaJSON)
	} else {
		state.csv, err = render.FixedCSV(state.transactions)
	}
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	return nil
}

// saveStep persists the rendered CSV.
type saveStep struct{ p *Processor }

func (s *saveStep) execute(ctx context.Context, state *pipelineState) error {
	s.p.tracker.Update(state.folderID, state.filename, phaseSaving, "Saving results", 95)

	location, err := s.p.store.SaveProcessedFile(ctx, state.folderID, state.filename, state.csv)
	if err != nil {
		return fmt.Errorf("save processed file: %w", err)
	}
	state.location = location
	return nil
}

// exportStep forwards typed transactions to the configured exporter.
// Best effort: export problems are logged, the run still succeeds. Dynamic
// runs are skipped since their field set is user-defined.
type exportStep struct{ p *Processor }

func (s *exportStep) execute(ctx context.Context, state *pipelineState) error {
	p := s.p
	if p.exporter == nil || state.customSchema {
		return nil
	}
	if err := p.exporter.Export(ctx, state.folderID, state.filename, state.transactions); err != nil {
		p.log.Error().Err(err).Str("file", state.filename).Msg("Transaction export failed")
	}
	return nil
}
