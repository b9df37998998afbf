// Package extract orchestrates schema-driven transaction extraction over a
// parsed document: one vendor call per layout chunk, fanned out across a
// bounded worker pool and merged back in chunk order.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/transaction"
)

// ErrNoContent indicates the parsed document has neither usable chunks nor
// full-document markdown, so there is nothing to extract from.
var ErrNoContent = errors.New("no markdown content available for extraction")

// DefaultWorkers is the bounded parallelism for per-chunk extraction calls.
// Each call is a blocking network round-trip; four in flight keeps long
// statements fast without hammering the vendor.
const DefaultWorkers = 4

// Extractor performs one structured extraction call over a markdown
// fragment. Implementations: the vendor client and the Gemini backend.
type Extractor interface {
	Extract(ctx context.Context, markdown string, schemaJSON []byte) (map[string]any, error)
}

// ProgressFunc receives fraction-complete in [0,1] and a short message.
// Deliveries are serialized and never decrease.
type ProgressFunc func(fraction float64, message string)

// Engine runs chunked extraction. Both output modes (typed transactions and
// raw maps) share one traversal so ordering, failure absorption, and
// progress semantics cannot diverge.
type Engine struct {
	extractor Extractor
	workers   int
	log       zerolog.Logger
}

// NewEngine creates an extraction engine. workers <= 0 selects
// DefaultWorkers.
func NewEngine(extractor Extractor, workers int, log zerolog.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{extractor: extractor, workers: workers, log: log}
}

// Transactions extracts typed, normalized transactions from a parsed
// document. Every raw row passes through the Transaction constructor, so
// amounts are sign-resolved on the way out.
func (e *Engine) Transactions(ctx context.Context, doc *docparse.ParsedDocument, schemaJSON []byte, onProgress ProgressFunc) ([]transaction.Transaction, error) {
	rows, err := e.extractRows(ctx, doc, schemaJSON, onProgress)
	if err != nil {
		return nil, err
	}
	txs := make([]transaction.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, transaction.FromRaw(row))
	}
	return txs, nil
}

// TransactionsRaw extracts transactions as untyped maps, preserving whatever
// fields the active schema produced. Used for custom schemas where the user
// decides the field set.
func (e *Engine) TransactionsRaw(ctx context.Context, doc *docparse.ParsedDocument, schemaJSON []byte, onProgress ProgressFunc) ([]map[string]any, error) {
	return e.extractRows(ctx, doc, schemaJSON, onProgress)
}

type chunkJob struct {
	slot     int // position in the results slice; ascending chunk order
	chunkIdx int // original chunk index, for logging
	markdown string
}

// extractRows is the single traversal behind both output modes.
//
// Chunks with empty markdown contribute nothing. A chunk whose extraction
// call fails contributes zero rows and is logged; it never aborts the
// document. The merged result follows ascending chunk index order no matter
// in which order the concurrent calls finish. With no usable chunks the
// engine falls back to one call over the full markdown.
func (e *Engine) extractRows(ctx context.Context, doc *docparse.ParsedDocument, schemaJSON []byte, onProgress ProgressFunc) ([]map[string]any, error) {
	var jobs []chunkJob
	for i := range doc.Chunks {
		if doc.Chunks[i].Markdown == "" {
			continue
		}
		jobs = append(jobs, chunkJob{slot: len(jobs), chunkIdx: i, markdown: doc.Chunks[i].Markdown})
	}

	if len(jobs) == 0 {
		if doc.Markdown == "" {
			return nil, ErrNoContent
		}
		e.log.Info().Msg("No usable chunks, extracting from full markdown")
		result, err := e.extractor.Extract(ctx, doc.Markdown, schemaJSON)
		if err != nil {
			return nil, fmt.Errorf("full markdown extraction: %w", err)
		}
		return rowsFromResult(result), nil
	}

	total := len(jobs)
	e.log.Info().Int("chunks", total).Int("workers", e.workers).Msg("Extracting chunks concurrently")

	// Fan-out over a bounded worker pool; each worker writes only its own
	// slot, and the fan-in barrier below is the only reader.
	results := make([][]map[string]any, total)
	jobCh := make(chan chunkJob)

	var progressMu sync.Mutex
	completed := 0
	reportDone := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(float64(completed)/float64(total), fmt.Sprintf("Extracted chunk %d/%d", completed, total))
		}
	}

	var wg sync.WaitGroup
	workers := e.workers
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				result, err := e.extractor.Extract(ctx, job.markdown, schemaJSON)
				if err != nil {
					// A bad chunk contributes zero rows; the rest of the
					// document still extracts.
					e.log.Error().Err(err).Int("chunk", job.chunkIdx).Msg("Chunk extraction failed")
				} else {
					results[job.slot] = rowsFromResult(result)
					e.log.Debug().Int("chunk", job.chunkIdx).Int("transactions", len(results[job.slot])).Msg("Chunk extracted")
				}
				reportDone()
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	var all []map[string]any
	for _, rows := range results {
		all = append(all, rows...)
	}
	return all, nil
}

// rowsFromResult pulls the transaction list out of one extraction result.
// Elements that are not objects are dropped.
func rowsFromResult(result map[string]any) []map[string]any {
	list, ok := result["transactions"].([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
