package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/docparse"
	"github.com/dvloznov/statement-extractor/internal/schema"
)

// fakeExtractor returns canned rows per markdown fragment, with optional
// per-fragment delays and failures, and counts calls.
type fakeExtractor struct {
	rows     map[string][]any
	delays   map[string]time.Duration
	failures map[string]error
	calls    int64
}

func (f *fakeExtractor) Extract(_ context.Context, markdown string, _ []byte) (map[string]any, error) {
	atomic.AddInt64(&f.calls, 1)
	if d, ok := f.delays[markdown]; ok {
		time.Sleep(d)
	}
	if err, ok := f.failures[markdown]; ok {
		return nil, err
	}
	return map[string]any{"transactions": f.rows[markdown]}, nil
}

func row(date, field, value string) map[string]any {
	return map[string]any{"date": date, field: value}
}

func docWithChunks(markdowns ...string) *docparse.ParsedDocument {
	doc := &docparse.ParsedDocument{Markdown: strings.Join(markdowns, "\n")}
	for i, md := range markdowns {
		doc.Chunks = append(doc.Chunks, docparse.Chunk{ID: fmt.Sprintf("c%d", i), Markdown: md})
	}
	return doc
}

func TestTransactions_OrderFollowsChunkIndex(t *testing.T) {
	// Five chunks; chunk 3 finishes last by a wide margin. Output order
	// must still be chunk 0..4.
	fake := &fakeExtractor{
		rows:   map[string][]any{},
		delays: map[string]time.Duration{"md2": 30 * time.Millisecond, "md3": 80 * time.Millisecond},
	}
	var markdowns []string
	for i := 0; i < 5; i++ {
		md := fmt.Sprintf("md%d", i)
		markdowns = append(markdowns, md)
		fake.rows[md] = []any{row(fmt.Sprintf("2024-01-0%d", i+1), "raw_amount", "10.00")}
	}

	engine := NewEngine(fake, 4, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(), docWithChunks(markdowns...), schema.Default(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 5)
	for i, tx := range txs {
		assert.Equal(t, fmt.Sprintf("2024-01-0%d", i+1), tx.Date)
	}
}

func TestTransactions_PartialChunkFailure(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{
			"md0": {row("2024-01-01", "raw_amount", "1.00")},
			"md1": {row("2024-01-02", "raw_amount", "2.00")},
			"md3": {row("2024-01-04", "raw_amount", "4.00")},
			"md4": {row("2024-01-05", "raw_amount", "5.00")},
		},
		failures: map[string]error{"md2": errors.New("vendor 500")},
	}

	engine := NewEngine(fake, 4, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(),
		docWithChunks("md0", "md1", "md2", "md3", "md4"), schema.Default(), nil)
	require.NoError(t, err, "a single bad chunk must not abort the document")
	require.Len(t, txs, 4)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-04", "2024-01-05"},
		[]string{txs[0].Date, txs[1].Date, txs[2].Date, txs[3].Date})
}

func TestTransactions_EmptyChunksSkipped(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{"md1": {row("2024-01-01", "raw_amount", "1.00")}},
	}
	doc := &docparse.ParsedDocument{
		Markdown: "full",
		Chunks: []docparse.Chunk{
			{ID: "empty"},
			{ID: "c1", Markdown: "md1"},
		},
	}

	engine := NewEngine(fake, 2, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(), doc, schema.Default(), nil)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.calls), "empty chunk must not trigger a call")
}

func TestTransactions_FallbackToFullMarkdown(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{"full statement": {row("2024-02-01", "credit_amount", "30.00")}},
	}
	doc := &docparse.ParsedDocument{Markdown: "full statement"}

	engine := NewEngine(fake, 4, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(), doc, schema.Default(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "+30.00", txs[0].Amount)
}

func TestTransactions_NoContent(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, 4, zerolog.Nop())
	_, err := engine.Transactions(context.Background(), &docparse.ParsedDocument{}, schema.Default(), nil)
	assert.True(t, errors.Is(err, ErrNoContent))
}

func TestTransactions_FullMarkdownFailurePropagates(t *testing.T) {
	fake := &fakeExtractor{failures: map[string]error{"only": errors.New("boom")}}
	doc := &docparse.ParsedDocument{Markdown: "only"}

	engine := NewEngine(fake, 4, zerolog.Nop())
	_, err := engine.Transactions(context.Background(), doc, schema.Default(), nil)
	assert.Error(t, err)
}

func TestTransactions_SignResolutionApplied(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{
			"md0": {map[string]any{"date": "2024-01-01", "debit_amount": "50.00"}},
			"md1": {map[string]any{"date": "2024-01-02", "credit_amount": "30.00"}},
		},
	}

	engine := NewEngine(fake, 2, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(), docWithChunks("md0", "md1"), schema.Default(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "-50.00", txs[0].Amount)
	assert.Equal(t, "+30.00", txs[1].Amount)
}

func TestTransactionsRaw_PreservesCustomFields(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{
			"md0": {map[string]any{"date": "2024-01-01", "category": "groceries", "merchant": "Acme"}},
		},
	}

	engine := NewEngine(fake, 2, zerolog.Nop())
	rows, err := engine.TransactionsRaw(context.Background(), docWithChunks("md0"), []byte(`{"type":"object"}`), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "groceries", rows[0]["category"])
	assert.Equal(t, "Acme", rows[0]["merchant"])
}

func TestTransactions_ProgressMonotonicAndComplete(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{},
		delays: map[string]time.Duration{
			"md0": 20 * time.Millisecond,
			"md2": 10 * time.Millisecond,
		},
	}
	for i := 0; i < 4; i++ {
		fake.rows[fmt.Sprintf("md%d", i)] = []any{}
	}

	var fractions []float64
	engine := NewEngine(fake, 4, zerolog.Nop())
	_, err := engine.Transactions(context.Background(),
		docWithChunks("md0", "md1", "md2", "md3"), schema.Default(),
		func(f float64, _ string) { fractions = append(fractions, f) })
	require.NoError(t, err)

	require.Len(t, fractions, 4)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestTransactions_NonObjectRowsDropped(t *testing.T) {
	fake := &fakeExtractor{
		rows: map[string][]any{
			"md0": {"not an object", map[string]any{"date": "2024-01-01", "raw_amount": "5.00"}},
		},
	}

	engine := NewEngine(fake, 1, zerolog.Nop())
	txs, err := engine.Transactions(context.Background(), docWithChunks("md0"), schema.Default(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "+5.00", txs[0].Amount)
}
