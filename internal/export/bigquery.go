// Package export appends extracted transactions to a BigQuery table as an
// optional post-processing sink.
package export

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/transaction"
)

// TransactionRow is the exported table shape. Date stays NULL when the
// extracted value does not parse as a date; the raw string is always kept
// in date_raw.
type TransactionRow struct {
	RowID         string                 `bigquery:"row_id"`
	FolderID      string                 `bigquery:"folder_id"`
	Filename      string                 `bigquery:"filename"`
	Date          bigquery.NullDate      `bigquery:"date"`
	DateRaw       string                 `bigquery:"date_raw"`
	Amount        string                 `bigquery:"amount"`
	Balance       string                 `bigquery:"balance"`
	Remarks       string                 `bigquery:"remarks"`
	TransactionID string                 `bigquery:"transaction_id"`
	ExportedTS    bigquery.NullTimestamp `bigquery:"exported_ts"`
}

// dateLayouts are tried in order when parsing extracted dates.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2 Jan 2006", "02 Jan 2006", "Jan 2, 2006"}

// BigQuerySink streams transaction rows into one table.
type BigQuerySink struct {
	client  *bigquery.Client
	dataset string
	table   string
	log     zerolog.Logger
}

// NewBigQuerySink creates a sink for project.dataset.table.
func NewBigQuerySink(ctx context.Context, projectID, dataset, table string, log zerolog.Logger) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &BigQuerySink{client: client, dataset: dataset, table: table, log: log}, nil
}

// Close releases the underlying client.
func (s *BigQuerySink) Close() error {
	return s.client.Close()
}

// Export appends one row per transaction. Nothing is inserted for an empty
// slice.
func (s *BigQuerySink) Export(ctx context.Context, folderID, filename string, txs []transaction.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &TransactionRow{
			RowID:         uuid.NewString(),
			FolderID:      folderID,
			Filename:      filename,
			Date:          parseDate(tx.Date),
			DateRaw:       tx.Date,
			Amount:        tx.Amount,
			Balance:       tx.Balance,
			Remarks:       tx.Remarks,
			TransactionID: tx.TransactionID,
			ExportedTS:    bigquery.NullTimestamp{Timestamp: now, Valid: true},
		})
	}

	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}

	s.log.Info().
		Str("folder", folderID).
		Str("file", filename).
		Int("rows", len(rows)).
		Msg("Transactions exported")
	return nil
}

// parseDate converts an extracted date string to a NullDate, best effort.
func parseDate(value string) bigquery.NullDate {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
		}
	}
	return bigquery.NullDate{}
}
