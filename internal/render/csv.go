// Package render projects extracted transactions into CSV: a fixed
// five-column layout for the built-in schema and a schema-driven dynamic
// layout for user schemas.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/schema"
	"github.com/dvloznov/statement-extractor/internal/transaction"
)

// fixedHeaders is the column set for default-schema output; order is part of
// the output contract.
var fixedHeaders = []string{"Date", "Transaction ID", "Description", "Amount", "Balance"}

// canonicalFields is the dynamic-mode fallback when a schema declares no
// usable fields.
var canonicalFields = []string{"date", "transactionId", "remarks", "amount", "balance"}

// headerNames maps canonical field names to their display headers. Any other
// field name is humanized.
var headerNames = map[string]string{
	"date":          "Date",
	"transactionId": "Transaction ID",
	"remarks":       "Description",
	"amount":        "Amount",
	"balance":       "Balance",
}

// FixedCSV renders typed transactions with the fixed column set.
func FixedCSV(txs []transaction.Transaction) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(fixedHeaders); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		record := []string{tx.Date, tx.TransactionID, tx.Remarks, tx.Amount, tx.Balance}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

// DynamicCSV renders untyped transaction rows with columns derived from the
// extraction schema's item-level properties. The internal amount-resolution
// fields never appear in output, even when the schema declares them. Missing
// values render as empty cells.
func DynamicCSV(rows []map[string]any, schemaJSON json.RawMessage) (string, error) {
	fields := projectedFields(schemaJSON)

	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = headerFor(f)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(headers); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(fields))
		for i, f := range fields {
			record[i] = cellValue(row[f])
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

// projectedFields returns the schema's output columns: its item-level
// property names minus the internal fields, falling back to the canonical
// five when nothing usable remains.
func projectedFields(schemaJSON json.RawMessage) []string {
	var fields []string
	for _, f := range schema.FieldNames(schemaJSON) {
		if transaction.InternalFields[f] {
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return canonicalFields
	}
	return fields
}

// headerFor returns the display header for a field: the canonical mapping
// when one exists, otherwise underscores become spaces and words are
// title-cased ("category" → "Category", "opening_balance" → "Opening Balance").
func headerFor(field string) string {
	if name, ok := headerNames[field]; ok {
		return name
	}
	words := strings.Split(strings.ReplaceAll(field, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

// cellValue renders one extracted value as a CSV cell. Object-shaped values
// expose their value/text sub-key; anything else unrenderable is empty.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		if inner, ok := val["value"]; ok {
			return cellValue(inner)
		}
		if inner, ok := val["text"]; ok {
			return cellValue(inner)
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
