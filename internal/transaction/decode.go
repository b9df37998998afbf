package transaction

import (
	"fmt"
	"strconv"
)

// FromRaw builds a Transaction from one untyped extraction row. The
// extraction model occasionally returns numbers for text columns and nested
// objects for remarks, so every field is coerced defensively; decoding never
// fails, it degrades to empty strings.
func FromRaw(row map[string]any) Transaction {
	return New(RawFields{
		Date:          coerceString(row["date"]),
		Amount:        coerceString(row["amount"]),
		CreditAmount:  coerceString(row["credit_amount"]),
		DebitAmount:   coerceString(row["debit_amount"]),
		RawAmount:     coerceString(row["raw_amount"]),
		TypeIndicator: coerceString(row["type_indicator"]),
		Balance:       coerceString(row["balance"]),
		Remarks:       NormalizeRemarks(row["remarks"]),
		TransactionID: coerceString(row["transactionId"]),
	})
}

// NormalizeRemarks coerces a remarks value of any shape into plain text.
// The extraction model sometimes returns an object here; text-like keys are
// tried in order and a lone {"refs": []} artifact collapses to "".
func NormalizeRemarks(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if _, ok := val["refs"]; ok && len(val) == 1 {
			return ""
		}
		for _, key := range []string{"value", "text", "content", "description"} {
			if inner, ok := val[key]; ok {
				return coerceString(inner)
			}
		}
		return fmt.Sprintf("%v", val)
	default:
		return coerceString(v)
	}
}

// coerceString renders any JSON-decoded value as text, with nil becoming "".
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
