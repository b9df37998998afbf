package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/schema"
	"github.com/dvloznov/statement-extractor/internal/transaction"
)

func TestFixedCSV(t *testing.T) {
	txs := []transaction.Transaction{
		{Date: "2024-01-01", TransactionID: "T1", Remarks: "Salary", Amount: "+500.00", Balance: "1500.00"},
		{Date: "2024-01-02", TransactionID: "T2", Remarks: "Rent, January", Amount: "-300.00", Balance: "1200.00"},
	}

	out, err := FixedCSV(txs)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Transaction ID,Description,Amount,Balance", lines[0])
	assert.Equal(t, "2024-01-01,T1,Salary,+500.00,1500.00", lines[1])
	// Commas in remarks must be quoted, not split.
	assert.Equal(t, `2024-01-02,T2,"Rent, January",-300.00,1200.00`, lines[2])
}

func TestFixedCSV_Empty(t *testing.T) {
	out, err := FixedCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "Date,Transaction ID,Description,Amount,Balance\n", out)
}

func TestDynamicCSV_ExcludesInternalFields(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"transactions": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"date": {"type": "string"},
						"credit_amount": {"type": "string"},
						"debit_amount": {"type": "string"},
						"amount": {"type": "string"},
						"category": {"type": "string"}
					}
				}
			}
		}
	}`)

	rows := []map[string]any{
		{"date": "2024-01-01", "amount": "-50.00", "category": "groceries", "debit_amount": "50.00"},
	}

	out, err := DynamicCSV(rows, raw)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Amount,Category", lines[0])
	assert.Equal(t, "2024-01-01,-50.00,groceries", lines[1])
	assert.NotContains(t, out, "credit_amount")
	assert.NotContains(t, out, "debit_amount")
}

func TestDynamicCSV_HeaderHumanization(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"transactionId": {"type": "string"},
			"category": {"type": "string"},
			"opening_balance": {"type": "string"}
		}
	}`)

	out, err := DynamicCSV(nil, raw)
	require.NoError(t, err)
	assert.Equal(t, "Transaction ID,Category,Opening Balance\n", out)
}

func TestDynamicCSV_FallbackColumns(t *testing.T) {
	out, err := DynamicCSV([]map[string]any{{"date": "2024-01-01"}}, json.RawMessage(`{"type": "object"}`))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "Date,Transaction ID,Description,Amount,Balance", lines[0])
	assert.Equal(t, "2024-01-01,,,,", lines[1])
}

func TestDynamicCSV_DefaultSchemaMatchesFixedColumns(t *testing.T) {
	// The default schema's internal fields are filtered, leaving exactly
	// the fixed projection.
	out, err := DynamicCSV(nil, schema.Default())
	require.NoError(t, err)
	assert.Equal(t, "Date,Amount,Balance,Description,Transaction ID\n", out)
}

func TestDynamicCSV_CellValues(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"remarks": {"type": "string"},
			"balance": {"type": "string"},
			"flagged": {"type": "boolean"}
		}
	}`)

	rows := []map[string]any{
		{
			"remarks": map[string]any{"value": "UPI transfer"},
			"balance": 950.5,
			"flagged": true,
		},
		{
			"remarks": map[string]any{"refs": []any{}},
			"balance": nil,
		},
	}

	out, err := DynamicCSV(rows, raw)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "UPI transfer,950.5,true", lines[1])
	assert.Equal(t, ",,", lines[2])
}
