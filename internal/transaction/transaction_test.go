package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAmount_Idempotent(t *testing.T) {
	// Re-resolving an already-resolved amount must not change sign or value.
	assert.Equal(t, "+500.00", ResolveAmount("+500.00", "", "", "", ""))
	assert.Equal(t, "-500.00", ResolveAmount("-500.00", "", "", "", ""))

	tx := New(RawFields{Amount: "+500.00"})
	again := New(RawFields{Amount: tx.Amount})
	assert.Equal(t, tx.Amount, again.Amount)
}

func TestResolveAmount_PrepopulatedAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"plain value gets positive sign", "500.00", "+500.00"},
		{"parenthesized value goes negative", "(120.50)", "-120.50"},
		{"currency symbol stripped", "$1,234.50", "+1234.50"},
		{"dr marker goes negative", "75.00 Dr", "-75.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAmount(tt.amount, "", "", "", ""))
		})
	}
}

func TestResolveAmount_DebitCreditPrecedence(t *testing.T) {
	// Debit wins when both columns are populated and non-zero.
	got := ResolveAmount("", "30.00", "50.00", "", "")
	assert.Equal(t, "-50.00", got)

	// Credit applies only when debit is absent or zero.
	assert.Equal(t, "+30.00", ResolveAmount("", "30.00", "", "", ""))
	assert.Equal(t, "+30.00", ResolveAmount("", "30.00", "0.00", "", ""))
}

func TestResolveAmount_RawWithIndicator(t *testing.T) {
	assert.Equal(t, "+75.00", ResolveAmount("", "", "", "75.00", "Cr"))
	assert.Equal(t, "-75.00", ResolveAmount("", "", "", "75.00", "Dr"))
	assert.Equal(t, "-75.00", ResolveAmount("", "", "", "75.00", "withdrawal"))
	assert.Equal(t, "+75.00", ResolveAmount("", "", "", "75.00", "DEPOSIT"))

	// Unrecognized indicator falls back to sign detection on the raw value.
	assert.Equal(t, "+75.00", ResolveAmount("", "", "", "75.00", "XX"))
	assert.Equal(t, "-75.00", ResolveAmount("", "", "", "(75.00)", "XX"))
}

func TestResolveAmount_RawSignDetection(t *testing.T) {
	assert.Equal(t, "-100.00", ResolveAmount("", "", "", "-100.00", ""))
	assert.Equal(t, "-100.00", ResolveAmount("", "", "", "(100.00)", ""))
	assert.Equal(t, "+100.00", ResolveAmount("", "", "", "100.00", ""))
}

func TestResolveAmount_ZeroHandling(t *testing.T) {
	// Zero debit/credit cells are treated as absent and fall through...
	assert.Equal(t, "+0.00", ResolveAmount("", "0.00", "0", "", ""))
	// ...but a zero raw amount is accepted as a final value.
	assert.Equal(t, "+0.00", ResolveAmount("", "", "", "0.00", ""))
	// Zero debit must not shadow a populated raw amount.
	assert.Equal(t, "-45.00", ResolveAmount("", "", "0.00", "45.00", "Dr"))
}

func TestResolveAmount_NoData(t *testing.T) {
	assert.Equal(t, "+0.00", ResolveAmount("", "", "", "", ""))

	tx := New(RawFields{Date: "2024-01-01"})
	assert.Equal(t, "+0.00", tx.Amount)
}

func TestNormalizeRemarks(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil becomes empty", nil, ""},
		{"string passes through", "Grocery", "Grocery"},
		{"refs artifact collapses", map[string]any{"refs": []any{}}, ""},
		{"text key extracted", map[string]any{"text": "Grocery"}, "Grocery"},
		{"value key extracted", map[string]any{"value": "Salary", "refs": []any{}}, "Salary"},
		{"description key extracted", map[string]any{"description": "ATM withdrawal"}, "ATM withdrawal"},
		{"number coerced", 42.5, "42.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRemarks(tt.input))
		})
	}
}

func TestFromRaw(t *testing.T) {
	row := map[string]any{
		"date":          "2024-01-01",
		"debit_amount":  "50.00",
		"credit_amount": nil,
		"balance":       950.5,
		"remarks":       map[string]any{"text": "Card payment"},
		"transactionId": "TXN-1",
	}

	tx := FromRaw(row)
	assert.Equal(t, "2024-01-01", tx.Date)
	assert.Equal(t, "-50.00", tx.Amount)
	assert.Equal(t, "950.5", tx.Balance)
	assert.Equal(t, "Card payment", tx.Remarks)
	assert.Equal(t, "TXN-1", tx.TransactionID)
}

func TestFromRaw_EmptyRow(t *testing.T) {
	tx := FromRaw(map[string]any{})
	assert.Equal(t, "+0.00", tx.Amount)
	assert.Equal(t, "", tx.Date)
	assert.Equal(t, "", tx.Remarks)
}
